/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package windfield

import (
	"errors"
)

// ErrNoSubDomain is returned when a prognostic calculation is requested
// but there are no prognostic sub-domains, for example because there
// are no buildings or vegetation, or the buildings are below the
// surface.
var ErrNoSubDomain = errors.New("windfield: prognostic approach selected but there are no prognostic sub-domains")

// SubDomainReference returns the reference point of the prognostic
// sub-domains. If pt is not the zero Column it is returned unchanged.
// Otherwise the sub-domain column farthest from any column outside the
// sub-domains is chosen, with ties going to the lowest i and then the
// lowest j. If there are no sub-domains, column (1, 1) is returned,
// together with ErrNoSubDomain for prognostic runs.
func (d *Domain) SubDomainReference(pt Column) (Column, error) {
	if pt != (Column{}) {
		return pt, nil
	}
	if ref, ok := d.searchReferencePoint(); ok {
		return ref, nil
	}
	if d.FlowLevel == Prognostic {
		return Column{I: 1, J: 1}, ErrNoSubDomain
	}
	return Column{I: 1, J: 1}, nil
}

// searchReferencePoint finds the sub-domain column with the largest
// number of steps to the nearest column outside the sub-domains, where
// the halo counts as outside. It is a breadth-first search starting
// from every outside column at once.
func (d *Domain) searchReferencePoint() (Column, bool) {
	dist := make([]int, len(d.subDomain))
	var queue []Column
	for i := 0; i <= d.Nx+1; i++ {
		for j := 0; j <= d.Ny+1; j++ {
			if d.subDomain[d.col(i, j)] {
				dist[d.col(i, j)] = -1
				continue
			}
			queue = append(queue, Column{I: i, J: j})
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, s := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			n := Column{I: c.I + s[0], J: c.J + s[1]}
			if n.I < 1 || n.I > d.Nx || n.J < 1 || n.J > d.Ny {
				continue
			}
			if dist[d.col(n.I, n.J)] != -1 {
				continue
			}
			dist[d.col(n.I, n.J)] = dist[d.col(c.I, c.J)] + 1
			queue = append(queue, n)
		}
	}
	var best Column
	bestDist := 0
	for i := 1; i <= d.Nx; i++ {
		for j := 1; j <= d.Ny; j++ {
			if v := dist[d.col(i, j)]; v > bestDist {
				best, bestDist = Column{I: i, J: j}, v
			}
		}
	}
	return best, bestDist > 0
}
