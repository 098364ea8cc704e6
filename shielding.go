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

import "math"

// shieldingRange is the maximum distance [m] at which an obstacle
// attenuates the wind.
const shieldingRange = 20

// shieldingDirections are the column steps searched for obstacles:
// west, east, north, south, then the four diagonals.
var shieldingDirections = [8][2]int{
	{-1, 0}, {1, 0}, {0, 1}, {0, -1},
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

// shieldingSearch returns the number of columns searched in each
// direction.
func (d *Domain) shieldingSearch() int {
	n := int(shieldingRange / d.Dx)
	if n < 1 {
		return 1
	}
	return n
}

// shieldingApplies reports whether the near-obstacle attenuation is
// used for the current configuration.
func (d *Domain) shieldingApplies() bool {
	if !d.BuildingsExist {
		return false
	}
	return d.FlowLevel <= Diagnostic ||
		(d.FlowLevel == Prognostic && d.SubDomainDistance < subDomainDistanceOff)
}

// wallFactor returns the attenuation caused by an obstacle at distance
// dist [m].
func wallFactor(dist float64) float64 {
	return 0.19 * math.Log((dist+0.5)*10)
}

// ShieldingFactor returns the attenuation applied to the wind in cell
// (i, j, k) by obstacles within 20 m along the axis and diagonal
// directions. An obstacle is a column with a cutout taller than 1 m
// whose surface reaches at least the middle of layer k. The factors of
// all directions that contain an obstacle are multiplied together; the
// result is 1 when no obstacle is found. Short distances give factors
// greater than 1. The search must stay inside the grid, so (i, j) must
// be at least shieldingSearch columns from every edge.
func (d *Domain) ShieldingFactor(i, j, k int) float64 {
	n := d.shieldingSearch()
	vertk := d.layerMid(k, d.MinSurface)
	f := 1.0
	for _, dir := range shieldingDirections {
		for step := 1; step <= n; step++ {
			ig, jg := i+dir[0]*step, j+dir[1]*step
			if d.Cutout.Get(ig, jg) > 1 && vertk <= d.SurfaceHeight.Get(ig, jg) {
				dist := math.Hypot(float64(step*dir[0])*d.Dx, float64(step*dir[1])*d.Dy)
				if dist <= shieldingRange {
					f *= wallFactor(dist)
				}
				break
			}
		}
	}
	return f
}

// ShieldObstacles attenuates the wind near the walls of obstacles in
// every unblocked cell. Outside diagnostic runs, cells inside the
// prognostic sub-domains are left alone. It does nothing unless buildings exist
// and the flow field level uses the attenuation.
func (d *Domain) ShieldObstacles() {
	if !d.shieldingApplies() {
		return
	}
	n := d.shieldingSearch()
	stripe(numWorkers(), 1+n, d.Nx-n, func(_, i int) {
		for j := 1 + n; j <= d.Ny-n; j++ {
			if d.FlowLevel != Diagnostic && d.InSubDomain(i, j) {
				continue
			}
			for k := d.BlockedLayer(i, j) + 1; k < d.Nz; k++ {
				f := d.ShieldingFactor(i, j, k)
				if f == 1 {
					continue
				}
				d.U.Set(d.U.Get(i, j, k)*f, i, j, k)
				d.V.Set(d.V.Get(i, j, k)*f, i, j, k)
				d.W.Set(d.W.Get(i, j, k)*f, i, j, k)
			}
		}
	})
}
