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

// ConserveMass recomputes the vertical wind from the horizontal flux
// divergence so that every unblocked interior cell conserves mass. The
// vertical wind on the top face of each layer is computed from the
// bottom up. Faces shared with a blocked neighbor carry no flux.
// Columns are processed in parallel.
func (d *Domain) ConserveMass() {
	area := d.Dx * d.Dy
	stripe(numWorkers(), 2, d.Nx-1, func(_, i int) {
		for j := 2; j <= d.Ny-1; j++ {
			d.conserveColumn(i, j, area)
		}
	})
}

// conserveColumn adjusts the vertical wind in column (i, j). Each layer
// depends on the result for the layer below it.
func (d *Domain) conserveColumn(i, j int, area float64) {
	kk := d.BlockedLayer(i, j)
	west, east := d.BlockedLayer(i-1, j), d.BlockedLayer(i+1, j)
	south, north := d.BlockedLayer(i, j-1), d.BlockedLayer(i, j+1)
	face := func(blocked, k int, width, v float64) float64 {
		if k <= blocked {
			return 0
		}
		return d.Dz[k] * width * v
	}
	for k := kk + 1; k < d.Nz; k++ {
		fwo1 := face(west, k, d.Dy, d.U.Get(i, j, k))
		fwo2 := face(east, k, d.Dy, d.U.Get(i+1, j, k))
		fsn1 := face(south, k, d.Dx, d.V.Get(i, j, k))
		fsn2 := face(north, k, d.Dx, d.V.Get(i, j+1, k))
		var fbt float64
		if k > kk+1 && k > 1 {
			fbt = area * d.W.Get(i, j, k)
		}
		d.W.Set((fwo1-fwo2+fsn1-fsn2+fbt)/area, i, j, k+1)
	}
}
