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
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

type outputVariable struct {
	name, description, units string
	field                    func(d *Domain) *sparse.DenseArray
}

var windOutputVariables = []outputVariable{
	{"U", "West-east wind on the west cell face", "m/s",
		func(d *Domain) *sparse.DenseArray { return d.U }},
	{"V", "South-north wind on the south cell face", "m/s",
		func(d *Domain) *sparse.DenseArray { return d.V }},
	{"W", "Vertical wind on the bottom cell face", "m/s",
		func(d *Domain) *sparse.DenseArray { return d.W }},
}

var surfaceOutputVariables = []outputVariable{
	{"SurfaceHeight", "Surface height including obstacles", "m",
		func(d *Domain) *sparse.DenseArray { return d.SurfaceHeight }},
	{"BuildingHeight", "Obstacle height above the terrain", "m",
		func(d *Domain) *sparse.DenseArray { return d.BuildingHeight }},
	{"Cutout", "Building height", "m",
		func(d *Domain) *sparse.DenseArray { return d.Cutout }},
	{"BlockedLayer", "Highest layer inside terrain or buildings", "-",
		func(d *Domain) *sparse.DenseArray { return d.blockedField() }},
	{"CanopyHeight", "Vegetation canopy height", "m",
		func(d *Domain) *sparse.DenseArray { return d.CanopyHeight }},
	{"GasDepositionScale", "Gas dry deposition velocity factor", "-",
		func(d *Domain) *sparse.DenseArray { return d.depositionScale(d.Vegetation.Deposition.Gas) }},
	{"ParticleDepositionScale", "Particle dry deposition velocity factor", "-",
		func(d *Domain) *sparse.DenseArray { return d.depositionScale(d.Vegetation.Deposition.Particle) }},
}

// blockedField returns the blocked layers as a horizontal field.
func (d *Domain) blockedField() *sparse.DenseArray {
	o := newField2D(&d.Grid)
	for i := 0; i <= d.Nx+1; i++ {
		for j := 0; j <= d.Ny+1; j++ {
			o.Set(float64(d.BlockedLayer(i, j)), i, j)
		}
	}
	return o
}

// WriteNetCDF writes the wind field and the surface fields to w,
// including the halo cells. Three-dimensional variables have dimensions
// (z, y, x) and two-dimensional variables (y, x), where index 0 along
// each dimension is the lower halo cell.
func (d *Domain) WriteNetCDF(w *os.File) error {
	nx, ny, nz := d.Nx+2, d.Ny+2, d.Nz+2
	h := cdf.NewHeader([]string{"x", "y", "z"}, []int{nx, ny, nz})
	h.AddAttribute("", "comment", "windfield microscale wind field")
	h.AddAttribute("", "x0", []float64{d.X0})
	h.AddAttribute("", "y0", []float64{d.Y0})
	h.AddAttribute("", "dx", []float64{d.Dx})
	h.AddAttribute("", "dy", []float64{d.Dy})
	h.AddAttribute("", "dz", d.Dz[1:d.Nz+1])
	h.AddAttribute("", "wind_direction", []float64{d.WindDirection})
	h.AddAttribute("", "wind_speed", []float64{d.WindSpeed})
	h.AddAttribute("", "subdomain_top", []int32{int32(d.SubDomainTop)})
	h.AddAttribute("", "gas_deposition_factor", []float64{d.Vegetation.Deposition.Gas})
	h.AddAttribute("", "particle_deposition_factor", []float64{d.Vegetation.Deposition.Particle})
	for _, v := range windOutputVariables {
		h.AddVariable(v.name, []string{"z", "y", "x"}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	var surface []outputVariable
	for _, v := range surfaceOutputVariables {
		if v.field(d) == nil {
			continue
		}
		surface = append(surface, v)
		h.AddVariable(v.name, []string{"y", "x"}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("windfield: creating wind field file: %v", err)
	}
	for _, v := range windOutputVariables {
		a := v.field(d)
		data := make([]float32, nx*ny*nz)
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					data[(k*ny+j)*nx+i] = float32(a.Get(i, j, k))
				}
			}
		}
		if err := writeVariable(f, v.name, data); err != nil {
			return err
		}
	}
	for _, v := range surface {
		a := v.field(d)
		data := make([]float32, nx*ny)
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				data[j*nx+i] = float32(a.Get(i, j))
			}
		}
		if err := writeVariable(f, v.name, data); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}
