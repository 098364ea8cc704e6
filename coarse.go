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
	"golang.org/x/sync/errgroup"
)

// CoarseGrid holds the background terrain and wind field that the fine
// grid is interpolated from. Three-dimensional fields have shape
// [Nx+2][Ny+2][Nz+2] and two-dimensional fields [Nx+2][Ny+2]; the halo
// cells repeat the nearest edge column so that interpolation stencils
// may reach one cell past the grid.
type CoarseGrid struct {
	Nx, Ny, Nz int

	// Dx and Dy are the horizontal cell sizes [m].
	Dx, Dy float64

	// X0 and Y0 are the coordinates of the lower-left corner.
	X0, Y0 float64

	// Height is the absolute height of each terrain-following level.
	Height *sparse.DenseArray

	// U, V and W are the background wind components.
	U, V, W *sparse.DenseArray

	// CellHeight is the absolute height of each cell center.
	CellHeight *sparse.DenseArray

	// Surface is the absolute surface height.
	Surface *sparse.DenseArray

	// LevelHeight is the vertical coordinate of the levels above the
	// surface, 1-based.
	LevelHeight []float64
}

// NewCoarseGrid allocates a coarse grid.
func NewCoarseGrid(nx, ny, nz int, dx, dy, x0, y0 float64) *CoarseGrid {
	return &CoarseGrid{
		Nx: nx, Ny: ny, Nz: nz,
		Dx: dx, Dy: dy,
		X0: x0, Y0: y0,
		Height:      sparse.ZerosDense(nx+2, ny+2, nz+2),
		U:           sparse.ZerosDense(nx+2, ny+2, nz+2),
		V:           sparse.ZerosDense(nx+2, ny+2, nz+2),
		W:           sparse.ZerosDense(nx+2, ny+2, nz+2),
		CellHeight:  sparse.ZerosDense(nx+2, ny+2, nz+2),
		Surface:     sparse.ZerosDense(nx+2, ny+2),
		LevelHeight: make([]float64, nz+2),
	}
}

// FillHalo copies the edge columns of every field into the halo cells.
// It must be called after the interior of the grid has been set.
func (c *CoarseGrid) FillHalo() {
	for _, a := range []*sparse.DenseArray{c.Height, c.U, c.V, c.W, c.CellHeight} {
		for i := 0; i <= c.Nx+1; i++ {
			for j := 0; j <= c.Ny+1; j++ {
				if i >= 1 && i <= c.Nx && j >= 1 && j <= c.Ny {
					continue
				}
				ii, jj := clamp(i, 1, c.Nx), clamp(j, 1, c.Ny)
				for k := 1; k <= c.Nz; k++ {
					a.Set(a.Get(ii, jj, k), i, j, k)
				}
			}
		}
	}
	for i := 0; i <= c.Nx+1; i++ {
		for j := 0; j <= c.Ny+1; j++ {
			c.Surface.Set(c.Surface.Get(clamp(i, 1, c.Nx), clamp(j, 1, c.Ny)), i, j)
		}
	}
}

// lowestLayerDepth returns the thickness of the lowest coarse layer.
func (c *CoarseGrid) lowestLayerDepth() float64 {
	if len(c.LevelHeight) < 3 {
		return 0
	}
	return c.LevelHeight[2] - c.LevelHeight[1]
}

// minSurface returns the lowest interior surface height.
func (c *CoarseGrid) minSurface() float64 {
	m := c.Surface.Get(1, 1)
	for i := 1; i <= c.Nx; i++ {
		for j := 1; j <= c.Ny; j++ {
			if v := c.Surface.Get(i, j); v < m {
				m = v
			}
		}
	}
	return m
}

// coarseVariables are the three-dimensional variables of a coarse grid
// file, stored with dimensions (z, y, x).
var coarseVariables = []struct {
	name, description, units string
	field                    func(c *CoarseGrid) *sparse.DenseArray
}{
	{"Height", "Absolute height of terrain-following levels", "m",
		func(c *CoarseGrid) *sparse.DenseArray { return c.Height }},
	{"U", "West-east wind component", "m/s",
		func(c *CoarseGrid) *sparse.DenseArray { return c.U }},
	{"V", "South-north wind component", "m/s",
		func(c *CoarseGrid) *sparse.DenseArray { return c.V }},
	{"W", "Vertical wind component", "m/s",
		func(c *CoarseGrid) *sparse.DenseArray { return c.W }},
	{"CellHeight", "Absolute height of cell centers", "m",
		func(c *CoarseGrid) *sparse.DenseArray { return c.CellHeight }},
}

// LoadCoarseGrid reads a coarse grid from a NetCDF file. The file must
// have global attributes x0, y0, dx and dy, three-dimensional variables
// Height, U, V, W and CellHeight with dimensions (z, y, x), the
// variable Surface with dimensions (y, x) and the variable LevelHeight
// with dimension (zStagger). Variables are read concurrently.
func LoadCoarseGrid(rw cdf.ReaderWriterAt) (*CoarseGrid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("windfield.LoadCoarseGrid: %v", err)
	}
	attr := func(name string) (float64, error) {
		v, ok := f.Header.GetAttribute("", name).([]float64)
		if !ok || len(v) == 0 {
			return 0, fmt.Errorf("windfield.LoadCoarseGrid: missing or invalid attribute %s", name)
		}
		return v[0], nil
	}
	var xy [4]float64
	for n, name := range []string{"x0", "y0", "dx", "dy"} {
		if xy[n], err = attr(name); err != nil {
			return nil, err
		}
	}
	dims := f.Header.Lengths("Height")
	if len(dims) != 3 {
		return nil, fmt.Errorf("windfield.LoadCoarseGrid: variable Height has %d dimensions but should have 3", len(dims))
	}
	nz, ny, nx := dims[0], dims[1], dims[2]
	c := NewCoarseGrid(nx, ny, nz, xy[2], xy[3], xy[0], xy[1])

	var g errgroup.Group
	for _, v := range coarseVariables {
		v := v
		g.Go(func() error {
			data, err := readCoarseVariable(f, v.name, nz, ny, nx)
			if err != nil {
				return err
			}
			a := v.field(c)
			for k := 0; k < nz; k++ {
				for j := 0; j < ny; j++ {
					for i := 0; i < nx; i++ {
						a.Set(float64(data[(k*ny+j)*nx+i]), i+1, j+1, k+1)
					}
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		data, err := readCoarseVariable(f, "Surface", ny, nx)
		if err != nil {
			return err
		}
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c.Surface.Set(float64(data[j*nx+i]), i+1, j+1)
			}
		}
		return nil
	})
	g.Go(func() error {
		data, err := readCoarseVariable(f, "LevelHeight", nz+1)
		if err != nil {
			return err
		}
		for k, v := range data {
			c.LevelHeight[k+1] = float64(v)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.FillHalo()
	return c, nil
}

func readCoarseVariable(f *cdf.File, name string, dims ...int) ([]float32, error) {
	have := f.Header.Lengths(name)
	if len(have) != len(dims) {
		return nil, fmt.Errorf("windfield.LoadCoarseGrid: variable %s has dimensions %v but should have %v", name, have, dims)
	}
	n := 1
	for i, d := range dims {
		if have[i] != d {
			return nil, fmt.Errorf("windfield.LoadCoarseGrid: variable %s has dimensions %v but should have %v", name, have, dims)
		}
		n *= d
	}
	data := make([]float32, n)
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(data); err != nil {
		return nil, fmt.Errorf("windfield.LoadCoarseGrid: reading variable %s: %v", name, err)
	}
	return data, nil
}

// Write writes the interior of the coarse grid to w in the format read
// by LoadCoarseGrid.
func (c *CoarseGrid) Write(w *os.File) error {
	h := cdf.NewHeader([]string{"x", "y", "z", "zStagger"},
		[]int{c.Nx, c.Ny, c.Nz, c.Nz + 1})
	h.AddAttribute("", "comment", "windfield coarse background grid")
	h.AddAttribute("", "x0", []float64{c.X0})
	h.AddAttribute("", "y0", []float64{c.Y0})
	h.AddAttribute("", "dx", []float64{c.Dx})
	h.AddAttribute("", "dy", []float64{c.Dy})
	for _, v := range coarseVariables {
		h.AddVariable(v.name, []string{"z", "y", "x"}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.AddVariable("Surface", []string{"y", "x"}, []float32{0})
	h.AddAttribute("Surface", "description", "Absolute surface height")
	h.AddAttribute("Surface", "units", "m")
	h.AddVariable("LevelHeight", []string{"zStagger"}, []float32{0})
	h.AddAttribute("LevelHeight", "description", "Level height above the surface")
	h.AddAttribute("LevelHeight", "units", "m")
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("windfield: creating coarse grid file: %v", err)
	}
	for _, v := range coarseVariables {
		a := v.field(c)
		data := make([]float32, c.Nx*c.Ny*c.Nz)
		for k := 0; k < c.Nz; k++ {
			for j := 0; j < c.Ny; j++ {
				for i := 0; i < c.Nx; i++ {
					data[(k*c.Ny+j)*c.Nx+i] = float32(a.Get(i+1, j+1, k+1))
				}
			}
		}
		if err := writeVariable(f, v.name, data); err != nil {
			return err
		}
	}
	surf := make([]float32, c.Nx*c.Ny)
	for j := 0; j < c.Ny; j++ {
		for i := 0; i < c.Nx; i++ {
			surf[j*c.Nx+i] = float32(c.Surface.Get(i+1, j+1))
		}
	}
	if err := writeVariable(f, "Surface", surf); err != nil {
		return err
	}
	levels := make([]float32, c.Nz+1)
	for k := range levels {
		if k+1 < len(c.LevelHeight) {
			levels[k] = float32(c.LevelHeight[k+1])
		}
	}
	if err := writeVariable(f, "LevelHeight", levels); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(w)
}

func writeVariable(f *cdf.File, name string, data []float32) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("windfield: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}
