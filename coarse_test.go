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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCoarseGridNetCDF(t *testing.T) {
	c := flatCoarse(4, 3, 2, 10, 100, 50, 1, 0)
	for i := 1; i <= c.Nx; i++ {
		for j := 1; j <= c.Ny; j++ {
			c.Surface.Set(float64(100+i+10*j), i, j)
			for k := 1; k <= c.Nz; k++ {
				c.U.Set(float64(i-j), i, j, k)
				c.V.Set(float64(k), i, j, k)
				c.W.Set(float64(-k), i, j, k)
			}
		}
	}
	c.X0, c.Y0 = 500, 1000
	c.FillHalo()

	f, err := os.Create(filepath.Join(t.TempDir(), "coarse.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := c.Write(f); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadCoarseGrid(f)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Nx != 4 || c2.Ny != 3 || c2.Nz != 2 {
		t.Fatalf("size: have %dx%dx%d, want 4x3x2", c2.Nx, c2.Ny, c2.Nz)
	}
	if c2.X0 != 500 || c2.Y0 != 1000 || c2.Dx != 10 || c2.Dy != 10 {
		t.Errorf("location: have (%g, %g, %g, %g)", c2.X0, c2.Y0, c2.Dx, c2.Dy)
	}
	for _, v := range coarseVariables {
		if diff := cmp.Diff(v.field(c).Elements, v.field(c2).Elements); diff != "" {
			t.Errorf("%s (-want +got):\n%s", v.name, diff)
		}
	}
	if diff := cmp.Diff(c.Surface.Elements, c2.Surface.Elements); diff != "" {
		t.Errorf("Surface (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.LevelHeight, c2.LevelHeight); diff != "" {
		t.Errorf("LevelHeight (-want +got):\n%s", diff)
	}
}

func TestLoadCoarseGridMissingAttribute(t *testing.T) {
	g, err := NewGrid(2, 2, 1, 1, 0, 0, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	// A wind field output file is not a coarse grid.
	f, err := os.Create(filepath.Join(t.TempDir(), "windfield.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := d.WriteNetCDF(f); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCoarseGrid(f); err == nil {
		t.Error("expected an error")
	}
}

func TestFillHalo(t *testing.T) {
	c := NewCoarseGrid(2, 2, 1, 1, 1, 0, 0)
	for i := 1; i <= 2; i++ {
		for j := 1; j <= 2; j++ {
			c.Surface.Set(float64(10*i+j), i, j)
			c.U.Set(float64(10*i+j), i, j, 1)
		}
	}
	c.FillHalo()
	for _, test := range []struct {
		i, j int
		want float64
	}{
		{0, 0, 11},
		{3, 0, 21},
		{0, 3, 12},
		{3, 3, 22},
		{1, 3, 12},
		{3, 1, 21},
	} {
		if v := c.Surface.Get(test.i, test.j); v != test.want {
			t.Errorf("surface (%d, %d): have %g, want %g", test.i, test.j, v, test.want)
		}
		if v := c.U.Get(test.i, test.j, 1); v != test.want {
			t.Errorf("u (%d, %d): have %g, want %g", test.i, test.j, v, test.want)
		}
	}
	if m := c.minSurface(); m != 11 {
		t.Errorf("min surface: have %g, want 11", m)
	}
}
