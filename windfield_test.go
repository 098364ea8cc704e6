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
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"
)

const testTolerance = 1e-8

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		if math.Abs(a-b) > tolerance {
			return true
		}
	}
	return false
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// flatCoarse returns a coarse grid with flat terrain at height surface,
// levels every levelDz meters and a uniform wind.
func flatCoarse(nx, ny, nz int, dx, surface, levelDz, u, v float64) *CoarseGrid {
	c := NewCoarseGrid(nx, ny, nz, dx, dx, 0, 0)
	for i := 1; i <= nx; i++ {
		for j := 1; j <= ny; j++ {
			c.Surface.Set(surface, i, j)
			for k := 1; k <= nz; k++ {
				c.Height.Set(surface+float64(k-1)*levelDz, i, j, k)
				c.CellHeight.Set(surface+(float64(k)-0.5)*levelDz, i, j, k)
				c.U.Set(u, i, j, k)
				c.V.Set(v, i, j, k)
			}
		}
	}
	for k := 1; k <= nz+1; k++ {
		c.LevelHeight[k] = float64(k-1) * levelDz
	}
	c.FillHalo()
	return c
}

// testDomain returns a 10x10x10 domain with 2 m cells that lies in the
// interior of a flat 6x6 coarse grid with 10 m cells.
func testDomain(t *testing.T) *Domain {
	g, err := NewGrid(10, 10, 2, 2, 15, 15, StretchedLayers(2, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	d.Log = quietLogger()
	d.SetCoarse(flatCoarse(6, 6, 5, 10, 100, 50, 1, 0))
	return d
}

func TestNewGrid(t *testing.T) {
	g, err := NewGrid(3, 4, 2, 2, 0, 0, []float64{1, 2, 4})
	if err != nil {
		t.Fatal(err)
	}
	if g.Nz != 3 {
		t.Errorf("nz: have %d, want 3", g.Nz)
	}
	want := []float64{0, 1, 3, 7}
	for k, w := range want {
		if g.LayerTop[k] != w {
			t.Errorf("layer top %d: have %g, want %g", k, g.LayerTop[k], w)
		}
	}
	if g.Dz[0] != 0 || g.Dz[3] != 4 {
		t.Errorf("dz: %v", g.Dz)
	}
	x, y := g.CellCenter(2, 3)
	if x != 3 || y != 5 {
		t.Errorf("cell center: have (%g, %g), want (3, 5)", x, y)
	}

	for _, bad := range []struct {
		name   string
		nx, ny int
		dx     float64
		dz     []float64
	}{
		{"no columns", 0, 1, 1, []float64{1}},
		{"no layers", 1, 1, 1, nil},
		{"zero cell size", 1, 1, 0, []float64{1}},
		{"negative layer", 1, 1, 1, []float64{1, -1}},
	} {
		t.Run(bad.name, func(t *testing.T) {
			if _, err := NewGrid(bad.nx, bad.ny, bad.dx, bad.dx, 0, 0, bad.dz); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStretchedLayers(t *testing.T) {
	dz := StretchedLayers(2, 1.5, 3)
	want := []float64{2, 3, 4.5}
	for k := range want {
		if different(dz[k], want[k], testTolerance) {
			t.Errorf("layer %d: have %g, want %g", k, dz[k], want[k])
		}
	}
}

func TestMarkSubDomain(t *testing.T) {
	d := testDomain(t)
	d.MarkSubDomain(0, 3)
	d.MarkSubDomain(11, 3)
	d.MarkSubDomain(4, 5)
	if d.InSubDomain(0, 3) || d.InSubDomain(11, 3) {
		t.Error("columns outside the grid should not be marked")
	}
	if !d.InSubDomain(4, 5) {
		t.Error("column (4, 5) should be marked")
	}
	d.MarkSubDomain(4, 5)
	if !d.InSubDomain(4, 5) {
		t.Error("marks should never be cleared")
	}
}
