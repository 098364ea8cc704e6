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
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

// vegetationDomain returns a 20x20 domain with 2 m cells and twelve
// 1 m layers.
func vegetationDomain(t *testing.T) *Domain {
	g, err := NewGrid(20, 20, 2, 2, 0, 0, StretchedLayers(1, 1, 12))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	d.Log = quietLogger()
	return d
}

const vegetationFile = `D	10	50	2	4	100
5,5

5,5
`

func TestReadVegetation(t *testing.T) {
	d := vegetationDomain(t)
	if err := d.ReadVegetation(strings.NewReader(vegetationFile)); err != nil {
		t.Fatal(err)
	}
	veg := d.Vegetation
	if veg.Status != Loaded || !veg.Exists() {
		t.Fatalf("status: have %v, want %v", veg.Status, Loaded)
	}
	if veg.Cells != 2 {
		t.Errorf("cells: have %d, want 2", veg.Cells)
	}
	if len(veg.LAD) != 1 {
		t.Errorf("columns: have %d, want 1", len(veg.LAD))
	}
	want := []float64{0.6, 0.6, 0.6, 0.6, 0.6, 1.2, 1.2, 1.2, 1.2, 1.2, 0, 0}
	got := veg.Profile(3, 3)
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool {
		return !different(a, b, testTolerance)
	})); diff != "" {
		t.Errorf("profile (-want +got):\n%s", diff)
	}
	if c := veg.Coverage[Column{I: 3, J: 3}]; different(c, 1, testTolerance) {
		t.Errorf("coverage: have %g, want 1", c)
	}
	if veg.Profile(4, 4) != nil {
		t.Error("column (4, 4) should have no vegetation")
	}

	// A second read does nothing.
	if err := d.ReadVegetation(strings.NewReader("D,10,50,2,4,100\n21,21\n")); err != nil {
		t.Fatal(err)
	}
	if veg.Profile(11, 11) != nil {
		t.Error("vegetation was read twice")
	}
}

func TestVegetationBlockLAD(t *testing.T) {
	b, err := parseVegetationBlock(vegetationFields("D\t10\t50\t2\t4\t100"))
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		z, want float64
	}{
		{-1, 0},
		{3, 0.6},
		{7, 1.2},
		{10, 0},
		{11, 0},
	} {
		if v := b.lad(test.z); different(v, test.want, testTolerance) {
			t.Errorf("lad(%g) = %g, want %g", test.z, v, test.want)
		}
	}
	b.coverage = 0.5
	if v := b.lad(7); different(v, 0.3*0.125*4, testTolerance) {
		t.Errorf("lad with half coverage = %g, want %g", v, 0.3*0.125*4)
	}
}

func TestReadVegetationErrors(t *testing.T) {
	for _, test := range []struct {
		name, file, line string
	}{
		{"short header", "D\t10\t50\t2\t4\n", "line 1"},
		{"bad coordinate", "D,10,50,2,4,100\n\nabc,5\n", "line 3"},
		{"bad header", "D,10,x,2,4,100\n", "line 1"},
	} {
		t.Run(test.name, func(t *testing.T) {
			d := vegetationDomain(t)
			err := d.ReadVegetation(strings.NewReader(test.file))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), test.line) {
				t.Errorf("error %q should mention %s", err, test.line)
			}
			if d.Vegetation.Status != Unloaded {
				t.Errorf("status: have %v, want %v", d.Vegetation.Status, Unloaded)
			}
		})
	}
}

func TestReadVegetationEmpty(t *testing.T) {
	for _, file := range []string{"", "D,1,50,2,4,100\n5,5\n", "D,10,50,0,0,100\n5,5\n"} {
		d := vegetationDomain(t)
		if err := d.ReadVegetation(strings.NewReader(file)); err != nil {
			t.Fatal(err)
		}
		if d.Vegetation.Status != Empty || d.Vegetation.Exists() {
			t.Errorf("%q: status %v, want %v", file, d.Vegetation.Status, Empty)
		}
	}
}

func TestReadVegetationSourceFilter(t *testing.T) {
	d := vegetationDomain(t)
	d.SubDomainDistance = 10
	d.Sources = []geom.Geom{geom.Point{X: 100, Y: 100}, geom.Point{X: 5, Y: 5}}
	if err := d.ReadVegetation(strings.NewReader("D,10,50,2,4,100\n5,5\n7,5\n31,31\n")); err != nil {
		t.Fatal(err)
	}
	veg := d.Vegetation
	if veg.Profile(3, 3) == nil || veg.Profile(4, 3) == nil {
		t.Error("vegetation close to the source should be kept")
	}
	if veg.Profile(16, 16) != nil {
		t.Error("vegetation far from the source should be dropped")
	}
	if _, ok := veg.Coverage[Column{I: 16, J: 16}]; !ok {
		t.Error("coverage should be recorded for every column")
	}
	if veg.Cells != 2 {
		t.Errorf("cells: have %d, want 2", veg.Cells)
	}
}

func TestReadVegetationDomain(t *testing.T) {
	d := vegetationDomain(t)
	d.SubDomainFactor = 0.5
	file := "D,8,50,2,4,100\n21,21\nD,1,50,2,4,100\n5,5\n"
	if err := d.ReadVegetationDomain(strings.NewReader(file)); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= d.Nx; i++ {
		for j := 1; j <= d.Ny; j++ {
			want := i >= 9 && i <= 13 && j >= 9 && j <= 13
			if d.InSubDomain(i, j) != want {
				t.Errorf("column (%d, %d): in sub-domain %v, want %v", i, j, d.InSubDomain(i, j), want)
			}
		}
	}
	// The footprint is only read once.
	if err := d.ReadVegetationDomain(strings.NewReader("D,8,50,2,4,100\n5,5\n")); err != nil {
		t.Fatal(err)
	}
	if d.InSubDomain(3, 3) {
		t.Error("vegetation sub-domains were read twice")
	}
}

func TestReadVegetationHeight(t *testing.T) {
	d := vegetationDomain(t)
	file := "D,12,50,2,4,100\n5,5\nD,8,50,2,4,100\n5,5\n9,5\n"
	if err := d.ReadVegetationHeight(strings.NewReader(file)); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		i, j int
		want float64
	}{
		{3, 3, 12},
		{5, 3, 8},
		{4, 3, 0},
	} {
		if h := d.CanopyHeight.Get(test.i, test.j); h != test.want {
			t.Errorf("canopy height (%d, %d): have %g, want %g", test.i, test.j, h, test.want)
		}
	}
}

func TestReadDepositionFactors(t *testing.T) {
	for _, test := range []struct {
		name, file string
		want       DepositionFactors
	}{
		{"both", "2.5\n4\n", DepositionFactors{Gas: 2.5, Particle: 4}},
		{"extra fields", "2.5,x\n4\tx\n", DepositionFactors{Gas: 2.5, Particle: 4}},
		{"bad particle", "2.5\nabc", DepositionFactors{Gas: 2.5, Particle: 3}},
		{"empty", "", DefaultDepositionFactors},
		{"bad gas", "x", DefaultDepositionFactors},
	} {
		t.Run(test.name, func(t *testing.T) {
			f := ReadDepositionFactors(strings.NewReader(test.file))
			if diff := cmp.Diff(test.want, f); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
	if f := ReadDepositionFactors(nil); f != DefaultDepositionFactors {
		t.Errorf("nil reader: have %+v, want defaults", f)
	}
}

func TestReadVegetationStretchedLayers(t *testing.T) {
	g, err := NewGrid(20, 20, 2, 2, 0, 0, []float64{1, 4, 4, 4, 4})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	d.Log = quietLogger()
	// The trunk ends at 2 m. Layer index 1 is centered at 1.5 m.
	if err := d.ReadVegetation(strings.NewReader("D,10,20,2,4,100\n5,5\n")); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.6, 0.6, 1.2, 0, 0}
	got := d.Vegetation.Profile(3, 3)
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool {
		return !different(a, b, testTolerance)
	})); diff != "" {
		t.Errorf("profile (-want +got):\n%s", diff)
	}
}
