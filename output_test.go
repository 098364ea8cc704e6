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

	"github.com/ctessum/cdf"
	"github.com/google/go-cmp/cmp"
)

func TestWriteNetCDF(t *testing.T) {
	g, err := NewGrid(2, 3, 2, 2, 0, 0, StretchedLayers(2, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= d.Nx+1; i++ {
		for j := 0; j <= d.Ny+1; j++ {
			for k := 0; k <= d.Nz+1; k++ {
				d.U.Set(float64(i+10*j+100*k), i, j, k)
			}
		}
	}
	d.blocked[d.col(2, 1)] = 1
	d.WindDirection = 225
	d.SubDomainTop = 2
	d.Vegetation.Deposition = DepositionFactors{Gas: 2, Particle: 5}
	d.Vegetation.Coverage[Column{I: 1, J: 2}] = 0.5

	fname := filepath.Join(t.TempDir(), "windfield.ncf")
	w, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteNetCDF(w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{4, 5, 4}, f.Header.Lengths("U")); diff != "" {
		t.Errorf("U dimensions (-want +got):\n%s", diff)
	}
	if f.Header.Lengths("CanopyHeight") != nil {
		t.Error("CanopyHeight should not be written without canopy heights")
	}
	if dir := f.Header.GetAttribute("", "wind_direction").([]float64); dir[0] != 225 {
		t.Errorf("wind direction: have %g, want 225", dir[0])
	}
	if top := f.Header.GetAttribute("", "subdomain_top").([]int32); top[0] != 2 {
		t.Errorf("sub-domain top: have %d, want 2", top[0])
	}
	if gas := f.Header.GetAttribute("", "gas_deposition_factor").([]float64); gas[0] != 2 {
		t.Errorf("gas deposition factor: have %g, want 2", gas[0])
	}
	if p := f.Header.GetAttribute("", "particle_deposition_factor").([]float64); p[0] != 5 {
		t.Errorf("particle deposition factor: have %g, want 5", p[0])
	}

	u := make([]float32, 4*5*4)
	if _, err := f.Reader("U", nil, nil).Read(u); err != nil {
		t.Fatal(err)
	}
	nx, ny := 4, 5
	for _, test := range []struct{ i, j, k int }{{0, 0, 0}, {1, 2, 1}, {3, 4, 3}, {2, 1, 2}} {
		want := float32(test.i + 10*test.j + 100*test.k)
		if v := u[(test.k*ny+test.j)*nx+test.i]; v != want {
			t.Errorf("u(%d, %d, %d): have %g, want %g", test.i, test.j, test.k, v, want)
		}
	}

	blocked := make([]float32, nx*ny)
	if _, err := f.Reader("BlockedLayer", nil, nil).Read(blocked); err != nil {
		t.Fatal(err)
	}
	if blocked[1*nx+2] != 1 || blocked[1*nx+1] != 0 {
		t.Errorf("blocked layers: %v", blocked)
	}

	for _, test := range []struct {
		name string
		want float32
	}{
		{"GasDepositionScale", 1.5},
		{"ParticleDepositionScale", 3},
	} {
		scale := make([]float32, nx*ny)
		if _, err := f.Reader(test.name, nil, nil).Read(scale); err != nil {
			t.Fatal(err)
		}
		if v := scale[2*nx+1]; v != test.want {
			t.Errorf("%s in the vegetated column: have %g, want %g", test.name, v, test.want)
		}
		if v := scale[1*nx+2]; v != 1 {
			t.Errorf("%s in a plain column: have %g, want 1", test.name, v)
		}
	}
}
