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
	"math"
	"testing"
)

// shieldingDomain returns a 25x25 domain with 2 m cells, a flat
// surface at 100 m and a uniform wind.
func shieldingDomain(t *testing.T) *Domain {
	g, err := NewGrid(25, 25, 2, 2, 0, 0, StretchedLayers(2, 1, 5))
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDomain(g)
	if err != nil {
		t.Fatal(err)
	}
	d.Log = quietLogger()
	d.MinSurface = 100
	for i := 0; i <= d.Nx+1; i++ {
		for j := 0; j <= d.Ny+1; j++ {
			d.SurfaceHeight.Set(100, i, j)
			for k := 1; k <= d.Nz; k++ {
				d.U.Set(1, i, j, k)
				d.V.Set(1, i, j, k)
				d.W.Set(1, i, j, k)
			}
		}
	}
	return d
}

// addObstacle puts a building of the given height in column (i, j).
func addObstacle(d *Domain, i, j int, height float64) {
	d.Cutout.Set(height, i, j)
	d.SurfaceHeight.Set(d.MinSurface+height, i, j)
	d.BuildingsExist = true
}

func TestShieldingFactor(t *testing.T) {
	t.Run("no obstacles", func(t *testing.T) {
		d := shieldingDomain(t)
		for k := 1; k < d.Nz; k++ {
			if f := d.ShieldingFactor(12, 12, k); f != 1 {
				t.Errorf("layer %d: factor %g, want 1", k, f)
			}
		}
	})
	t.Run("obstacle out of range", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 12+11, 12, 10)
		if f := d.ShieldingFactor(12, 12, 1); f != 1 {
			t.Errorf("factor %g, want 1", f)
		}
	})
	t.Run("low cutout ignored", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 13, 12, 1)
		if f := d.ShieldingFactor(12, 12, 1); f != 1 {
			t.Errorf("factor %g, want 1", f)
		}
	})
	t.Run("east", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 13, 12, 5)
		want := 0.19 * math.Log(2.5*10)
		if f := d.ShieldingFactor(12, 12, 1); different(f, want, testTolerance) {
			t.Errorf("factor %g, want %g", f, want)
		}
		// The middle of layer 4 is above the obstacle.
		if f := d.ShieldingFactor(12, 12, 4); f != 1 {
			t.Errorf("layer 4: factor %g, want 1", f)
		}
	})
	t.Run("first obstacle only", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 12, 14, 5)
		addObstacle(d, 12, 15, 5)
		want := 0.19 * math.Log(4.5*10)
		if f := d.ShieldingFactor(12, 12, 1); different(f, want, testTolerance) {
			t.Errorf("factor %g, want %g", f, want)
		}
	})
	t.Run("two directions", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 11, 12, 5)
		addObstacle(d, 13, 13, 5)
		want := 0.19 * math.Log(2.5*10) * 0.19 * math.Log((math.Hypot(2, 2)+0.5)*10)
		if f := d.ShieldingFactor(12, 12, 1); different(f, want, testTolerance) {
			t.Errorf("factor %g, want %g", f, want)
		}
	})
	t.Run("amplification", func(t *testing.T) {
		d := shieldingDomain(t)
		addObstacle(d, 2, 12, 5)
		f := d.ShieldingFactor(12, 12, 1)
		want := 0.19 * math.Log(20.5*10)
		if different(f, want, testTolerance) {
			t.Errorf("factor %g, want %g", f, want)
		}
		if f <= 1 {
			t.Errorf("factor %g should be greater than 1", f)
		}
	})
}

func TestShieldObstacles(t *testing.T) {
	d := shieldingDomain(t)
	d.FlowLevel = Diagnostic
	addObstacle(d, 13, 12, 5)
	d.ShieldObstacles()
	want := 0.19 * math.Log(2.5*10)
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"u", d.U.Get(12, 12, 1)},
		{"v", d.V.Get(12, 12, 1)},
		{"w", d.W.Get(12, 12, 1)},
	} {
		if different(v.val, want, testTolerance) {
			t.Errorf("%s: have %g, want %g", v.name, v.val, want)
		}
	}
	if u := d.U.Get(12, 12, 4); u != 1 {
		t.Errorf("u above the obstacle: have %g, want 1", u)
	}
	if u := d.U.Get(5, 5, 1); u != 1 {
		t.Errorf("u far from the obstacle: have %g, want 1", u)
	}
}

func TestShieldObstaclesConditions(t *testing.T) {
	for _, test := range []struct {
		name      string
		level     FlowFieldLevel
		distance  float64
		subDomain bool
		buildings bool
		shielded  bool
	}{
		{"diagnostic", Diagnostic, subDomainDistanceOff, true, true, true},
		{"no buildings level", NoBuildings, subDomainDistanceOff, false, true, true},
		{"no buildings level in subdomain", NoBuildings, subDomainDistanceOff, true, true, false},
		{"prognostic", Prognostic, subDomainDistanceOff, false, true, false},
		{"prognostic reduced outside subdomain", Prognostic, 100, false, true, true},
		{"prognostic reduced inside subdomain", Prognostic, 100, true, true, false},
		{"no obstacles", Diagnostic, subDomainDistanceOff, false, false, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			d := shieldingDomain(t)
			d.FlowLevel = test.level
			d.SubDomainDistance = test.distance
			addObstacle(d, 13, 12, 5)
			d.BuildingsExist = test.buildings
			if test.subDomain {
				d.MarkSubDomain(12, 12)
			}
			d.ShieldObstacles()
			shielded := d.U.Get(12, 12, 1) != 1
			if shielded != test.shielded {
				t.Errorf("shielded: have %v, want %v", shielded, test.shielded)
			}
		})
	}
}
