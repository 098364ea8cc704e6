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

	"github.com/ctessum/atmos/seinfeld"
	"github.com/ctessum/atmos/wesely1989"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// SurfaceState describes the near-surface meteorology used to
// calculate dry deposition velocities.
type SurfaceState struct {
	// SurfaceLayer is the height of the surface layer.
	SurfaceLayer *unit.Unit

	// Roughness is the roughness length.
	Roughness *unit.Unit

	// FrictionVelocity is u*.
	FrictionVelocity *unit.Unit

	// ObukhovLength is the Monin-Obukhov length.
	ObukhovLength *unit.Unit

	// Temperature is the surface air temperature.
	Temperature *unit.Unit

	// Pressure is the surface pressure.
	Pressure *unit.Unit

	// AirDensity is the surface air density.
	AirDensity *unit.Unit

	// Radiation is the downward solar irradiation [W m-2].
	Radiation float64

	// Rain and Dew tell whether the ground is wet.
	Rain, Dew bool
}

// check returns an error if any field is missing or has the wrong
// dimensions.
func (s *SurfaceState) check() error {
	for _, v := range []struct {
		name string
		u    *unit.Unit
		d    unit.Dimensions
	}{
		{"SurfaceLayer", s.SurfaceLayer, unit.Meter},
		{"Roughness", s.Roughness, unit.Meter},
		{"FrictionVelocity", s.FrictionVelocity, unit.MeterPerSecond},
		{"ObukhovLength", s.ObukhovLength, unit.Meter},
		{"Temperature", s.Temperature, unit.Kelvin},
		{"Pressure", s.Pressure, unit.Pascal},
		{"AirDensity", s.AirDensity, unit.KilogramPerMeter3},
	} {
		if v.u == nil {
			return fmt.Errorf("windfield: surface state %s is missing", v.name)
		}
		if err := v.u.Check(v.d); err != nil {
			return fmt.Errorf("windfield: surface state %s: %v", v.name, err)
		}
	}
	return nil
}

// seasons picks the deposition season from the temperature.
func (s *SurfaceState) seasons() (seinfeld.SeasonalCategory, wesely1989.SeasonCategory) {
	t := s.Temperature.Value()
	switch {
	case t > 273+20:
		return seinfeld.Midsummer, wesely1989.Midsummer
	case t > 273+10:
		return seinfeld.Autumn, wesely1989.Autumn
	case t > 273:
		return seinfeld.LateAutumn, wesely1989.LateAutumn
	default:
		return seinfeld.Winter, wesely1989.Winter
	}
}

// landUse returns the land use categories of column (i, j): forest
// where there is vegetation and built-up or grass land otherwise.
func (d *Domain) landUse(i, j int) (seinfeld.LandUseCategory, wesely1989.LandUseCategory) {
	if _, ok := d.Vegetation.LAD[Column{I: i, J: j}]; ok {
		return seinfeld.Deciduous, wesely1989.Deciduous
	}
	if d.Cutout.Get(i, j) > 0 {
		return seinfeld.Desert, wesely1989.Urban
	}
	return seinfeld.Grass, wesely1989.Range
}

// vegetationScale scales v by factor in proportion to the vegetation
// coverage of column (i, j).
func (d *Domain) vegetationScale(i, j int, v, factor float64) float64 {
	cov, ok := d.Vegetation.Coverage[Column{I: i, J: j}]
	if !ok || cov <= 0 {
		return v
	}
	return v * (1 + (factor-1)*cov)
}

// depositionScale returns the factor that deposition velocities in
// each column are multiplied by, or nil if no column has vegetation
// coverage.
func (d *Domain) depositionScale(factor float64) *sparse.DenseArray {
	if len(d.Vegetation.Coverage) == 0 {
		return nil
	}
	o := newField2D(&d.Grid)
	for i := 0; i <= d.Nx+1; i++ {
		for j := 0; j <= d.Ny+1; j++ {
			o.Set(d.vegetationScale(i, j, 1, factor), i, j)
		}
	}
	return o
}

// GasDeposition returns the dry deposition velocity of a gas in column
// (i, j). In vegetated columns the velocity is increased by the gas
// deposition factor in Vegetation.Deposition, weighted by the
// vegetation coverage.
func (d *Domain) GasDeposition(i, j int, s *SurfaceState, gas *wesely1989.GasData) (*unit.Unit, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	_, season := s.seasons()
	_, lu := d.landUse(i, j)
	const slope = 0.
	v := seinfeld.DryDepGas(s.SurfaceLayer.Value(), s.Roughness.Value(),
		s.FrictionVelocity.Value(), s.ObukhovLength.Value(), s.Temperature.Value(),
		s.AirDensity.Value(), s.Radiation, slope, gas, season, lu,
		s.Rain, s.Dew, gas == wesely1989.So2Data, gas == wesely1989.O3Data)
	return unit.New(d.vegetationScale(i, j, v, d.Vegetation.Deposition.Gas), unit.MeterPerSecond), nil
}

// ParticleDeposition returns the dry deposition velocity of particles
// with the given diameter and density in column (i, j). In vegetated
// columns the velocity is increased by the particle deposition factor
// in Vegetation.Deposition, weighted by the vegetation coverage.
func (d *Domain) ParticleDeposition(i, j int, s *SurfaceState, diameter, density *unit.Unit) (*unit.Unit, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := diameter.Check(unit.Meter); err != nil {
		return nil, fmt.Errorf("windfield: particle diameter: %v", err)
	}
	if err := density.Check(unit.KilogramPerMeter3); err != nil {
		return nil, fmt.Errorf("windfield: particle density: %v", err)
	}
	season, _ := s.seasons()
	lu, _ := d.landUse(i, j)
	v := seinfeld.DryDepParticle(s.SurfaceLayer.Value(), s.Roughness.Value(),
		s.FrictionVelocity.Value(), s.ObukhovLength.Value(), diameter.Value(),
		s.Temperature.Value(), s.Pressure.Value(), density.Value(),
		s.AirDensity.Value(), season, lu)
	return unit.New(d.vegetationScale(i, j, v, d.Vegetation.Deposition.Particle), unit.MeterPerSecond), nil
}
