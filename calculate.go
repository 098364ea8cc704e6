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
	"io"

	"github.com/sirupsen/logrus"
)

// DomainManipulator is a class of functions that operate on the entire
// domain. The prognostic and diagnostic wind-field solvers are
// DomainManipulators: they receive the mapped wind field together with
// the blocked layers, surface heights, cutouts and the prognostic
// sub-domain ceiling and refine the wind field in place.
type DomainManipulator func(d *Domain) error

// SetCoarse sets the coarse grid that the wind field is mapped from.
// It must be called whenever the weather situation changes the coarse
// grid. Without an authoritative terrain, the reference surface height
// is reset to the lowest coarse surface. With one, the lowest coarse
// surface is only used until the first mapping pass replaces it.
func (d *Domain) SetCoarse(c *CoarseGrid) {
	if !d.Authoritative() || d.Coarse == nil {
		d.MinSurface = c.minSurface()
	}
	d.Coarse = c
}

// WindField computes the microscale wind field once per weather
// situation.
type WindField struct {
	*Domain

	// Prognostic and Diagnostic are the external wind-field solvers.
	// Either may be nil.
	Prognostic, Diagnostic DomainManipulator

	// TerrainOutput, if not nil, opens the destination of the derived
	// terrain grid.
	TerrainOutput func() (io.WriteCloser, error)

	// WriteTerrainEverySituation causes the derived terrain to be
	// written after every situation rather than only after the first.
	WriteTerrainEverySituation bool

	// VegetationFile, if not nil, opens the vegetation file.
	VegetationFile func() (io.ReadCloser, error)

	// DepositionFactorsFile, if not nil, opens the deposition factor
	// file, which is read during the first calculation.
	DepositionFactorsFile func() (io.ReadCloser, error)

	// ReferencePoint is the reference point of the prognostic
	// sub-domains. If it is the zero Column, it is searched for by the
	// first calculation and kept for later ones.
	ReferencePoint Column
}

// Calculate computes the wind field for the current coarse grid. first
// tells whether this is the first weather situation of the run.
func (w *WindField) Calculate(first bool) error {
	d := w.Domain
	if d.Coarse == nil {
		return fmt.Errorf("windfield: no coarse grid has been set")
	}
	if first {
		w.readDepositionFactors()
	}
	// Vegetation footprints only mark prognostic sub-domains, which no
	// other flow field level reads.
	if w.VegetationFile != nil && d.FlowLevel == Prognostic && !d.Vegetation.footprintLoaded {
		if err := w.withVegetation(d.ReadVegetationDomain); err != nil {
			return err
		}
	}

	ref, err := d.SubDomainReference(w.ReferencePoint)
	if err != nil {
		d.Log.WithError(err).Error("are the absolute building heights below the surface?")
		return err
	}
	w.ReferencePoint = ref

	if err := d.MapTerrain(); err != nil {
		return err
	}
	if w.TerrainOutput != nil && (first || w.WriteTerrainEverySituation) {
		if err := w.writeTerrain(); err != nil {
			d.Log.WithError(err).Warn("writing derived terrain")
		}
	}

	d.ShieldObstacles()

	if d.FlowLevel == Prognostic && (d.BuildingsExist || w.VegetationFile != nil) {
		if w.VegetationFile != nil && d.Vegetation.Status == Unloaded {
			if err := w.withVegetation(d.ReadVegetation); err != nil {
				return err
			}
		}
		d.Log.WithFields(logrus.Fields{
			"reference_point": w.ReferencePoint,
			"subdomain_top":   d.SubDomainTop,
		}).Info("calculating prognostic wind field around obstacles")
		if w.Prognostic != nil {
			if err := w.Prognostic(d); err != nil {
				return fmt.Errorf("windfield: prognostic solver: %v", err)
			}
		}
	}

	if d.FlowLevel == NoBuildings {
		d.Log.Info("calculating diagnostic wind field")
	} else {
		d.Log.WithField("level", d.FlowLevel).Info("calculating diagnostic wind field around obstacles")
	}
	if w.Diagnostic != nil {
		if err := w.Diagnostic(d); err != nil {
			return fmt.Errorf("windfield: diagnostic solver: %v", err)
		}
	}

	d.ConserveMass()
	return nil
}

func (w *WindField) withVegetation(f func(io.Reader) error) error {
	r, err := w.VegetationFile()
	if err != nil {
		return fmt.Errorf("windfield: opening vegetation: %v", err)
	}
	defer r.Close()
	return f(r)
}

// readDepositionFactors sets the vegetation deposition factors. A file
// that cannot be opened leaves the defaults in place.
func (w *WindField) readDepositionFactors() {
	if w.DepositionFactorsFile == nil {
		return
	}
	d := w.Domain
	r, err := w.DepositionFactorsFile()
	if err != nil {
		d.Log.WithError(err).Warn("using default deposition factors")
		return
	}
	defer r.Close()
	d.Vegetation.Deposition = ReadDepositionFactors(r)
	d.Log.WithFields(logrus.Fields{
		"gas":      d.Vegetation.Deposition.Gas,
		"particle": d.Vegetation.Deposition.Particle,
	}).Info("read deposition factors")
}

func (w *WindField) writeTerrain() error {
	f, err := w.TerrainOutput()
	if err != nil {
		return err
	}
	if err := w.DerivedTerrain().Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
