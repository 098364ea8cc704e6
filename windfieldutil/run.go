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


package windfieldutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windfield"
)

// Run calculates the wind field for every weather situation in c.
// Log messages are written to stdout and to c.LogFile. Output files in
// blob storage are uploaded once every situation has been calculated.
func Run(ctx context.Context, stdout io.Writer, c *RunConfig) error {
	startTime := time.Now()

	var upload uploader
	logfile, err := os.Create(upload.maybeUpload(c.LogFile))
	if err != nil {
		return fmt.Errorf("windfield: problem creating log file: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(stdout, logfile)
	log.Level = c.LogLevel
	log.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}

	err = run(ctx, log, c, &upload)
	if err != nil {
		log.WithError(err).Error("wind-field calculation failed")
	} else {
		log.WithField("elapsed", time.Since(startTime)).Info("wind-field calculation finished")
	}
	if cerr := logfile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return upload.uploadOutput(ctx)
}

// coarseCacheSize is the number of coarse grids kept in memory.
const coarseCacheSize = 2

func run(ctx context.Context, log *logrus.Logger, c *RunConfig, upload *uploader) error {
	d, err := windfield.NewDomain(c.Grid)
	if err != nil {
		return err
	}
	d.Log = log
	d.FlowLevel = c.FlowLevel
	d.SubDomainDistance = c.SubDomainDistance
	d.SubDomainFactor = c.SubDomainFactor
	d.SubDomainExtraLayers = c.SubDomainExtraLayers
	log.WithFields(logrus.Fields{
		"nx":    c.Grid.Nx,
		"ny":    c.Grid.Ny,
		"nz":    c.Grid.Nz,
		"level": c.FlowLevel,
	}).Info("initializing domain")

	setTerrain(ctx, d, c.TerrainFile)
	if d.Sources, err = readSources(ctx, c.SourcesFile); err != nil {
		return err
	}
	if err = setBuildings(ctx, d, c.BuildingsFile); err != nil {
		return err
	}

	w := &windfield.WindField{
		Domain:                     d,
		WriteTerrainEverySituation: c.TerrainOutputEverySituation,
		ReferencePoint:             c.ReferencePoint,
	}
	if c.VegetationFile != "" {
		vegFile, err := maybeDownload(ctx, c.VegetationFile)
		if err != nil {
			return err
		}
		w.VegetationFile = func() (io.ReadCloser, error) { return os.Open(vegFile) }
		r, err := w.VegetationFile()
		if err != nil {
			return fmt.Errorf("windfield: opening vegetation: %v", err)
		}
		err = d.ReadVegetationHeight(r)
		r.Close()
		if err != nil {
			return err
		}
	}
	if c.DepositionFactorsFile != "" {
		depFile, err := maybeDownload(ctx, c.DepositionFactorsFile)
		if err != nil {
			log.WithError(err).Warn("using default deposition factors")
		} else {
			w.DepositionFactorsFile = func() (io.ReadCloser, error) { return os.Open(depFile) }
		}
	}
	if c.TerrainOutput != "" {
		terrainOutput := upload.maybeUpload(c.TerrainOutput)
		w.TerrainOutput = func() (io.WriteCloser, error) { return os.Create(terrainOutput) }
	}

	coarse := newCoarseCache(coarseCacheSize)
	var coarseKey string
	for n, path := range c.CoarseFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		situationLog := log.WithFields(logrus.Fields{"situation": n + 1, "coarse_file": path})
		cg, key, err := coarse.get(ctx, path)
		if err != nil {
			return err
		}
		if key == coarseKey {
			situationLog.Debug("coarse grid unchanged")
		} else {
			d.SetCoarse(cg)
		}
		coarseKey = key

		situationLog.Info("calculating wind field")
		if err = w.Calculate(n == 0); err != nil {
			return err
		}
		if err = writeOutput(d, upload.maybeUpload(situationFile(c.OutputFile, n))); err != nil {
			return err
		}
		situationLog.WithFields(logrus.Fields{
			"wind_direction": d.WindDirection,
			"wind_speed":     d.WindSpeed,
		}).Info("wrote wind field")
	}
	return nil
}

// setTerrain reads the authoritative terrain in path. A missing or
// corrupt terrain file is logged and the terrain is derived from the
// coarse grid instead.
func setTerrain(ctx context.Context, d *windfield.Domain, path string) {
	if path == "" {
		return
	}
	if err := readTerrain(ctx, d, path); err != nil {
		d.Log.WithError(err).WithField("terrain_file", path).Warn("using terrain derived from the coarse grid")
	}
}

func readTerrain(ctx context.Context, d *windfield.Domain, path string) error {
	local, err := maybeDownload(ctx, path)
	if err != nil {
		return err
	}
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("windfield: opening terrain file: %v", err)
	}
	defer f.Close()
	g, err := windfield.ReadASCIIGrid(f)
	if err != nil {
		return fmt.Errorf("windfield: reading terrain file %s: %v", path, err)
	}
	return d.SetTerrain(g)
}

func setBuildings(ctx context.Context, d *windfield.Domain, path string) error {
	if path == "" {
		return nil
	}
	local, err := maybeDownload(ctx, path)
	if err != nil {
		return err
	}
	buildings, err := windfield.ReadBuildings(local)
	if err != nil {
		return err
	}
	d.RasterizeBuildings(buildings)
	if d.FlowLevel == windfield.Prognostic {
		d.MarkBuildingSubDomains()
	}
	return nil
}

// readSources reads the emission source geometries from a shapefile.
func readSources(ctx context.Context, path string) ([]geom.Geom, error) {
	if path == "" {
		return nil, nil
	}
	local, err := maybeDownload(ctx, path)
	if err != nil {
		return nil, err
	}
	dec, err := shp.NewDecoder(local)
	if err != nil {
		return nil, fmt.Errorf("windfield: opening sources shapefile: %v", err)
	}
	defer dec.Close()
	var o []geom.Geom
	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		o = append(o, g)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("windfield: reading sources shapefile %s: %v", path, err)
	}
	return o, nil
}

func writeOutput(d *windfield.Domain, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("windfield: creating output file: %v", err)
	}
	if err = d.WriteNetCDF(f); err != nil {
		f.Close()
		return fmt.Errorf("windfield: writing output file %s: %v", path, err)
	}
	return f.Close()
}
