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
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
)

// Building is a building footprint with its height [m] above the
// ground.
type Building struct {
	geom.Polygonal
	Height float64
}

// ReadBuildings reads building footprints from a polygon shapefile with
// a "height" attribute.
func ReadBuildings(filename string) ([]*Building, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("windfield: opening building shapefile: %v", err)
	}
	defer d.Close()
	var o []*Building
	for {
		g, fields, more := d.DecodeRowFields("height")
		if !more {
			break
		}
		if err := d.Error(); err != nil {
			return nil, fmt.Errorf("windfield: reading building shapefile %s: %v", filename, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("windfield: building shapefile %s: geometry %d is %T, not a polygon", filename, len(o)+1, g)
		}
		h, err := strconv.ParseFloat(strings.TrimSpace(fields["height"]), 64)
		if err != nil {
			return nil, fmt.Errorf("windfield: building shapefile %s: height of building %d: %v", filename, len(o)+1, err)
		}
		o = append(o, &Building{Polygonal: p, Height: h})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("windfield: reading building shapefile %s: %v", filename, err)
	}
	return o, nil
}

// WriteBuildings writes building footprints to a polygon shapefile in
// the format read by ReadBuildings.
func WriteBuildings(filename string, buildings []*Building) error {
	type rec struct {
		geom.Polygon
		Height float64
	}
	e, err := shp.NewEncoder(filename, rec{})
	if err != nil {
		return fmt.Errorf("windfield: creating building shapefile: %v", err)
	}
	for _, b := range buildings {
		var p geom.Polygon
		for _, pp := range b.Polygons() {
			p = append(p, pp...)
		}
		if err := e.Encode(rec{Polygon: p, Height: b.Height}); err != nil {
			e.Close()
			return fmt.Errorf("windfield: writing building shapefile: %v", err)
		}
	}
	e.Close()
	return nil
}

// RasterizeBuildings sets the cutout of every column whose center lies
// inside a building to the height of the tallest such building. It
// returns the number of columns with a cutout and sets BuildingsExist.
func (d *Domain) RasterizeBuildings(buildings []*Building) int {
	index := rtree.NewTree(25, 50)
	for _, b := range buildings {
		index.Insert(b)
	}
	nprocs := numWorkers()
	counts := make([]int, nprocs)
	stripe(nprocs, 1, d.Nx, func(pp, i int) {
		for j := 1; j <= d.Ny; j++ {
			x, y := d.CellCenter(i, j)
			p := geom.Point{X: x, Y: y}
			h := d.Cutout.Get(i, j)
			for _, bI := range index.SearchIntersect(p.Bounds()) {
				b := bI.(*Building)
				if p.Within(b) != geom.Outside {
					h = math.Max(h, b.Height)
				}
			}
			d.Cutout.Set(h, i, j)
			if h > 0 {
				counts[pp]++
			}
		}
	})
	var n int
	for _, c := range counts {
		n += c
	}
	d.BuildingsExist = n > 0
	d.Log.WithFields(logrus.Fields{
		"buildings": len(buildings),
		"columns":   n,
	}).Info("rasterized buildings")
	return n
}

// MarkBuildingSubDomains adds a square prognostic sub-domain around
// every column with a cutout. The half-width of the square is
// min(150, SubDomainFactor*height) meters.
func (d *Domain) MarkBuildingSubDomains() {
	for i := 1; i <= d.Nx; i++ {
		for j := 1; j <= d.Ny; j++ {
			if h := d.Cutout.Get(i, j); h > 0 {
				d.markFootprint(i, j, h)
			}
		}
	}
}
