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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// LoadStatus tracks whether the vegetation has been read.
type LoadStatus int

// Vegetation load states.
const (
	// Unloaded means no vegetation file has been read yet.
	Unloaded LoadStatus = iota
	// Empty means a vegetation file was read but contained no cells.
	Empty
	// Loaded means vegetation cells are available.
	Loaded
)

func (s LoadStatus) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

// Vegetation holds leaf-area-density profiles for the columns that
// contain vegetation. Columns without an entry in LAD have no
// vegetation.
type Vegetation struct {
	Status LoadStatus

	// LAD holds the leaf area density of each layer, indexed from 0 to
	// Nz-1 where index 0 is the ground layer.
	LAD map[Column][]float64

	// Coverage is the fractional ground coverage of each column.
	Coverage map[Column]float64

	// Cells is the number of coordinate records that were used.
	Cells int

	// Deposition scales dry deposition velocities in vegetated columns.
	Deposition DepositionFactors

	footprintLoaded bool
}

func newVegetation() *Vegetation {
	return &Vegetation{
		LAD:        make(map[Column][]float64),
		Coverage:   make(map[Column]float64),
		Deposition: DefaultDepositionFactors,
	}
}

// Exists reports whether any column has vegetation.
func (v *Vegetation) Exists() bool { return v.Status == Loaded }

// Profile returns the leaf area density profile of column (i, j), or
// nil if the column has no vegetation.
func (v *Vegetation) Profile(i, j int) []float64 { return v.LAD[Column{I: i, J: j}] }

// vegetationFields splits a vegetation record into its fields.
func vegetationFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == '\t' || r == ',' })
}

// isVegetationHeader reports whether fields start a new vegetation
// block.
func isVegetationHeader(f []string) bool {
	return len(f) > 4 && strings.Contains(f[0], "D")
}

// vegetationScanner walks the records of a vegetation file.
type vegetationScanner struct {
	s    *bufio.Scanner
	line int
}

func newVegetationScanner(r io.Reader) *vegetationScanner {
	return &vegetationScanner{s: bufio.NewScanner(r)}
}

// next returns the fields of the next non-blank record.
func (vs *vegetationScanner) next() ([]string, bool) {
	for vs.s.Scan() {
		vs.line++
		if f := vegetationFields(vs.s.Text()); len(f) > 0 {
			return f, true
		}
	}
	return nil, false
}

func (vs *vegetationScanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("windfield: reading vegetation line %d: %s", vs.line, fmt.Sprintf(format, args...))
}

func (vs *vegetationScanner) err() error {
	if err := vs.s.Err(); err != nil {
		return fmt.Errorf("windfield: reading vegetation: %v", err)
	}
	return nil
}

func parseFloats(f []string) ([]float64, error) {
	o := make([]float64, len(f))
	for i, s := range f {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		o[i] = v
	}
	return o, nil
}

// vegetationBlock holds the properties set by a header record.
type vegetationBlock struct {
	crown, trunk       float64 // heights [m]
	trunkLAD, crownLAD float64
	coverage           float64 // fraction
}

// lad returns the leaf area density at height z above the ground.
func (b vegetationBlock) lad(z float64) float64 {
	if z < 0 || z >= b.crown {
		return 0
	}
	c3 := b.coverage * b.coverage * b.coverage
	if z < b.trunk {
		return 0.3 * c3 * b.trunkLAD
	}
	return 0.3 * c3 * b.crownLAD
}

func parseVegetationBlock(f []string) (vegetationBlock, error) {
	if len(f) < 6 {
		return vegetationBlock{}, fmt.Errorf("header has %d fields but needs 6", len(f))
	}
	v, err := parseFloats(f[1:6])
	if err != nil {
		return vegetationBlock{}, err
	}
	return vegetationBlock{
		crown:    v[0],
		trunk:    v[1] * v[0] * 0.01,
		trunkLAD: v[2],
		crownLAD: v[3],
		coverage: v[4] * 0.01,
	}, nil
}

// vegetationColumn parses a coordinate record and returns the fine
// column it falls into.
func (d *Domain) vegetationColumn(f []string) (Column, bool, error) {
	xy, err := parseFloats(f[:2])
	if err != nil {
		return Column{}, false, err
	}
	i, j, ok := d.columnIndex(xy[0], xy[1])
	return Column{I: i, J: j}, ok, nil
}

// sourceFilter selects columns that are close to an emission source.
// It remembers the last source that was close enough so that
// neighboring cells usually need only one distance check.
type sourceFilter struct {
	d    *Domain
	last int
}

func (d *Domain) newSourceFilter() *sourceFilter {
	return &sourceFilter{d: d, last: -1}
}

// keep reports whether column c is to be used.
func (s *sourceFilter) keep(c Column) bool {
	d := s.d
	if d.SubDomainDistance >= subDomainDistanceOff {
		return true
	}
	x, y := d.CellCenter(c.I, c.J)
	p := geom.Point{X: x, Y: y}
	if s.last >= 0 && boundsDistance(d.Sources[s.last], p) <= d.SubDomainDistance {
		return true
	}
	for n, src := range d.Sources {
		if n == s.last {
			continue
		}
		if boundsDistance(src, p) <= d.SubDomainDistance {
			s.last = n
			return true
		}
	}
	return false
}

// boundsDistance returns the distance between p and the bounding box
// of g. It is zero when p is inside the box.
func boundsDistance(g geom.Geom, p geom.Point) float64 {
	b := g.Bounds()
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	return math.Hypot(dx, dy)
}

// ReadVegetation reads leaf area density profiles from r. Header
// records, marked by a "D" in the first field, set the crown height
// [m], the trunk height [% of crown height], the trunk and crown leaf
// area densities and the ground coverage [%] for the coordinate records
// that follow. Coordinate records give the x and y position of a
// vegetated cell. The profiles start at the blocked layer of each
// column, so the terrain must have been mapped before calling
// ReadVegetation. Vegetation is read at most once; later calls do
// nothing. A malformed record is an error and leaves the vegetation
// unloaded.
func (d *Domain) ReadVegetation(r io.Reader) error {
	veg := d.Vegetation
	if veg.Status != Unloaded {
		return nil
	}
	lad := make(map[Column][]float64)
	coverage := make(map[Column]float64)
	var block vegetationBlock
	var cells int
	filter := d.newSourceFilter()
	vs := newVegetationScanner(r)
	for {
		f, ok := vs.next()
		if !ok {
			break
		}
		if isVegetationHeader(f) {
			var err error
			if block, err = parseVegetationBlock(f); err != nil {
				return vs.errorf("%v", err)
			}
			continue
		}
		if len(f) < 2 || block.crown <= 1 {
			continue
		}
		c, in, err := d.vegetationColumn(f)
		if err != nil {
			return vs.errorf("%v", err)
		}
		if !in {
			continue
		}
		if filter.keep(c) {
			cells++
			p, ok := lad[c]
			if !ok {
				p = make([]float64, d.Nz)
				lad[c] = p
			}
			kk := d.BlockedLayer(c.I, c.J)
			for k := max(kk-1, 0); k < d.Nz; k++ {
				z := d.LayerTop[k] - d.LayerTop[kk] + d.Dz[k]*0.5
				if v := block.lad(z); v != 0 {
					p[k] = v
				}
			}
		}
		coverage[c] = block.coverage
	}
	if err := vs.err(); err != nil {
		return err
	}
	for c, p := range lad {
		if floats.Sum(p) == 0 {
			delete(lad, c)
		}
	}
	veg.LAD = lad
	veg.Coverage = coverage
	veg.Cells = cells
	if len(lad) > 0 {
		veg.Status = Loaded
	} else {
		veg.Status = Empty
	}
	d.Log.WithFields(logrus.Fields{
		"cells":   cells,
		"columns": len(lad),
	}).Info("read vegetation")
	return nil
}

// ReadVegetationDomain reads a vegetation file and adds a square
// prognostic sub-domain around every cell whose canopy is taller than
// 1 m. The half-width of the square is min(150, SubDomainFactor*height)
// meters. It is meant to be called before the terrain is mapped, and it
// only reads the file once.
func (d *Domain) ReadVegetationDomain(r io.Reader) error {
	if d.Vegetation.footprintLoaded {
		return nil
	}
	var cells int
	filter := d.newSourceFilter()
	err := d.scanCanopy(r, func(c Column, h float64) {
		if !filter.keep(c) {
			return
		}
		cells++
		if h > 1 {
			d.markFootprint(c.I, c.J, h)
		}
	})
	if err != nil {
		return err
	}
	d.Vegetation.footprintLoaded = true
	d.Log.WithField("cells", cells).Info("read vegetation sub-domains")
	return nil
}

// ReadVegetationHeight reads a vegetation file and stores the tallest
// canopy height of each column in CanopyHeight. The source distance
// filter is not applied.
func (d *Domain) ReadVegetationHeight(r io.Reader) error {
	ch := d.CanopyHeight
	if ch == nil {
		ch = newField2D(&d.Grid)
	}
	err := d.scanCanopy(r, func(c Column, h float64) {
		ch.Set(math.Max(h, ch.Get(c.I, c.J)), c.I, c.J)
	})
	if err != nil {
		return err
	}
	d.CanopyHeight = ch
	return nil
}

// scanCanopy calls f with the current canopy height for every
// coordinate record of a vegetation file that falls inside the grid.
func (d *Domain) scanCanopy(r io.Reader, f func(c Column, height float64)) error {
	var height float64
	vs := newVegetationScanner(r)
	for {
		rec, ok := vs.next()
		if !ok {
			break
		}
		if isVegetationHeader(rec) {
			h, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
			if err != nil {
				return vs.errorf("%v", err)
			}
			height = h
			continue
		}
		if len(rec) < 2 {
			continue
		}
		c, in, err := d.vegetationColumn(rec)
		if err != nil {
			return vs.errorf("%v", err)
		}
		if in {
			f(c, height)
		}
	}
	return vs.err()
}

// DepositionFactors scale dry deposition velocities in vegetated
// columns.
type DepositionFactors struct {
	Gas, Particle float64
}

// DefaultDepositionFactors are used when no factors are given.
var DefaultDepositionFactors = DepositionFactors{Gas: 1.5, Particle: 3}

// ReadDepositionFactors reads the gas factor from the first field of
// the first line of r and the particle factor from the first field of
// the second line. Values that are missing or cannot be parsed keep
// their defaults.
func ReadDepositionFactors(r io.Reader) DepositionFactors {
	f := DefaultDepositionFactors
	if r == nil {
		return f
	}
	s := bufio.NewScanner(r)
	for _, v := range []*float64{&f.Gas, &f.Particle} {
		if !s.Scan() {
			return f
		}
		rec := vegetationFields(s.Text())
		if len(rec) == 0 {
			return f
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return f
		}
		*v = x
	}
	return f
}
