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

// Package windfield computes terrain-following diagnostic wind fields on a
// fine microscale grid from a coarse background terrain and wind grid.
//
// Grid indices are 1-based in every direction to keep the staggered-face
// conventions explicit: index 0 and index n+1 are halo cells. U is stored on
// the west face, V on the south face and W on the bottom face of cell
// (i, j, k), so the top face of cell k is W at k+1.
package windfield

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.3.0"

// FlowFieldLevel selects how the wind field around obstacles is refined.
type FlowFieldLevel int

// Flow field levels.
const (
	// NoBuildings computes the wind field without obstacle refinement.
	NoBuildings FlowFieldLevel = iota
	// Diagnostic refines the field with the diagnostic solver only.
	Diagnostic
	// Prognostic runs the prognostic solver inside the sub-domains.
	Prognostic
)

func (l FlowFieldLevel) String() string {
	switch l {
	case NoBuildings:
		return "none"
	case Diagnostic:
		return "diagnostic"
	case Prognostic:
		return "prognostic"
	default:
		return fmt.Sprintf("FlowFieldLevel(%d)", int(l))
	}
}

// subDomainDistanceOff is the SubDomainDistance at or above which the
// distance filter around emission sources is switched off.
const subDomainDistanceOff = 10000

// Grid describes the fine computational grid.
type Grid struct {
	// Nx, Ny and Nz are the number of cells in each direction.
	Nx, Ny, Nz int

	// Dx and Dy are the horizontal cell sizes [m].
	Dx, Dy float64

	// X0 and Y0 are the coordinates of the lower-left corner of the grid.
	X0, Y0 float64

	// LayerTop holds the cumulative height of the top of each layer
	// above the lowest surface, with LayerTop[0] = 0.
	LayerTop []float64

	// Dz holds the layer thicknesses, 1-based with Dz[0] = 0.
	Dz []float64
}

// NewGrid returns a grid with the given layer thicknesses, ordered
// from the bottom layer up.
func NewGrid(nx, ny int, dx, dy, x0, y0 float64, dz []float64) (*Grid, error) {
	g := &Grid{
		Nx: nx, Ny: ny, Nz: len(dz),
		Dx: dx, Dy: dy,
		X0: x0, Y0: y0,
	}
	if nx < 1 || ny < 1 || len(dz) < 1 {
		return nil, fmt.Errorf("windfield: invalid grid size %dx%dx%d", nx, ny, len(dz))
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("windfield: invalid grid cell size %gx%g", dx, dy)
	}
	g.Dz = make([]float64, g.Nz+2)
	g.LayerTop = make([]float64, g.Nz+1)
	for k, h := range dz {
		if h <= 0 {
			return nil, fmt.Errorf("windfield: layer %d has thickness %g but should be >0", k+1, h)
		}
		g.Dz[k+1] = h
		g.LayerTop[k+1] = g.LayerTop[k] + h
	}
	return g, nil
}

// StretchedLayers returns n layer thicknesses starting at first and
// growing by factor from one layer to the next.
func StretchedLayers(first, factor float64, n int) []float64 {
	dz := make([]float64, n)
	h := first
	for k := range dz {
		dz[k] = h
		h *= factor
	}
	return dz
}

// CellCenter returns the horizontal coordinates of the center of
// column (i, j).
func (g *Grid) CellCenter(i, j int) (x, y float64) {
	return g.X0 + (float64(i)-0.5)*g.Dx, g.Y0 + (float64(j)-0.5)*g.Dy
}

// columnIndex returns the fine column containing (x, y) and whether it
// is inside the grid.
func (g *Grid) columnIndex(x, y float64) (i, j int, ok bool) {
	i = int((x-g.X0)/g.Dx) + 1
	j = int((y-g.Y0)/g.Dy) + 1
	return i, j, i >= 1 && i <= g.Nx && j >= 1 && j <= g.Ny
}

// Column identifies a fine grid column.
type Column struct {
	I, J int
}

// Domain holds the fine grid together with every field the wind-field
// calculation reads or writes. A Domain is not safe for concurrent use
// by more than one calculation at a time.
type Domain struct {
	Grid

	// Coarse is the background terrain and wind grid.
	Coarse *CoarseGrid

	// U, V and W are the staggered wind components, with shape
	// [Nx+2][Ny+2][Nz+2].
	U, V, W *sparse.DenseArray

	// SurfaceHeight is the absolute surface height of each column
	// including terrain and building occlusion.
	SurfaceHeight *sparse.DenseArray

	// BuildingHeight is the occlusion height above bare terrain. It is a
	// running maximum.
	BuildingHeight *sparse.DenseArray

	// Cutout is the registered building height of each column.
	Cutout *sparse.DenseArray

	// Terrain is the authoritative fine terrain height.
	// It is nil when the terrain is derived from the coarse grid.
	Terrain *sparse.DenseArray

	// TerrainMin is the minimum of Terrain.
	TerrainMin float64

	// CanopyHeight is the maximum vegetation height per column. It is
	// only allocated when canopy heights have been read.
	CanopyHeight *sparse.DenseArray

	// MinSurface is the reference minimum surface height.
	MinSurface float64

	// SubDomainTop is the highest blocked layer inside the prognostic
	// sub-domains plus SubDomainExtraLayers, capped at Nz.
	SubDomainTop int

	// WindDirection [degrees] and WindSpeed [m/s] describe the mean
	// wind about 10 m above the ground after the last mapping pass.
	WindDirection, WindSpeed float64

	// Vegetation holds the leaf-area-density profiles.
	Vegetation *Vegetation

	// FlowLevel selects the refinement applied around obstacles.
	FlowLevel FlowFieldLevel

	// SubDomainDistance is the maximum distance [m] between an emission
	// source and a vegetation cell for the cell to be considered.
	// Values >= 10000 switch the filter off.
	SubDomainDistance float64

	// SubDomainFactor scales obstacle heights into the half-width of the
	// prognostic sub-domain around them.
	SubDomainFactor float64

	// SubDomainExtraLayers is the number of layers added on top of the
	// highest blocked sub-domain layer.
	SubDomainExtraLayers int

	// BuildingsExist is true when at least one column has a cutout.
	BuildingsExist bool

	// Sources are the emission source geometries used by the distance
	// filter.
	Sources []geom.Geom

	// Log receives progress and problem reports.
	Log logrus.FieldLogger

	blocked   []int
	subDomain []bool
}

// NewDomain allocates the fields for grid g.
func NewDomain(g *Grid) (*Domain, error) {
	if g == nil || g.Nx < 1 || g.Ny < 1 || g.Nz < 1 {
		return nil, fmt.Errorf("windfield: invalid grid")
	}
	if len(g.LayerTop) != g.Nz+1 || len(g.Dz) < g.Nz+1 {
		return nil, fmt.Errorf("windfield: grid has %d layer heights and %d thicknesses for %d layers",
			len(g.LayerTop), len(g.Dz), g.Nz)
	}
	d := &Domain{
		Grid:                 *g,
		U:                    sparse.ZerosDense(g.Nx+2, g.Ny+2, g.Nz+2),
		V:                    sparse.ZerosDense(g.Nx+2, g.Ny+2, g.Nz+2),
		W:                    sparse.ZerosDense(g.Nx+2, g.Ny+2, g.Nz+2),
		SurfaceHeight:        newField2D(g),
		BuildingHeight:       newField2D(g),
		Cutout:               newField2D(g),
		Vegetation:           newVegetation(),
		SubDomainDistance:    subDomainDistanceOff,
		SubDomainFactor:      15,
		SubDomainExtraLayers: 1,
		SubDomainTop:         1,
		Log:                  logrus.StandardLogger(),
		blocked:              make([]int, (g.Nx+2)*(g.Ny+2)),
		subDomain:            make([]bool, (g.Nx+2)*(g.Ny+2)),
	}
	return d, nil
}

// newField2D allocates a horizontal field with a one-cell halo.
func newField2D(g *Grid) *sparse.DenseArray { return sparse.ZerosDense(g.Nx+2, g.Ny+2) }

func (d *Domain) col(i, j int) int { return i*(d.Ny+2) + j }

// BlockedLayer returns the highest layer of column (i, j) that is inside
// terrain or a building. Zero means no layer is blocked.
func (d *Domain) BlockedLayer(i, j int) int { return d.blocked[d.col(i, j)] }

// InSubDomain reports whether column (i, j) is part of a prognostic
// sub-domain.
func (d *Domain) InSubDomain(i, j int) bool { return d.subDomain[d.col(i, j)] }

// MarkSubDomain adds column (i, j) to the prognostic sub-domains.
// Columns outside the grid are ignored. Marks are never cleared.
func (d *Domain) MarkSubDomain(i, j int) {
	if i < 1 || i > d.Nx || j < 1 || j > d.Ny {
		return
	}
	d.subDomain[d.col(i, j)] = true
}

// markFootprint marks the square sub-domain around column (i, j) for an
// obstacle of the given height.
func (d *Domain) markFootprint(i, j int, height float64) {
	w := math.Min(150, d.SubDomainFactor*height)
	iplus := int(w / d.Dx)
	jplus := int(w / d.Dy)
	for i1 := i - iplus; i1 <= i+iplus; i1++ {
		for j1 := j - jplus; j1 <= j+jplus; j1++ {
			d.MarkSubDomain(i1, j1)
		}
	}
}

// Authoritative reports whether the fine terrain is given directly
// rather than derived from the coarse grid.
func (d *Domain) Authoritative() bool { return d.Terrain != nil }

// layerMid returns the height of the middle of layer k above the
// reference height base.
func (d *Domain) layerMid(k int, base float64) float64 {
	return d.LayerTop[k-1] + d.Dz[k]*0.5 + base
}

// stripe calls f for every index in [lo, hi], distributing the indices
// over nprocs goroutines. f receives the worker number so that callers
// can keep one partial result per worker.
func stripe(nprocs, lo, hi int, f func(pp, i int)) {
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for i := lo + pp; i <= hi; i += nprocs {
				f(pp, i)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

func numWorkers() int { return runtime.GOMAXPROCS(0) }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
