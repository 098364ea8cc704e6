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
	"errors"
	"math"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// nearSurfaceHeight is the reference height [m] of the mean near-surface
// wind vector.
const nearSurfaceHeight = 10

// stencil holds the coarse column offsets of the 16 interpolation
// points, relative to the coarse column containing the fine point.
var stencil = [16][2]int{
	{0, 0}, {0, 1}, {1, 1}, {1, 0},
	{-1, -1}, {0, -1}, {1, -1}, {2, -1},
	{2, 0}, {2, 1}, {2, 2}, {1, 2},
	{0, 2}, {-1, 2}, {-1, 1}, {-1, 0},
}

// coarseLocation is the position of a fine column center inside the
// coarse grid.
type coarseLocation struct {
	i, j int     // coarse column, not clamped
	x, y float64 // offset inside the coarse column
}

// locate returns the coarse location of the fine column (i, j).
func (d *Domain) locate(i, j int) coarseLocation {
	c := d.Coarse
	x := d.X0 - c.X0 + d.Dx*float64(i) - d.Dx*0.5
	y := d.Y0 - c.Y0 + d.Dy*float64(j) - d.Dy*0.5
	l := coarseLocation{i: int(x/c.Dx) + 1, j: int(y/c.Dy) + 1}
	l.x = x - float64(l.i-1)*c.Dx
	l.y = y - float64(l.j-1)*c.Dy
	return l
}

// blended reports whether l is far enough from the coarse grid edge to
// use the 16-point blend.
func (c *CoarseGrid) blended(l coarseLocation) bool {
	return l.i >= 2 && l.i <= c.Nx-1 && l.j >= 2 && l.j <= c.Ny-1
}

// stencilDistance returns the distance along one axis between a point
// at offset w inside a cell of the given size and the center of the
// cell at relative position off.
func stencilDistance(off int, w, size float64) float64 {
	switch off {
	case 0:
		return w
	case 1:
		return size - w
	case -1:
		return size + w
	default:
		return 2*size - w
	}
}

// blendWeights fills r with the inverse-distance weights of the 16
// stencil points and returns their sum.
func (c *CoarseGrid) blendWeights(l coarseLocation, r *[16]float64) float64 {
	for n, off := range stencil {
		dx := stencilDistance(off[0], l.x, c.Dx)
		dy := stencilDistance(off[1], l.y, c.Dy)
		s := dx*dx + dy*dy + 0.1
		r[n] = 1 / (s * s)
	}
	return floats.Sum(r[:])
}

// mapScratch is the per-worker buffer for one column's interpolated
// coarse level heights.
type mapScratch struct {
	height, heightPlus []float64
	weights            [16]float64
}

func newMapScratch(nk int) *mapScratch {
	return &mapScratch{
		height:     make([]float64, nk+1),
		heightPlus: make([]float64, nk+1),
	}
}

// mapPartial is one worker's share of the domain-wide accumulators.
type mapPartial struct {
	subDomainTop int
}

// columnHeights interpolates the coarse level heights onto column
// location l. Blended heights are relative to base and the nearest
// column heights used near the coarse grid edge are relative to
// edgeBase.
func (d *Domain) columnHeights(l coarseLocation, base, edgeBase float64, s *mapScratch) {
	c := d.Coarse
	if !c.blended(l) {
		ci, cj := clamp(l.i, 1, c.Nx), clamp(l.j, 1, c.Ny)
		for ik := c.Nz; ik >= 1; ik-- {
			ikp := min(ik+1, c.Nz)
			s.height[ik] = c.Height.Get(ci, cj, ik) - edgeBase
			s.heightPlus[ik] = c.Height.Get(ci, cj, ikp) - edgeBase
		}
		return
	}
	gew := c.blendWeights(l, &s.weights)
	for ik := c.Nz; ik >= 1; ik-- {
		ikp := min(ik+1, c.Nz)
		var h, hp float64
		for n, off := range stencil {
			h += c.Height.Get(l.i+off[0], l.j+off[1], ik) * s.weights[n]
			hp += c.Height.Get(l.i+off[0], l.j+off[1], ikp) * s.weights[n]
		}
		s.height[ik] = h/gew - base
		s.heightPlus[ik] = hp/gew - base
	}
}

// bracket is the result of the vertical search for one fine cell.
type bracket struct {
	k, kp      int     // coarse levels
	dz         float64 // height of the fine cell above level k
	height     float64 // interpolated height of level k
	heightPlus float64 // interpolated height of level kp
}

// windInterpolator interpolates coarse wind components for one fine
// column.
type windInterpolator struct {
	c        *CoarseGrid
	ci, cj   int     // clamped coarse column
	ixm, iym int     // neighbor columns toward the fine point
	fx, fy   float64 // horizontal interpolation fractions
}

func (d *Domain) newWindInterpolator(l coarseLocation) windInterpolator {
	c := d.Coarse
	w := windInterpolator{c: c, ci: clamp(l.i, 1, c.Nx), cj: clamp(l.j, 1, c.Ny)}
	if l.x < c.Dx*0.5 {
		w.ixm = clamp(w.ci-1, 1, c.Nx)
	} else {
		w.ixm = clamp(w.ci+1, 1, c.Nx)
	}
	if l.y < c.Dy*0.5 {
		w.iym = clamp(w.cj-1, 1, c.Ny)
	} else {
		w.iym = clamp(w.cj+1, 1, c.Ny)
	}
	w.fx = float64(w.ixm-w.ci) * (l.x - c.Dx*0.5) / c.Dx
	w.fy = float64(w.iym-w.cj) * (l.y - c.Dy*0.5) / c.Dy
	return w
}

// at interpolates field a at bracket b.
func (w windInterpolator) at(a *sparse.DenseArray, b bracket) float64 {
	horiz := func(j, k int) float64 {
		v := a.Get(w.ci, j, k)
		return v + (a.Get(w.ixm, j, k)-v)*w.fx
	}
	x1 := horiz(w.cj, b.k)
	x2 := horiz(w.iym, b.k)
	x3 := horiz(w.cj, b.kp)
	x4 := horiz(w.iym, b.kp)
	span := math.Max(b.heightPlus-b.height, 0.1)
	x5 := x1 + (x3-x1)/span*b.dz
	x6 := x2 + (x4-x2)/span*b.dz
	return x5 + (x6-x5)*w.fy
}

// MapTerrain interpolates the coarse terrain and wind onto the fine
// grid. It sets the wind components, the surface and building heights,
// the blocked layer of every column, the prognostic sub-domain ceiling
// and the mean near-surface wind. Cells inside terrain or buildings get
// zero wind on all of their faces.
func (d *Domain) MapTerrain() error {
	if d.Coarse == nil {
		return errors.New("windfield: no coarse grid to map from")
	}
	nprocs := numWorkers()
	partials := make([]mapPartial, nprocs)
	scratch := make([]*mapScratch, nprocs)
	for pp := range scratch {
		scratch[pp] = newMapScratch(d.Coarse.Nz)
		partials[pp].subDomainTop = 1
	}
	// near holds the layer of each column that represents the wind about
	// 10 m above the ground, or 0.
	near := make([]int, len(d.blocked))
	stripe(nprocs, 1, d.Nx, func(pp, i int) {
		for j := 1; j <= d.Ny; j++ {
			near[d.col(i, j)] = d.mapColumn(i, j, scratch[pp], &partials[pp])
		}
	})

	top := 1
	for _, p := range partials {
		top = max(top, p.subDomainTop)
	}
	d.enforceOcclusion()
	d.SubDomainTop = min(d.Nz, top+d.SubDomainExtraLayers)

	// The near-surface wind is summed after the faces shared with
	// blocked neighbors have been closed.
	var sumU, sumV float64
	var n int
	for i := 1; i <= d.Nx; i++ {
		for j := 1; j <= d.Ny; j++ {
			if k := near[d.col(i, j)]; k > 0 {
				sumU += d.U.Get(i, j, k)
				sumV += d.V.Get(i, j, k)
				n++
			}
		}
	}

	surf := make([]float64, 0, d.Nx*d.Ny)
	for i := 1; i <= d.Nx; i++ {
		for j := 1; j <= d.Ny; j++ {
			surf = append(surf, d.SurfaceHeight.Get(i, j))
		}
	}
	d.MinSurface = floats.Min(surf)

	d.WindDirection = bearing(sumU, sumV)
	if n > 0 {
		d.WindSpeed = math.Hypot(sumU, sumV) / float64(n)
	}
	d.Log.WithFields(logrus.Fields{
		"authoritative":  d.Authoritative(),
		"min_surface":    d.MinSurface,
		"subdomain_top":  d.SubDomainTop,
		"wind_direction": d.WindDirection,
		"wind_speed":     d.WindSpeed,
	}).Info("mapped coarse grid onto the microscale grid")
	return nil
}

// bearing converts the vector sum (u, v) into the compass bearing the
// wind comes from, in [0, 360).
func bearing(u, v float64) float64 {
	dir := math.Atan2(u, v)*180/math.Pi + 180
	if dir < 0 {
		dir += 360
	}
	if dir >= 360 {
		dir -= 360
	}
	return dir
}

// mapColumn maps one fine column and returns its near-surface layer,
// or 0 if it has none. It writes only column (i, j).
func (d *Domain) mapColumn(i, j int, s *mapScratch, p *mapPartial) int {
	c := d.Coarse
	auth := d.Authoritative()
	base := d.MinSurface
	var terrain float64
	if auth {
		base = d.TerrainMin
		terrain = d.Terrain.Get(i, j)
	}
	d.SurfaceHeight.Set(base, i, j)
	kk := 0
	cut := d.Cutout.Get(i, j)
	l := d.locate(i, j)
	if auth {
		d.columnHeights(l, 0, d.MinSurface, s)
	} else {
		d.columnHeights(l, d.MinSurface, d.MinSurface, s)
	}
	wi := d.newWindInterpolator(l)
	nearLayer := 0

	for k := d.Nz; k >= 1; k-- {
		vertk := d.layerMid(k, base)
		var b bracket
		open := false
		if auth {
			open = true
			b = bracket{k: 1, kp: 1}
			for ik := c.Nz; ik >= 1; ik-- {
				if vertk <= terrain+cut {
					open = false
					break
				}
				if vertk > s.height[ik]+cut {
					b = bracket{k: ik, kp: min(ik+1, c.Nz), dz: vertk - (s.height[ik] + cut),
						height: s.height[ik], heightPlus: s.heightPlus[ik]}
					break
				}
			}
		} else {
			b.height = s.height[1]
			for ik := c.Nz; ik >= 1; ik-- {
				if vertk-d.MinSurface > s.height[ik]+cut {
					b = bracket{k: ik, kp: min(ik+1, c.Nz), dz: (vertk - d.MinSurface) - (s.height[ik] + cut),
						height: s.height[ik], heightPlus: s.heightPlus[ik]}
					open = true
					break
				}
			}
		}

		if open {
			d.U.Set(wi.at(c.U, b), i, j, k)
			d.V.Set(wi.at(c.V, b), i, j, k)
			d.W.Set(wi.at(c.W, b), i, j, k)
			var near bool
			if auth {
				near = vertk < terrain+nearSurfaceHeight+0.5*d.Dz[k]
			} else {
				near = c.CellHeight.Get(wi.ci, wi.cj, b.k)-c.Surface.Get(wi.ci, wi.cj) <
					nearSurfaceHeight+c.lowestLayerDepth()*0.5
			}
			if near && nearLayer == 0 {
				nearLayer = k
			}
			continue
		}

		d.U.Set(0, i, j, k)
		d.V.Set(0, i, j, k)
		d.W.Set(0, i, j, k)
		ahk := math.Max(d.LayerTop[k]+base, d.SurfaceHeight.Get(i, j))
		d.SurfaceHeight.Set(ahk, i, j)
		if auth {
			if cut > 0 && vertk >= terrain && k > 1 {
				d.BuildingHeight.Set(math.Max(ahk-(d.LayerTop[k-1]+d.TerrainMin), d.BuildingHeight.Get(i, j)), i, j)
			}
		} else if cut > 0 {
			d.BuildingHeight.Set(math.Max(ahk-d.MinSurface-b.height, d.BuildingHeight.Get(i, j)), i, j)
		}
		kk = max(k, kk)
	}
	d.blocked[d.col(i, j)] = kk
	if d.InSubDomain(i, j) {
		p.subDomainTop = max(p.subDomainTop, kk)
	}
	return nearLayer
}

// enforceOcclusion zeroes every face that touches a blocked cell and
// fills the east and north halo cells. It runs after all columns have
// been mapped so that the result does not depend on the order in which
// columns were processed.
func (d *Domain) enforceOcclusion() {
	stripe(numWorkers(), 1, d.Nx, func(_, i int) {
		for j := 1; j <= d.Ny; j++ {
			kk := d.BlockedLayer(i, j)
			ku, kv := kk, kk
			if i > 1 {
				ku = max(ku, d.BlockedLayer(i-1, j))
			}
			if j > 1 {
				kv = max(kv, d.BlockedLayer(i, j-1))
			}
			for k := 1; k <= min(ku, d.Nz); k++ {
				d.U.Set(0, i, j, k)
			}
			for k := 1; k <= min(kv, d.Nz); k++ {
				d.V.Set(0, i, j, k)
			}
			if kk > 0 {
				for k := 1; k <= min(kk+1, d.Nz); k++ {
					d.W.Set(0, i, j, k)
				}
			}
		}
	})
	for j := 1; j <= d.Ny; j++ {
		for k := 1; k <= d.Nz; k++ {
			d.U.Set(d.U.Get(d.Nx, j, k), d.Nx+1, j, k)
		}
	}
	for i := 1; i <= d.Nx; i++ {
		for k := 1; k <= d.Nz; k++ {
			d.V.Set(d.V.Get(i, d.Ny, k), i, d.Ny+1, k)
		}
	}
}
