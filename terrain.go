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
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ASCIIGrid is a raster in the ESRI ASCII grid format.
type ASCIIGrid struct {
	NCols, NRows int
	XLL, YLL     float64 // lower-left corner
	CellSize     float64
	NoData       float64

	// Values holds the cell values row by row, with the northernmost
	// row first.
	Values [][]float64
}

var asciiGridHeader = []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "NODATA_value"}

// ReadASCIIGrid reads an ASCII grid from r.
func ReadASCIIGrid(r io.Reader) (*ASCIIGrid, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	s.Split(bufio.ScanWords)
	word := func(what string) (string, error) {
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return "", fmt.Errorf("windfield: reading ASCII grid: %v", err)
			}
			return "", fmt.Errorf("windfield: reading ASCII grid: unexpected end of file reading %s", what)
		}
		return s.Text(), nil
	}
	var hdr [6]float64
	for i, name := range asciiGridHeader {
		key, err := word(name)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(key, name) {
			return nil, fmt.Errorf("windfield: reading ASCII grid: header field %q should be %s", key, name)
		}
		v, err := word(name)
		if err != nil {
			return nil, err
		}
		if hdr[i], err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("windfield: reading ASCII grid: %s: %v", name, err)
		}
	}
	g := &ASCIIGrid{
		NCols: int(hdr[0]), NRows: int(hdr[1]),
		XLL: hdr[2], YLL: hdr[3],
		CellSize: hdr[4], NoData: hdr[5],
	}
	if g.NCols < 1 || g.NRows < 1 {
		return nil, fmt.Errorf("windfield: reading ASCII grid: invalid size %dx%d", g.NCols, g.NRows)
	}
	g.Values = make([][]float64, g.NRows)
	for row := range g.Values {
		g.Values[row] = make([]float64, g.NCols)
		for col := range g.Values[row] {
			v, err := word("values")
			if err != nil {
				return nil, err
			}
			if g.Values[row][col], err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("windfield: reading ASCII grid row %d column %d: %v", row+1, col+1, err)
			}
		}
	}
	return g, nil
}

// Write writes g to w.
func (g *ASCIIGrid) Write(w io.Writer) error {
	b := bufio.NewWriter(w)
	for i, v := range []string{
		strconv.Itoa(g.NCols), strconv.Itoa(g.NRows),
		formatFloat(g.XLL), formatFloat(g.YLL),
		formatFloat(g.CellSize), formatFloat(g.NoData),
	} {
		fmt.Fprintf(b, "%-14s%s\n", asciiGridHeader[i], v)
	}
	for _, row := range g.Values {
		for _, v := range row {
			b.WriteString(formatFloat(v))
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	if err := b.Flush(); err != nil {
		return fmt.Errorf("windfield: writing ASCII grid: %v", err)
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// SetTerrain sets the authoritative fine terrain, which switches the
// mapping to use it instead of the terrain derived from the coarse
// grid. The grid must have the same number of columns and rows as the
// domain and no missing values.
func (d *Domain) SetTerrain(g *ASCIIGrid) error {
	if g.NCols != d.Nx || g.NRows != d.Ny {
		return fmt.Errorf("windfield: terrain grid is %dx%d but the domain is %dx%d",
			g.NCols, g.NRows, d.Nx, d.Ny)
	}
	t := newField2D(&d.Grid)
	heights := make([]float64, 0, d.Nx*d.Ny)
	for row, vals := range g.Values {
		j := d.Ny - row
		for col, v := range vals {
			if v == g.NoData {
				return fmt.Errorf("windfield: terrain grid has a missing value in row %d column %d", row+1, col+1)
			}
			t.Set(v, col+1, j)
			heights = append(heights, v)
		}
	}
	lowest := floats.Min(heights)
	if lowest > 999999 {
		return fmt.Errorf("windfield: terrain grid minimum height %g is not plausible", lowest)
	}
	d.Terrain = t
	d.TerrainMin = lowest
	return nil
}

// DerivedTerrain returns the mapped surface height without buildings,
// in the format accepted by SetTerrain.
func (d *Domain) DerivedTerrain() *ASCIIGrid {
	g := &ASCIIGrid{
		NCols: d.Nx, NRows: d.Ny,
		XLL: d.X0, YLL: d.Y0,
		CellSize: d.Dx,
		NoData:   -9999,
		Values:   make([][]float64, d.Ny),
	}
	for row := range g.Values {
		j := d.Ny - row
		g.Values[row] = make([]float64, d.Nx)
		for i := 1; i <= d.Nx; i++ {
			g.Values[row][i-1] = d.SurfaceHeight.Get(i, j) - d.BuildingHeight.Get(i, j)
		}
	}
	return g
}
