// Package raster holds the in-memory gridded arrays passed between pipeline stages.
package raster

import (
	"fmt"
	"math"
)

// Grid is the pixel grid and georeferencing shared by every band of a raster.
// GeoTransform follows the GDAL convention: origin x, pixel width, row rotation,
// origin y, column rotation, pixel height (negative for north-up).
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	CRS          string
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

func (g Grid) Equal(other Grid) bool {
	return g.Width == other.Width && g.Height == other.Height &&
		g.GeoTransform == other.GeoTransform && g.CRS == other.CRS
}

// Bounds returns minX, minY, maxX, maxY of the grid in its CRS.
func (g Grid) Bounds() (float64, float64, float64, float64) {
	gt := g.GeoTransform
	xs := []float64{gt[0], gt[0] + gt[1]*float64(g.Width), gt[0] + gt[2]*float64(g.Height), gt[0] + gt[1]*float64(g.Width) + gt[2]*float64(g.Height)}
	ys := []float64{gt[3], gt[3] + gt[4]*float64(g.Width), gt[3] + gt[5]*float64(g.Height), gt[3] + gt[4]*float64(g.Width) + gt[5]*float64(g.Height)}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	return minX, minY, maxX, maxY
}

// Raster is a set of named float bands on one grid, stored row-major.
type Raster struct {
	Grid  Grid
	order []string
	data  map[string][]float64
}

func New(grid Grid) *Raster {
	return &Raster{Grid: grid, data: map[string][]float64{}}
}

// AddBand stores values under name. Re-adding a name replaces the values but keeps the
// band's original position.
func (r *Raster) AddBand(name string, values []float64) error {
	if len(values) != r.Grid.Size() {
		return fmt.Errorf("band %s has %d values, grid %dx%d needs %d", name, len(values), r.Grid.Width, r.Grid.Height, r.Grid.Size())
	}
	if _, ok := r.data[name]; !ok {
		r.order = append(r.order, name)
	}
	r.data[name] = values
	return nil
}

func (r *Raster) Band(name string) ([]float64, bool) {
	values, ok := r.data[name]
	return values, ok
}

func (r *Raster) MustBand(name string) ([]float64, error) {
	values, ok := r.data[name]
	if !ok {
		return nil, fmt.Errorf("raster has no band %q", name)
	}
	return values, nil
}

// Bands lists band names in insertion order.
func (r *Raster) Bands() []string {
	return append([]string(nil), r.order...)
}

// DropBands removes the named bands; unknown names are ignored.
func (r *Raster) DropBands(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.data[name]; ok {
			drop[name] = true
			delete(r.data, name)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := r.order[:0]
	for _, name := range r.order {
		if !drop[name] {
			kept = append(kept, name)
		}
	}
	r.order = kept
}

// Select returns a raster holding exactly the named bands in the given order. The band
// slices are shared with r.
func (r *Raster) Select(names []string) (*Raster, error) {
	out := New(r.Grid)
	for _, name := range names {
		values, err := r.MustBand(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddBand(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Mask is a boolean layer on a grid; true marks a pixel to suppress.
type Mask struct {
	Grid Grid
	Data []bool
}

func NewMask(grid Grid) *Mask {
	return &Mask{Grid: grid, Data: make([]bool, grid.Size())}
}

// Where builds a mask that is true wherever test holds for the band value.
func Where(grid Grid, values []float64, test func(float64) bool) (*Mask, error) {
	if len(values) != grid.Size() {
		return nil, fmt.Errorf("mask source has %d values, grid needs %d", len(values), grid.Size())
	}
	m := NewMask(grid)
	for i, v := range values {
		m.Data[i] = test(v)
	}
	return m, nil
}

// Or returns the union of two masks on the same grid.
func (m *Mask) Or(other *Mask) (*Mask, error) {
	if !m.Grid.Equal(other.Grid) {
		return nil, fmt.Errorf("cannot combine masks on different grids")
	}
	out := NewMask(m.Grid)
	for i := range m.Data {
		out.Data[i] = m.Data[i] || other.Data[i]
	}
	return out, nil
}

func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

func (m *Mask) At(x, y int) bool {
	return m.Data[y*m.Grid.Width+x]
}
