// Package output renders the classification raster into the persisted FMC artifacts.
package output

import (
	"fmt"
	"math"

	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

// NoData is the sentinel written for masked and negative pixels.
const NoData int16 = -999

// Product is the final single band int16 raster.
type Product struct {
	Grid   raster.Grid
	Data   []int16
	NoData int16
}

// ApplyMask returns a copy of band with masked pixels set to NaN.
func ApplyMask(r *raster.Raster, band string, mask *raster.Mask) (*raster.Raster, error) {
	values, err := r.MustBand(band)
	if err != nil {
		return nil, err
	}
	if !r.Grid.Equal(mask.Grid) {
		return nil, fmt.Errorf("mask grid %dx%d does not match raster grid %dx%d",
			mask.Grid.Width, mask.Grid.Height, r.Grid.Width, r.Grid.Height)
	}
	masked := make([]float64, len(values))
	for i, v := range values {
		if mask.Data[i] {
			v = math.NaN()
		}
		masked[i] = v
	}
	out := raster.New(r.Grid)
	if err := out.AddBand(band, masked); err != nil {
		return nil, err
	}
	return out, nil
}

// Finalize sets NaN and negative pixels to NoData and casts the band to int16, truncating
// toward zero and clamping to the int16 range.
func Finalize(r *raster.Raster, band string) (*Product, error) {
	values, err := r.MustBand(band)
	if err != nil {
		return nil, err
	}
	data := make([]int16, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v) || v < 0:
			data[i] = NoData
		case v > math.MaxInt16:
			data[i] = math.MaxInt16
		default:
			data[i] = int16(math.Trunc(v))
		}
	}
	return &Product{Grid: r.Grid, Data: data, NoData: NoData}, nil
}

func (p *Product) At(x, y int) int16 {
	return p.Data[y*p.Grid.Width+x]
}

// ValidCount is the number of pixels holding a value.
func (p *Product) ValidCount() int {
	n := 0
	for _, v := range p.Data {
		if v != p.NoData {
			n++
		}
	}
	return n
}
