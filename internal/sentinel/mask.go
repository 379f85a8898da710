package sentinel

import (
	"fmt"

	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

// Fmask classes.
const (
	FmaskNoData = 0
	FmaskValid  = 1
	FmaskCloud  = 2
	FmaskShadow = 3
	FmaskSnow   = 4
	FmaskWater  = 5
)

// CloudTest is true on cloud and cloud shadow.
func CloudTest(src *raster.Raster) (*raster.Mask, error) {
	fmask, err := src.MustBand(BandFmask)
	if err != nil {
		return nil, fmt.Errorf("failed to build cloud test: %w", err)
	}
	return raster.Where(src.Grid, fmask, func(v float64) bool {
		return v == FmaskCloud || v == FmaskShadow
	})
}

// WaterTest is true on water, fmask nodata and non-contiguous pixels.
func WaterTest(src *raster.Raster) (*raster.Mask, error) {
	fmask, err := src.MustBand(BandFmask)
	if err != nil {
		return nil, fmt.Errorf("failed to build water test: %w", err)
	}
	contiguity, err := src.MustBand(BandContiguity)
	if err != nil {
		return nil, fmt.Errorf("failed to build water test: %w", err)
	}
	mask := raster.NewMask(src.Grid)
	for i := range mask.Data {
		mask.Data[i] = fmask[i] == FmaskWater || fmask[i] == FmaskNoData || contiguity[i] == 0
	}
	return mask, nil
}

// CleanMask runs the filters in order.
func CleanMask(mask *raster.Mask, filters []config.MaskFilter) (*raster.Mask, error) {
	out := mask
	for _, f := range filters {
		var err error
		out, err = out.Apply(f.Op, f.Radius)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BuildMask is the cleaned cloud test united with the water test.
func BuildMask(src *raster.Raster, filters []config.MaskFilter) (*raster.Mask, error) {
	cloud, err := CloudTest(src)
	if err != nil {
		return nil, err
	}
	cloud, err = CleanMask(cloud, filters)
	if err != nil {
		return nil, err
	}
	water, err := WaterTest(src)
	if err != nil {
		return nil, err
	}
	return cloud.Or(water)
}
