// Package sentinel turns Sentinel-2 ARD bands into the classifier feature raster and the
// cloud and water exclusion mask.
package sentinel

import (
	"fmt"

	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

const (
	BandBlue       = "nbart_blue"
	BandGreen      = "nbart_green"
	BandRed        = "nbart_red"
	BandRedEdge1   = "nbart_red_edge_1"
	BandRedEdge2   = "nbart_red_edge_2"
	BandRedEdge3   = "nbart_red_edge_3"
	BandNIR1       = "nbart_nir_1"
	BandNIR2       = "nbart_nir_2"
	BandSWIR2      = "nbart_swir_2"
	BandSWIR3      = "nbart_swir_3"
	BandFmask      = "oa_fmask"
	BandContiguity = "oa_nbart_contiguity"

	IndexNDVI = "ndvi"
	IndexNDII = "ndii"
)

// FeatureOrder is the column order the classifier was fitted on. Features are always
// selected by name into this order, whatever order the bands were loaded in.
var FeatureOrder = []string{
	IndexNDVI,
	IndexNDII,
	BandBlue,
	BandGreen,
	BandRed,
	BandRedEdge1,
	BandRedEdge2,
	BandRedEdge3,
	BandNIR1,
	BandNIR2,
	BandSWIR2,
	BandSWIR3,
}

// QualityBands are only needed for the mask and are dropped before classification.
var QualityBands = []string{BandFmask, BandContiguity}

// NormalizedDifference computes (a-b)/(a+b) per pixel. A zero denominator gives ±Inf or
// NaN; those are left for the classifier adapter to replace.
func NormalizedDifference(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("band lengths differ: %d and %d", len(a), len(b))
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = (a[i] - b[i]) / (a[i] + b[i])
	}
	return out, nil
}

func index(src *raster.Raster, name, first, second string) ([]float64, error) {
	a, err := src.MustBand(first)
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s: %w", name, err)
	}
	b, err := src.MustBand(second)
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s: %w", name, err)
	}
	return NormalizedDifference(a, b)
}

// BuildFeatures derives NDVI and NDII and returns a new raster holding FeatureOrder.
func BuildFeatures(src *raster.Raster) (*raster.Raster, error) {
	ndvi, err := index(src, IndexNDVI, BandNIR1, BandRed)
	if err != nil {
		return nil, err
	}
	ndii, err := index(src, IndexNDII, BandNIR1, BandSWIR2)
	if err != nil {
		return nil, err
	}

	work := raster.New(src.Grid)
	if err := work.AddBand(IndexNDVI, ndvi); err != nil {
		return nil, err
	}
	if err := work.AddBand(IndexNDII, ndii); err != nil {
		return nil, err
	}
	for _, name := range FeatureOrder[2:] {
		values, err := src.MustBand(name)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble features: %w", err)
		}
		if err := work.AddBand(name, values); err != nil {
			return nil, err
		}
	}
	return work.Select(FeatureOrder)
}

// Prepare derives the exclusion mask, drops the quality bands from src and builds the
// feature raster.
func Prepare(src *raster.Raster, filters []config.MaskFilter) (*raster.Raster, *raster.Mask, error) {
	mask, err := BuildMask(src, filters)
	if err != nil {
		return nil, nil, err
	}
	src.DropBands(QualityBands...)

	features, err := BuildFeatures(src)
	if err != nil {
		return nil, nil, err
	}
	return features, mask, nil
}
