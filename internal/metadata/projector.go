package metadata

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// Projector reprojects coordinates in place into WGS84 longitude and latitude.
type Projector interface {
	ToWGS84(crs string, xs, ys []float64) error
}

// GDALProjector uses OGR coordinate transformations.
type GDALProjector struct{}

func (GDALProjector) ToWGS84(crs string, xs, ys []float64) error {
	srcSR, err := godal.NewSpatialRef(crs)
	if err != nil {
		return fmt.Errorf("failed to parse crs %q: %w", crs, err)
	}
	defer srcSR.Close()
	dstSR, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return fmt.Errorf("failed to create WGS84 spatial reference: %w", err)
	}
	defer dstSR.Close()

	tr, err := godal.NewTransform(srcSR, dstSR)
	if err != nil {
		return fmt.Errorf("failed to create transform from %s: %w", crs, err)
	}
	defer tr.Close()

	if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
		return fmt.Errorf("transform error: %w", err)
	}
	return nil
}
