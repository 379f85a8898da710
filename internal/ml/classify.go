// Package ml runs the FMC classifier over a feature raster.
package ml

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

// NoData replaces non-finite feature values before they reach the model.
const NoData = -999

// OutputBand is the name of the single classification band.
const OutputBand = "fmc"

// Predictor maps a pixel by feature matrix to one label per row.
type Predictor interface {
	Predict(ctx context.Context, features *mat.Dense) ([]float64, error)
	// NumFeatures is the expected column count, or 0 when the model does not say.
	NumFeatures() int
}

// Model is a loaded predictor that may hold a connection.
type Model interface {
	Predictor
	Close() error
}

// ClassificationError means the feature matrix and the model disagree on shape.
type ClassificationError struct {
	Msg string
}

func (e *ClassificationError) Error() string {
	return "classification failed: " + e.Msg
}

func shapeError(format string, args ...any) *ClassificationError {
	return &ClassificationError{Msg: fmt.Sprintf(format, args...)}
}

// Flatten lays the bands named in order out as columns, one row per pixel in row-major
// pixel order. Non-finite values are replaced with NoData.
func Flatten(r *raster.Raster, order []string) (*mat.Dense, error) {
	pixels := r.Grid.Size()
	if pixels == 0 || len(order) == 0 {
		return nil, shapeError("empty feature raster (%d pixels, %d bands)", pixels, len(order))
	}
	data := make([]float64, pixels*len(order))
	for col, name := range order {
		values, ok := r.Band(name)
		if !ok {
			return nil, shapeError("feature %q is missing", name)
		}
		for row, v := range values {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				v = NoData
			}
			data[row*len(order)+col] = v
		}
	}
	return mat.NewDense(pixels, len(order), data), nil
}

// Classify predicts one label per pixel and returns it as a single band raster on the
// feature grid.
func Classify(ctx context.Context, p Predictor, features *raster.Raster, order []string) (*raster.Raster, error) {
	matrix, err := Flatten(features, order)
	if err != nil {
		return nil, err
	}
	rows, cols := matrix.Dims()
	if want := p.NumFeatures(); want > 0 && want != cols {
		return nil, shapeError("model expects %d features, got %d", want, cols)
	}

	labels, err := p.Predict(ctx, matrix)
	if err != nil {
		var shapeErr *ClassificationError
		if errors.As(err, &shapeErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to run model: %w", err)
	}
	if len(labels) != rows {
		return nil, shapeError("model returned %d labels for %d pixels", len(labels), rows)
	}

	out := raster.New(features.Grid)
	if err := out.AddBand(OutputBand, labels); err != nil {
		return nil, err
	}
	return out, nil
}
