// Package preflight decides whether a dataset should be processed and where its output goes.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// MaxGQA is the largest accepted absolute iterative mean positional error, in pixels.
const MaxGQA = 1.0

const finalMaturity = "final"

type Reason string

const (
	ReasonUnknownDataset     Reason = "unknown_dataset"
	ReasonUnsupportedProduct Reason = "unsupported_product"
	ReasonQuality            Reason = "geometric_quality"
	ReasonMaturity           Reason = "maturity"
	ReasonAlreadyProcessed   Reason = "already_processed"
)

// RejectedError means the dataset is skipped. It is an outcome, not a failure.
type RejectedError struct {
	DatasetID string
	Reason    Reason
	Detail    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("dataset %s rejected (%s): %s", e.DatasetID, e.Reason, e.Detail)
}

// IsRejected reports whether err carries a preflight rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

type Options struct {
	Overwrite bool
	// Store is consulted for existing output when Overwrite is false.
	Store  storage.Store
	Logger *zap.Logger
}

// Decision is the outcome of an accepted dataset.
type Decision struct {
	Dataset     *catalog.Dataset
	ProductName string
	Location    Location
}

func reject(id string, reason Reason, format string, args ...any) *RejectedError {
	return &RejectedError{DatasetID: id, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Check applies the eligibility rules in order and stops at the first failure.
func Check(ctx context.Context, cat catalog.Catalog, id string, cfg *config.Process, opts Options) (*Decision, error) {
	logger := logging.OrNop(opts.Logger).Named("preflight").With(zap.String("dataset_id", id))

	ds, err := cat.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, reject(id, ReasonUnknownDataset, "not found in the catalog")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up dataset %s: %w", id, err)
	}

	productName, ok := cfg.OutputProduct(ds.Product)
	if !ok {
		return nil, reject(id, ReasonUnsupportedProduct, "source product %q has no output mapping", ds.Product)
	}

	gqa, ok := ds.GQA()
	if !ok {
		return nil, reject(id, ReasonQuality, "%s is not recorded", catalog.PropGQA)
	}
	if gqa > MaxGQA {
		return nil, reject(id, ReasonQuality, "%s %.3f exceeds %.1f", catalog.PropGQA, gqa, MaxGQA)
	}

	if maturity := ds.Maturity(); !strings.EqualFold(strings.TrimSpace(maturity), finalMaturity) {
		return nil, reject(id, ReasonMaturity, "maturity is %q, not %q", maturity, finalMaturity)
	}

	acquired, err := ds.Time()
	if err != nil {
		return nil, err
	}
	location, err := ResolveLocation(cfg, productName, ds.RegionCode(), acquired)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output location for %s: %w", id, err)
	}

	if !opts.Overwrite {
		if opts.Store == nil {
			return nil, fmt.Errorf("overwrite is disabled but no store was given to check existing output")
		}
		exists, err := opts.Store.Exists(ctx, location.Raster())
		if err != nil {
			return nil, fmt.Errorf("failed to check existing output %s: %w", location.Raster(), err)
		}
		if exists {
			return nil, reject(id, ReasonAlreadyProcessed, "%s already exists and overwrite is disabled", location.Raster())
		}
	}

	logger.Debug("dataset accepted",
		zap.String("product", productName),
		zap.String("output", location.Folder),
	)
	return &Decision{Dataset: ds, ProductName: productName, Location: location}, nil
}
