// Package delivery drives datasets through preflight, classification, rendering and publishing.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/metadata"
	"github.com/forest-guardian/fmc-pipeline/internal/ml"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
	"github.com/forest-guardian/fmc-pipeline/internal/sentinel"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
	"github.com/forest-guardian/fmc-pipeline/output"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result describes the outcome for one dataset id.
type Result struct {
	DatasetID   string  `csv:"dataset_id"`
	Status      Status  `csv:"status"`
	Reason      string  `csv:"reason"`
	Output      string  `csv:"output"`
	ValidPixels int     `csv:"valid_pixels"`
	Seconds     float64 `csv:"seconds"`
	Err         error   `csv:"-"`
}

// Dependencies are shared read-only by every dataset in a run.
type Dependencies struct {
	Catalog   catalog.Catalog
	Store     storage.Store
	Config    *config.Process
	Loader    sentinel.Loader
	Model     ml.Predictor
	Writer    output.Writer
	Publisher *metadata.Publisher
	Logger    *zap.Logger
}

type Options struct {
	// Overwrite reprocesses datasets whose output raster already exists.
	Overwrite bool
	// Anonymous reads source imagery without signing requests.
	Anonymous bool
	// ScratchDir holds per-dataset working directories. Empty means os.TempDir.
	ScratchDir string
}

type Processor struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewProcessor(deps Dependencies, opts Options) *Processor {
	logger := logging.OrNop(deps.Logger).Named("delivery")
	if deps.Publisher == nil {
		deps.Publisher = metadata.NewPublisher(deps.Store, metadata.GDALProjector{}, logger)
	}
	return &Processor{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDataset runs one dataset end to end. A *preflight.RejectedError means nothing was
// produced on purpose; any other error is a failure. Panics are recovered as failures.
func (p *Processor) ProcessDataset(ctx context.Context, id string) (res Result, err error) {
	start := time.Now()
	res = Result{DatasetID: id}
	logger := p.logger.With(zap.String("dataset_id", id))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing dataset", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic while processing %s: %v", id, r)
		}
		res.Seconds = time.Since(start).Seconds()
		res.Err = err
		switch {
		case err == nil:
			res.Status = StatusProcessed
		case preflight.IsRejected(err):
			res.Status = StatusSkipped
			var rejected *preflight.RejectedError
			if errors.As(err, &rejected) {
				res.Reason = string(rejected.Reason)
			}
		default:
			res.Status = StatusFailed
			res.Reason = err.Error()
		}
	}()

	decision, err := preflight.Check(ctx, p.deps.Catalog, id, p.deps.Config, preflight.Options{
		Overwrite: p.opts.Overwrite,
		Store:     p.deps.Store,
		Logger:    p.logger,
	})
	if err != nil {
		return res, err
	}
	loc := decision.Location
	res.Output = loc.Raster()

	if err := os.MkdirAll(p.scratchRoot(), os.ModePerm); err != nil {
		return res, fmt.Errorf("failed to create scratch root: %w", err)
	}
	workDir, err := os.MkdirTemp(p.scratchRoot(), "fmc-"+id+"-")
	if err != nil {
		return res, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	cfg := p.deps.Config
	logger.Info("loading dataset", zap.Strings("bands", cfg.InputProducts.InputBands))
	src, err := p.deps.Loader.Load(ctx, decision.Dataset, cfg.InputProducts.InputBands, sentinel.LoadOptions{
		CRS:        cfg.OutputCRS,
		Resolution: cfg.Resolution,
		Anonymous:  p.opts.Anonymous,
	})
	if err != nil {
		return res, fmt.Errorf("failed to load %s: %w", id, err)
	}

	features, mask, err := sentinel.Prepare(src, cfg.Filters())
	if err != nil {
		return res, err
	}
	logger.Debug("built features", zap.Int("masked_pixels", mask.Count()))

	classified, err := ml.Classify(ctx, p.deps.Model, features, sentinel.FeatureOrder)
	if err != nil {
		return res, err
	}
	masked, err := output.ApplyMask(classified, ml.OutputBand, mask)
	if err != nil {
		return res, err
	}

	thumbPath := filepath.Join(workDir, loc.FileName(preflight.ThumbnailSuffix))
	if err := writeThumbnail(masked, thumbPath); err != nil {
		return res, err
	}

	product, err := output.Finalize(masked, ml.OutputBand)
	if err != nil {
		return res, err
	}
	res.ValidPixels = product.ValidCount()

	rasterPath := filepath.Join(workDir, loc.FileName(preflight.RasterSuffix))
	if err := p.deps.Writer.Write(ctx, product, rasterPath); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", rasterPath, err)
	}

	err = p.deps.Publisher.Publish(ctx, metadata.PublishInput{
		DocInput: metadata.DocInput{
			Source:    decision.Dataset,
			Location:  loc,
			Config:    cfg,
			Grid:      product.Grid,
			Processed: p.now(),
		},
		RasterPath:    rasterPath,
		ThumbnailPath: thumbPath,
		ScratchDir:    workDir,
	})
	if err != nil {
		return res, err
	}

	logger.Info("dataset published", zap.String("uri", loc.Raster()), zap.Int("valid_pixels", res.ValidPixels))
	return res, nil
}

func (p *Processor) scratchRoot() string {
	if p.opts.ScratchDir != "" {
		return p.opts.ScratchDir
	}
	return os.TempDir()
}
