package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// UploadError means an artifact did not reach storage. Artifacts uploaded before it may
// remain; the raster is always uploaded last, so the output is never seen as complete.
type UploadError struct {
	URI string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.URI, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Publisher struct {
	store     storage.Store
	projector Projector
	logger    *zap.Logger
}

func NewPublisher(store storage.Store, projector Projector, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:     store,
		projector: projector,
		logger:    logging.OrNop(logger).Named("publisher"),
	}
}

// PublishInput names the local artifacts to publish. ScratchDir receives the two metadata
// documents before upload.
type PublishInput struct {
	DocInput
	RasterPath    string
	ThumbnailPath string
	ScratchDir    string
}

type upload struct {
	local string
	uri   string
}

// Publish writes both metadata documents, uploads thumbnail, dataset document, STAC item and
// raster in that order, and removes every local artifact whatever the outcome.
func (p *Publisher) Publish(ctx context.Context, in PublishInput) error {
	loc := in.Location
	docPath := filepath.Join(in.ScratchDir, loc.FileName(preflight.DatasetDocSuffix))
	stacPath := filepath.Join(in.ScratchDir, loc.FileName(preflight.STACSuffix))
	defer p.cleanup(in.ThumbnailPath, docPath, stacPath, in.RasterPath)

	doc, err := BuildDatasetDoc(in.DocInput)
	if err != nil {
		return err
	}
	item, err := BuildSTACItem(doc, loc, in.Config, p.projector)
	if err != nil {
		return err
	}
	if err := writeYAML(docPath, doc); err != nil {
		return err
	}
	if err := writeJSON(stacPath, item); err != nil {
		return err
	}

	uploads := []upload{
		{in.ThumbnailPath, loc.Thumbnail()},
		{docPath, loc.DatasetDoc()},
		{stacPath, loc.STAC()},
		{in.RasterPath, loc.Raster()},
	}
	for _, u := range uploads {
		if err := storage.UploadFile(ctx, p.store, u.local, u.uri); err != nil {
			return &UploadError{URI: u.uri, Err: err}
		}
		p.logger.Info("uploaded", zap.String("uri", u.uri))
	}
	return nil
}

func (p *Publisher) cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove scratch file", zap.String("path", path), zap.Error(err))
		}
	}
}

func writeYAML(path string, doc any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	enc := yaml.NewEncoder(file)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeJSON(path string, doc any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
