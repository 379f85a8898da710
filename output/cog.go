package output

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
)

// Writer persists a product to a local path.
type Writer interface {
	Write(ctx context.Context, p *Product, path string) error
}

// COGWriter writes a DEFLATE compressed, 512 pixel tiled Cloud Optimized GeoTIFF.
type COGWriter struct {
	logger *zap.Logger
}

func NewCOGWriter(logger *zap.Logger) *COGWriter {
	return &COGWriter{logger: logging.OrNop(logger).Named("cog")}
}

var cogSwitches = []string{
	"-of", "COG",
	"-co", "COMPRESS=DEFLATE",
	"-co", "BLOCKSIZE=512",
	"-co", "OVERVIEWS=AUTO",
}

func gdalErrors(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL error %d: %s", code, msg)
}

func (w *COGWriter) Write(ctx context.Context, p *Product, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := p.Grid
	mem, err := godal.Create(godal.Memory, "", 1, godal.Int16, g.Width, g.Height, godal.ErrLogger(gdalErrors))
	if err != nil {
		return fmt.Errorf("failed to create in-memory raster: %w", err)
	}
	defer mem.Close()

	if err := mem.SetGeoTransform(g.GeoTransform); err != nil {
		return fmt.Errorf("failed to set geotransform: %w", err)
	}
	sr, err := godal.NewSpatialRef(g.CRS)
	if err != nil {
		return fmt.Errorf("failed to parse crs %q: %w", g.CRS, err)
	}
	defer sr.Close()
	if err := mem.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("failed to set spatial reference: %w", err)
	}

	band := mem.Bands()[0]
	if err := band.SetNoData(float64(p.NoData)); err != nil {
		return fmt.Errorf("failed to set nodata: %w", err)
	}
	if err := band.Write(0, 0, p.Data, g.Width, g.Height); err != nil {
		return fmt.Errorf("failed to write raster data: %w", err)
	}

	cog, err := mem.Translate(path, cogSwitches, godal.ErrLogger(gdalErrors))
	if err != nil {
		return fmt.Errorf("failed to write COG %s: %w", path, err)
	}
	if err := cog.Close(); err != nil {
		return fmt.Errorf("failed to close COG %s: %w", path, err)
	}
	w.logger.Debug("COG written", zap.String("path", path), zap.Int("width", g.Width), zap.Int("height", g.Height))
	return nil
}
