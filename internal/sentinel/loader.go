package sentinel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// Loader reads the requested measurements of one dataset onto a common grid.
type Loader interface {
	Load(ctx context.Context, ds *catalog.Dataset, bands []string, opts LoadOptions) (*raster.Raster, error)
}

type LoadOptions struct {
	CRS        string
	Resolution float64
	// Anonymous reads public buckets without signing requests.
	Anonymous bool
}

// GDALLoader warps every band through GDAL into an in-memory dataset. The first band fixes
// the output extent; later bands are warped onto exactly that grid.
type GDALLoader struct {
	logger *zap.Logger
}

func NewGDALLoader(logger *zap.Logger) *GDALLoader {
	return &GDALLoader{logger: logging.OrNop(logger).Named("loader")}
}

func isCategorical(band string) bool {
	return strings.HasPrefix(band, "oa_")
}

func (l *GDALLoader) openOptions(opts LoadOptions) []godal.OpenOption {
	options := []godal.OpenOption{godal.RasterOnly(), godal.ErrLogger(gdalErrors)}
	if opts.Anonymous {
		options = append(options, godal.ConfigOption("AWS_NO_SIGN_REQUEST=YES"))
	}
	return options
}

// gdalErrors drops warnings, which GDAL emits for harmless things like missing overviews.
func gdalErrors(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL error %d: %s", code, msg)
}

func (l *GDALLoader) Load(ctx context.Context, ds *catalog.Dataset, bands []string, opts LoadOptions) (*raster.Raster, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands requested for dataset %s", ds.ID)
	}
	if opts.Resolution <= 0 {
		return nil, fmt.Errorf("invalid resolution %v", opts.Resolution)
	}

	var out *raster.Raster
	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		uri, err := ds.MeasurementURI(band)
		if err != nil {
			return nil, err
		}

		values, grid, err := l.readBand(uri, band, opts, out)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s of dataset %s: %w", band, ds.ID, err)
		}
		if out == nil {
			out = raster.New(grid)
		}
		if err := out.AddBand(band, values); err != nil {
			return nil, err
		}
		l.logger.Debug("band loaded",
			zap.String("dataset_id", ds.ID),
			zap.String("band", band),
			zap.Int("width", grid.Width),
			zap.Int("height", grid.Height),
		)
	}
	return out, nil
}

func (l *GDALLoader) readBand(uri, band string, opts LoadOptions, target *raster.Raster) ([]float64, raster.Grid, error) {
	src, err := godal.Open(storage.GDALPath(uri), l.openOptions(opts)...)
	if err != nil {
		return nil, raster.Grid{}, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer src.Close()

	resampling := "bilinear"
	if isCategorical(band) {
		resampling = "near"
	}
	res := strconv.FormatFloat(opts.Resolution, 'f', -1, 64)
	switches := []string{
		"-of", "MEM",
		"-t_srs", opts.CRS,
		"-r", resampling,
	}
	if target == nil {
		switches = append(switches, "-tr", res, res, "-tap")
	} else {
		minX, minY, maxX, maxY := target.Grid.Bounds()
		switches = append(switches,
			"-te", ftoa(minX), ftoa(minY), ftoa(maxX), ftoa(maxY),
			"-ts", strconv.Itoa(target.Grid.Width), strconv.Itoa(target.Grid.Height),
		)
	}

	warpOpts := []godal.DatasetWarpOption{godal.ErrLogger(gdalErrors)}
	if opts.Anonymous {
		warpOpts = append(warpOpts, godal.ConfigOption("AWS_NO_SIGN_REQUEST=YES"))
	}
	warped, err := src.Warp("", switches, warpOpts...)
	if err != nil {
		return nil, raster.Grid{}, fmt.Errorf("failed to warp %s: %w", uri, err)
	}
	defer warped.Close()

	structure := warped.Structure()
	gt, err := warped.GeoTransform()
	if err != nil {
		return nil, raster.Grid{}, fmt.Errorf("failed to get geotransform of %s: %w", uri, err)
	}
	grid := raster.Grid{
		Width:        structure.SizeX,
		Height:       structure.SizeY,
		GeoTransform: gt,
		CRS:          opts.CRS,
	}

	data := make([]float64, structure.SizeX*structure.SizeY)
	if err := warped.Bands()[0].Read(0, 0, data, structure.SizeX, structure.SizeY); err != nil {
		return nil, raster.Grid{}, fmt.Errorf("failed to read raster data: %w", err)
	}
	return data, grid, nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
