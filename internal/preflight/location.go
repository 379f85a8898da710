package preflight

import (
	"fmt"
	"strings"
	"time"

	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

const (
	RasterSuffix     = "_final_fmc.tif"
	ThumbnailSuffix  = "_thumbnail.jpg"
	STACSuffix       = ".stac-item.json"
	DatasetDocSuffix = ".odc-metadata.yaml"
)

// Location is where every artifact of one output dataset is written.
type Location struct {
	Folder  string
	Prefix  string
	Product string
	Version string
	Region  string
	Date    time.Time
}

// ResolveLocation derives the output folder and file prefix. It only depends on its
// arguments, so the same dataset and config always map to the same place.
func ResolveLocation(cfg *config.Process, productName, regionCode string, date time.Time) (Location, error) {
	regionCode = strings.TrimSpace(regionCode)
	if len(regionCode) < 3 {
		return Location{}, fmt.Errorf("region code %q is too short to partition output", regionCode)
	}
	if productName == "" {
		return Location{}, fmt.Errorf("output product name is empty")
	}

	version := cfg.ProductVersion()
	day := date.UTC()
	folder := storage.Join(cfg.OutputFolder,
		productName,
		version,
		regionCode[:2],
		regionCode[2:],
		day.Format("2006"),
		day.Format("01"),
		day.Format("02"),
	)
	return Location{
		Folder:  folder,
		Prefix:  fmt.Sprintf("%s_%s_%s_%s", productName, version, regionCode, day.Format("2006-01-02")),
		Product: productName,
		Version: version,
		Region:  regionCode,
		Date:    time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
	}, nil
}

// FileName is the bare artifact name for a suffix.
func (l Location) FileName(suffix string) string {
	return l.Prefix + suffix
}

func (l Location) URI(suffix string) string {
	return storage.Join(l.Folder, l.FileName(suffix))
}

func (l Location) Raster() string     { return l.URI(RasterSuffix) }
func (l Location) Thumbnail() string  { return l.URI(ThumbnailSuffix) }
func (l Location) STAC() string       { return l.URI(STACSuffix) }
func (l Location) DatasetDoc() string { return l.URI(DatasetDocSuffix) }
