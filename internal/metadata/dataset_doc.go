// Package metadata describes an FMC output as an ODC eo3 dataset document and a STAC item,
// and publishes them with the raster artifacts.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
)

const (
	schemaURL         = "https://schemas.opendatacube.org/dataset"
	productFamily     = "fmc"
	producer          = "ga.gov.au"
	collectionNumber  = 3
	fileFormat        = "GeoTIFF"
	lineageClassifier = "ard"
	measurementName   = "fmc"
	thumbnailName     = "thumbnail"
	nodata            = -999
)

// idNamespace seeds the name-based output dataset ids.
var idNamespace = uuid.MustParse("6f1b3c2e-4d5a-4e8f-9a7b-2c3d4e5f6a7b")

// inheritedProperties are copied from the source dataset when present.
var inheritedProperties = []string{
	catalog.PropPlatform,
	catalog.PropInstrument,
	"eo:constellation",
	"eo:cloud_cover",
	"eo:sun_azimuth",
	"eo:sun_elevation",
	"sat:orbit_state",
	"sat:relative_orbit",
}

// InputProducts are recorded on every output as the products FMC can be derived from.
var InputProducts = []string{"ga_s2am_ard_3", "ga_s2bm_ard_3", "ga_s2cm_ard_3"}

type DatasetDoc struct {
	Schema       string                 `yaml:"$schema"`
	ID           string                 `yaml:"id"`
	Label        string                 `yaml:"label"`
	Product      ProductRef             `yaml:"product"`
	CRS          string                 `yaml:"crs"`
	Geometry     Geometry               `yaml:"geometry"`
	Grids        map[string]GridDoc     `yaml:"grids"`
	Properties   map[string]any         `yaml:"properties"`
	Measurements map[string]Measurement `yaml:"measurements"`
	Accessories  map[string]Accessory   `yaml:"accessories"`
	Lineage      map[string][]string    `yaml:"lineage"`
}

type ProductRef struct {
	Name string `yaml:"name"`
	Href string `yaml:"href"`
}

type Geometry struct {
	Type        string      `yaml:"type"`
	Coordinates orb.Polygon `yaml:"coordinates"`
}

type GridDoc struct {
	Shape     []int     `yaml:"shape,flow"`
	Transform []float64 `yaml:"transform,flow"`
}

type Measurement struct {
	Path   string `yaml:"path"`
	NoData int    `yaml:"nodata"`
}

type Accessory struct {
	Path string `yaml:"path"`
}

// DocInput is everything the dataset document is derived from.
type DocInput struct {
	Source    *catalog.Dataset
	Location  preflight.Location
	Config    *config.Process
	Grid      raster.Grid
	Processed time.Time
}

// DatasetID is stable for a source dataset, product and version, so reprocessing with
// overwrite keeps the same id.
func DatasetID(productName, version, sourceID string) string {
	return uuid.NewSHA1(idNamespace, []byte(productName+"/"+version+"/"+sourceID)).String()
}

// Affine converts a GDAL geotransform into the row-major 3x3 affine ODC grids use.
func Affine(gt [6]float64) []float64 {
	return []float64{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3], 0, 0, 1}
}

// Footprint is the grid extent as a closed polygon in the grid CRS.
func Footprint(g raster.Grid) orb.Polygon {
	minX, minY, maxX, maxY := g.Bounds()
	return orb.Polygon{orb.Ring{
		{minX, maxY},
		{maxX, maxY},
		{maxX, minY},
		{minX, minY},
		{minX, maxY},
	}}
}

func BuildDatasetDoc(in DocInput) (*DatasetDoc, error) {
	if in.Source == nil || in.Config == nil {
		return nil, fmt.Errorf("dataset document needs a source dataset and a config")
	}
	loc := in.Location
	day := loc.Date.UTC().Format(time.RFC3339)

	props := map[string]any{}
	for _, key := range inheritedProperties {
		if v, ok := in.Source.Properties[key]; ok && v != nil {
			props[key] = v
		}
	}
	props["datetime"] = day
	props["dtr:start_datetime"] = day
	props["dtr:end_datetime"] = day
	props["odc:product_family"] = productFamily
	props["odc:producer"] = producer
	props[catalog.PropMaturity] = "final"
	props["odc:collection_number"] = collectionNumber
	props["odc:dataset_version"] = strings.TrimSpace(in.Config.Product.Version)
	props[catalog.PropRegionCode] = loc.Region
	props["odc:file_format"] = fileFormat
	props["odc:processing_datetime"] = in.Processed.UTC().Format(time.RFC3339)
	props["odc:input_products"] = InputProducts
	props["title"] = loc.Prefix

	return &DatasetDoc{
		Schema: schemaURL,
		ID:     DatasetID(loc.Product, loc.Version, in.Source.ID),
		Label:  loc.Prefix,
		Product: ProductRef{
			Name: loc.Product,
			Href: in.Config.ExplorerProductURL(loc.Product),
		},
		CRS:      strings.ToLower(in.Grid.CRS),
		Geometry: Geometry{Type: "Polygon", Coordinates: Footprint(in.Grid)},
		Grids: map[string]GridDoc{
			"default": {
				Shape:     []int{in.Grid.Height, in.Grid.Width},
				Transform: Affine(in.Grid.GeoTransform),
			},
		},
		Properties: props,
		Measurements: map[string]Measurement{
			measurementName: {Path: loc.FileName(preflight.RasterSuffix), NoData: nodata},
		},
		Accessories: map[string]Accessory{
			thumbnailName: {Path: loc.FileName(preflight.ThumbnailSuffix)},
		},
		Lineage: map[string][]string{
			lineageClassifier: {in.Source.ID},
		},
	}, nil
}
