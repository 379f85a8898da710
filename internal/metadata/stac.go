package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
)

const (
	stacVersion   = "1.0.0"
	projExtension = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"
	eoExtension   = "https://stac-extensions.github.io/eo/v1.1.0/schema.json"
	cogMediaType  = "image/tiff; application=geotiff; profile=cloud-optimized"
)

// STACItem is a STAC 1.0 item feature.
type STACItem struct {
	Type           string            `json:"type"`
	STACVersion    string            `json:"stac_version"`
	STACExtensions []string          `json:"stac_extensions"`
	ID             string            `json:"id"`
	Collection     string            `json:"collection"`
	Geometry       *geojson.Geometry `json:"geometry"`
	BBox           []float64         `json:"bbox"`
	Properties     map[string]any    `json:"properties"`
	Assets         map[string]Asset  `json:"assets"`
	Links          []Link            `json:"links"`
}

type Asset struct {
	Href          string    `json:"href"`
	Type          string    `json:"type,omitempty"`
	Title         string    `json:"title,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	ProjEPSG      *int      `json:"proj:epsg,omitempty"`
	ProjShape     []int     `json:"proj:shape,omitempty"`
	ProjTransform []float64 `json:"proj:transform,omitempty"`
}

type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// epsgCode extracts the code from "EPSG:3577" style CRS strings.
func epsgCode(crs string) (int, bool) {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(code)
	return n, err == nil
}

// BuildSTACItem derives the discovery document from the dataset document. Asset hrefs point
// at the final storage location, never at scratch files.
func BuildSTACItem(doc *DatasetDoc, loc preflight.Location, cfg *config.Process, projector Projector) (*STACItem, error) {
	if len(doc.Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("dataset %s has no footprint", doc.ID)
	}
	ring := doc.Geometry.Coordinates[0]
	xs := make([]float64, len(ring))
	ys := make([]float64, len(ring))
	for i, p := range ring {
		xs[i], ys[i] = p[0], p[1]
	}
	if err := projector.ToWGS84(doc.CRS, xs, ys); err != nil {
		return nil, fmt.Errorf("failed to reproject footprint: %w", err)
	}
	wgs84 := make(orb.Ring, len(ring))
	for i := range ring {
		wgs84[i] = orb.Point{xs[i], ys[i]}
	}
	polygon := orb.Polygon{wgs84}
	bound := polygon.Bound()

	grid := doc.Grids["default"]
	props := make(map[string]any, len(doc.Properties)+3)
	for k, v := range doc.Properties {
		props[k] = v
	}
	props["proj:shape"] = grid.Shape
	props["proj:transform"] = grid.Transform
	var epsg *int
	if code, ok := epsgCode(doc.CRS); ok {
		epsg = &code
		props["proj:epsg"] = code
	}

	return &STACItem{
		Type:           "Feature",
		STACVersion:    stacVersion,
		STACExtensions: []string{eoExtension, projExtension},
		ID:             doc.ID,
		Collection:     doc.Product.Name,
		Geometry:       geojson.NewGeometry(polygon),
		BBox:           []float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()},
		Properties:     props,
		Assets: map[string]Asset{
			measurementName: {
				Href:          loc.Raster(),
				Type:          cogMediaType,
				Title:         "Fuel moisture content",
				Roles:         []string{"data"},
				ProjEPSG:      epsg,
				ProjShape:     grid.Shape,
				ProjTransform: grid.Transform,
			},
			thumbnailName: {
				Href:  loc.Thumbnail(),
				Type:  "image/jpeg",
				Title: "Thumbnail image",
				Roles: []string{"thumbnail"},
			},
		},
		Links: []Link{
			{Rel: "self", Href: loc.STAC(), Type: "application/json"},
			{Rel: "odc_yaml", Href: loc.DatasetDoc(), Type: "text/yaml", Title: "ODC Dataset YAML"},
			{Rel: "collection", Href: cfg.ExplorerProductURL(doc.Product.Name)},
			{Rel: "product_overview", Href: cfg.ExplorerProductURL(doc.Product.Name), Type: "text/html", Title: "ODC Product Overview"},
			{Rel: "alternative", Href: strings.TrimRight(cfg.ExplorerURL, "/") + "/dataset/" + doc.ID, Type: "text/html", Title: "ODC Dataset Overview"},
		},
	}, nil
}
