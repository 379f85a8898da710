package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
	"github.com/forest-guardian/fmc-pipeline/internal/raster"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

const sourceID = "44220f30-1ece-4b16-b3e1-b117ac61184f"

// shiftProjector stands in for a real reprojection with a recognisable offset.
type shiftProjector struct{}

func (shiftProjector) ToWGS84(_ string, xs, ys []float64) error {
	for i := range xs {
		xs[i] = xs[i]/1000 + 100
		ys[i] = ys[i]/1000 - 40
	}
	return nil
}

func docInput(t *testing.T, outputFolder string) DocInput {
	t.Helper()
	cfg, err := config.Parse([]byte(`
input_products:
  input_bands: [nbart_red]
output_folder: ` + outputFolder + `
model_path: s3://models/fmc.json
product:
  name: dea_fmc
  version: 1.0.0
`))
	require.NoError(t, err)

	acquired := time.Date(2023, 1, 5, 0, 6, 49, 0, time.UTC)
	loc, err := preflight.ResolveLocation(cfg, "ga_s2am_fmc", "55HBU", acquired)
	require.NoError(t, err)

	return DocInput{
		Source: &catalog.Dataset{
			ID:      sourceID,
			Product: "ga_s2am_ard_3",
			Properties: map[string]any{
				catalog.PropPlatform:   "sentinel-2a",
				catalog.PropInstrument: "MSI",
				catalog.PropGQA:        0.3,
			},
		},
		Location:  loc,
		Config:    cfg,
		Grid:      raster.Grid{Width: 4, Height: 2, CRS: "EPSG:3577", GeoTransform: [6]float64{1000, 20, 0, 2000, 0, -20}},
		Processed: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildDatasetDoc(t *testing.T) {
	in := docInput(t, "s3://bucket/derivative")
	doc, err := BuildDatasetDoc(in)
	require.NoError(t, err)

	assert.Equal(t, DatasetID("ga_s2am_fmc", "1-0-0", sourceID), doc.ID)
	assert.NotEqual(t, sourceID, doc.ID)
	assert.Equal(t, "ga_s2am_fmc_1-0-0_55HBU_2023-01-05", doc.Label)
	assert.Equal(t, "https://explorer.dea.ga.gov.au/product/ga_s2am_fmc", doc.Product.Href)
	assert.Equal(t, "epsg:3577", doc.CRS)
	assert.Equal(t, []int{2, 4}, doc.Grids["default"].Shape)
	assert.Equal(t, []float64{20, 0, 1000, 0, -20, 2000, 0, 0, 1}, doc.Grids["default"].Transform)
	assert.Equal(t, "ga_s2am_fmc_1-0-0_55HBU_2023-01-05_final_fmc.tif", doc.Measurements["fmc"].Path)
	assert.Equal(t, -999, doc.Measurements["fmc"].NoData)
	assert.Equal(t, "ga_s2am_fmc_1-0-0_55HBU_2023-01-05_thumbnail.jpg", doc.Accessories["thumbnail"].Path)
	assert.Equal(t, []string{sourceID}, doc.Lineage["ard"])

	props := doc.Properties
	assert.Equal(t, "sentinel-2a", props["eo:platform"])
	assert.Equal(t, "MSI", props["eo:instrument"])
	assert.NotContains(t, props, catalog.PropGQA)
	assert.Equal(t, "fmc", props["odc:product_family"])
	assert.Equal(t, "final", props["dea:dataset_maturity"])
	assert.Equal(t, 3, props["odc:collection_number"])
	assert.Equal(t, "1.0.0", props["odc:dataset_version"])
	assert.Equal(t, "2023-01-05T00:00:00Z", props["datetime"])
	assert.Equal(t, "2024-03-01T12:00:00Z", props["odc:processing_datetime"])

	ring := doc.Geometry.Coordinates[0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[4])
	assert.Equal(t, 1080.0, ring[1][0])
	assert.Equal(t, 1960.0, ring[2][1])
}

func TestBuildSTACItem(t *testing.T) {
	in := docInput(t, "s3://bucket/derivative")
	doc, err := BuildDatasetDoc(in)
	require.NoError(t, err)

	item, err := BuildSTACItem(doc, in.Location, in.Config, shiftProjector{})
	require.NoError(t, err)

	folder := "s3://bucket/derivative/ga_s2am_fmc/1-0-0/55/HBU/2023/01/05/"
	assert.Equal(t, folder+"ga_s2am_fmc_1-0-0_55HBU_2023-01-05_final_fmc.tif", item.Assets["fmc"].Href)
	assert.Equal(t, folder+"ga_s2am_fmc_1-0-0_55HBU_2023-01-05_thumbnail.jpg", item.Assets["thumbnail"].Href)
	assert.Equal(t, 3577, *item.Assets["fmc"].ProjEPSG)
	assert.Equal(t, "ga_s2am_fmc", item.Collection)
	assert.InDeltaSlice(t, []float64{101, -38.04, 101.08, -38}, item.BBox, 1e-9)

	links := map[string]string{}
	for _, l := range item.Links {
		links[l.Rel] = l.Href
	}
	assert.Equal(t, folder+"ga_s2am_fmc_1-0-0_55HBU_2023-01-05.stac-item.json", links["self"])
	assert.Equal(t, folder+"ga_s2am_fmc_1-0-0_55HBU_2023-01-05.odc-metadata.yaml", links["odc_yaml"])

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"Polygon"`)
}

// recordingStore keeps the upload order and can fail one URI.
type recordingStore struct {
	storage.Store
	puts   []string
	failOn string
}

func (r *recordingStore) Put(ctx context.Context, uri string, body io.Reader) error {
	if r.failOn != "" && strings.HasSuffix(uri, r.failOn) {
		return errors.New("access denied")
	}
	r.puts = append(r.puts, uri)
	return r.Store.Put(ctx, uri, body)
}

func scratchArtifacts(t *testing.T, dir string) (string, string) {
	t.Helper()
	rasterFile := filepath.Join(dir, "out.tif")
	thumb := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, os.WriteFile(rasterFile, []byte("tif"), 0o644))
	require.NoError(t, os.WriteFile(thumb, []byte("jpg"), 0o644))
	return rasterFile, thumb
}

func TestPublish(t *testing.T) {
	out := t.TempDir()
	scratch := t.TempDir()
	in := docInput(t, out)
	rasterPath, thumbPath := scratchArtifacts(t, scratch)
	store := &recordingStore{Store: storage.FileStore{}}

	publisher := NewPublisher(store, shiftProjector{}, nil)
	err := publisher.Publish(context.Background(), PublishInput{
		DocInput:      in,
		RasterPath:    rasterPath,
		ThumbnailPath: thumbPath,
		ScratchDir:    scratch,
	})
	require.NoError(t, err)

	loc := in.Location
	assert.Equal(t, []string{loc.Thumbnail(), loc.DatasetDoc(), loc.STAC(), loc.Raster()}, store.puts)

	data, err := os.ReadFile(loc.DatasetDoc())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "https://schemas.opendatacube.org/dataset", doc["$schema"])

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch artifacts are removed")
}

func TestPublishStopsBeforeRasterOnFailure(t *testing.T) {
	scratch := t.TempDir()
	in := docInput(t, t.TempDir())
	rasterPath, thumbPath := scratchArtifacts(t, scratch)
	store := &recordingStore{Store: storage.FileStore{}, failOn: preflight.STACSuffix}

	err := NewPublisher(store, shiftProjector{}, nil).Publish(context.Background(), PublishInput{
		DocInput:      in,
		RasterPath:    rasterPath,
		ThumbnailPath: thumbPath,
		ScratchDir:    scratch,
	})
	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, in.Location.STAC(), uploadErr.URI)
	assert.NotContains(t, store.puts, in.Location.Raster())

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
