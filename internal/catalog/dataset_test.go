package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const location = "s3://dea-public-data/baseline/ga_s2am_ard_3/55/HBU/2023/01/05/20230105T010000/ga_s2am_ard_3-2-1_55HBU_2023-01-05_final.odc-metadata.yaml"

func loadFixture(t *testing.T) *Dataset {
	t.Helper()
	doc, err := os.ReadFile("testdata/ard_dataset.json")
	require.NoError(t, err)
	ds, err := ParseDocument(doc, "", location)
	require.NoError(t, err)
	return ds
}

func TestParseDocument(t *testing.T) {
	ds := loadFixture(t)

	assert.Equal(t, "44220f30-1ece-4b16-b3e1-b117ac61184f", ds.ID)
	assert.Equal(t, "ga_s2am_ard_3", ds.Product)
	assert.Equal(t, "55HBU", ds.RegionCode())
	assert.Equal(t, "final", ds.Maturity())
	assert.Equal(t, "sentinel-2a", ds.Platform())
	assert.Equal(t, "MSI", ds.Instrument())

	gqa, ok := ds.GQA()
	assert.True(t, ok)
	assert.InDelta(t, 0.35, gqa, 1e-9)

	acquired, err := ds.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 5, 0, 6, 49, 24000000, time.UTC), acquired)
}

func TestMeasurementURI(t *testing.T) {
	ds := loadFixture(t)

	uri, err := ds.MeasurementURI("nbart_red")
	require.NoError(t, err)
	assert.Equal(t, "s3://dea-public-data/baseline/ga_s2am_ard_3/55/HBU/2023/01/05/20230105T010000/ga_s2am_nbart_3-2-1_55HBU_2023-01-05_final_band04.tif", uri)

	uri, err = ds.MeasurementURI("nbart_blue")
	require.NoError(t, err)
	assert.Equal(t, "s3://other-bucket/blue.tif", uri)

	_, err = ds.MeasurementURI("nbart_swir_3")
	assert.Error(t, err)
}

func TestPropertyFallbacks(t *testing.T) {
	ds := &Dataset{ID: "x", Properties: map[string]any{
		PropGQA:      "1.5",
		PropDatetime: "2023-02-01",
	}}
	gqa, ok := ds.GQA()
	assert.True(t, ok)
	assert.Equal(t, 1.5, gqa)

	acquired, err := ds.Time()
	require.NoError(t, err)
	assert.Equal(t, "2023-02-01", acquired.Format("2006-01-02"))

	ds.Properties = map[string]any{PropDatetime: "yesterday"}
	_, ok = ds.GQA()
	assert.False(t, ok)
	_, err = ds.Time()
	assert.Error(t, err)
}

func TestMemoryCatalog(t *testing.T) {
	ds := loadFixture(t)
	mem := NewMemory(ds)

	got, err := mem.Get(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	_, err = mem.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresConfigURL(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "odc", Password: "p@ss", Database: "odc"}
	assert.Equal(t, "postgres://odc:p%40ss@db:5432/odc", cfg.URL())
}
