package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

const sampleConfig = `
input_products:
  input_bands:
    - nbart_blue
    - nbart_red
    - oa_fmask
output_folder: s3://bucket/derivative/
model_path: s3://bucket/models/fmc.json
product:
  name: ga_s2_fmc_3
  version: 1.0.0
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"nbart_blue", "nbart_red", "oa_fmask"}, cfg.InputProducts.InputBands)
	assert.Equal(t, "s3://bucket/derivative", cfg.OutputFolder)
	assert.Equal(t, DefaultOutputCRS, cfg.OutputCRS)
	assert.Equal(t, DefaultResolution, cfg.Resolution)
	assert.Equal(t, "1-0-0", cfg.ProductVersion())
	assert.Equal(t, DefaultMaskFilters, cfg.Filters())
	assert.Equal(t, "https://explorer.dea.ga.gov.au/product/ga_s2am_fmc", cfg.ExplorerProductURL("ga_s2am_fmc"))
}

func TestParseNumericVersion(t *testing.T) {
	cfg, err := Parse([]byte(strings.Replace(sampleConfig, "version: 1.0.0", "version: 2.1", 1)))
	require.NoError(t, err)
	assert.Equal(t, "2-1", cfg.ProductVersion())
}

func TestParseMissingRequiredKeys(t *testing.T) {
	tests := map[string]string{
		"bands":   strings.Replace(sampleConfig, "input_products:", "other:", 1),
		"output":  strings.Replace(sampleConfig, "output_folder:", "other_folder:", 1),
		"model":   strings.Replace(sampleConfig, "model_path:", "other_path:", 1),
		"version": strings.Replace(sampleConfig, "version: 1.0.0", "", 1),
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMaskFilters(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig + "mask_filters: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Filters())

	cfg, err = Parse([]byte(sampleConfig + "mask_filters:\n  - op: closing\n    radius: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, []MaskFilter{{Op: "closing", Radius: 2}}, cfg.Filters())

	_, err = Parse([]byte(sampleConfig + "mask_filters:\n  - op: blur\n    radius: 2\n"))
	assert.Error(t, err)
}

func TestOutputProduct(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	name, ok := cfg.OutputProduct("ga_s2bm_ard_3")
	assert.True(t, ok)
	assert.Equal(t, "ga_s2bm_fmc", name)

	_, ok = cfg.OutputProduct("ga_ls8c_ard_3")
	assert.False(t, ok)

	cfg, err = Parse([]byte(sampleConfig + "  mapping:\n    ga_ls8c_ard_3: ga_ls8c_fmc\n"))
	require.NoError(t, err)
	name, ok = cfg.OutputProduct("ga_ls8c_ard_3")
	assert.True(t, ok)
	assert.Equal(t, "ga_ls8c_fmc", name)
	_, ok = cfg.OutputProduct("ga_s2am_ard_3")
	assert.False(t, ok)
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "process.yaml")
	store := storage.FileStore{}
	require.NoError(t, store.Put(ctx, path, strings.NewReader(sampleConfig)))

	cfg, err := Load(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, "ga_s2_fmc_3", cfg.Product.Name)

	_, err = Load(ctx, store, path+".missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
