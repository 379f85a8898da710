// Package config loads the process configuration document that drives a pipeline run.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

const (
	DefaultOutputCRS   = "EPSG:3577"
	DefaultResolution  = 20.0
	DefaultExplorerURL = "https://explorer.dea.ga.gov.au"
)

// Process is immutable once loaded and shared read-only by every dataset in a run.
type Process struct {
	InputProducts InputProducts `yaml:"input_products" validate:"required"`
	OutputFolder  string        `yaml:"output_folder" validate:"required"`
	ModelPath     string        `yaml:"model_path" validate:"required"`
	Product       Product       `yaml:"product" validate:"required"`
	OutputCRS     string        `yaml:"output_crs"`
	Resolution    float64       `yaml:"resolution" validate:"gte=0"`
	MaskFilters   *[]MaskFilter `yaml:"mask_filters"`
	ExplorerURL   string        `yaml:"explorer_url"`
}

type InputProducts struct {
	InputBands []string `yaml:"input_bands" validate:"required,min=1,dive,required"`
}

type Product struct {
	Name    string            `yaml:"name" validate:"required"`
	Version string            `yaml:"version" validate:"required"`
	Mapping map[string]string `yaml:"mapping"`
}

// MaskFilter is one morphological pass applied to the raw cloud test.
type MaskFilter struct {
	Op     string `yaml:"op" validate:"oneof=opening closing erosion dilation"`
	Radius int    `yaml:"radius" validate:"gte=0"`
}

// DefaultMaskFilters removes single-pixel speckle then grows cloud edges.
var DefaultMaskFilters = []MaskFilter{
	{Op: "opening", Radius: 1},
	{Op: "dilation", Radius: 3},
}

// DefaultProductMapping maps the supported ARD source products to their FMC product names.
var DefaultProductMapping = map[string]string{
	"ga_s2am_ard_3": "ga_s2am_fmc",
	"ga_s2bm_ard_3": "ga_s2bm_fmc",
	"ga_s2cm_ard_3": "ga_s2cm_fmc",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load fetches and parses the YAML document at uri.
func Load(ctx context.Context, store storage.Store, uri string) (*Process, error) {
	data, err := storage.ReadAll(ctx, store, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch process config %s: %w", uri, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("process config %s: %w", uri, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Process, error) {
	var cfg Process
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *Process) applyDefaults() {
	if strings.TrimSpace(p.OutputCRS) == "" {
		p.OutputCRS = DefaultOutputCRS
	}
	if p.Resolution == 0 {
		p.Resolution = DefaultResolution
	}
	if p.ExplorerURL == "" {
		p.ExplorerURL = DefaultExplorerURL
	}
	p.OutputFolder = strings.TrimRight(strings.TrimSpace(p.OutputFolder), "/")
}

func (p *Process) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid process config: %w", err)
	}
	if p.MaskFilters != nil {
		for i, filter := range *p.MaskFilters {
			if err := validate.Struct(filter); err != nil {
				return fmt.Errorf("invalid process config: mask_filters[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ProductVersion is the path-safe version string, dots replaced by dashes.
func (p *Process) ProductVersion() string {
	return strings.ReplaceAll(strings.TrimSpace(p.Product.Version), ".", "-")
}

// Filters returns the configured mask filters; an explicit empty list disables cleanup.
func (p *Process) Filters() []MaskFilter {
	if p.MaskFilters == nil {
		return DefaultMaskFilters
	}
	return *p.MaskFilters
}

// OutputProduct resolves the FMC product name for a source product.
func (p *Process) OutputProduct(sourceProduct string) (string, bool) {
	mapping := p.Product.Mapping
	if len(mapping) == 0 {
		mapping = DefaultProductMapping
	}
	name, ok := mapping[sourceProduct]
	return name, ok
}

// ExplorerProductURL is the catalog browser page for an output product.
func (p *Process) ExplorerProductURL(productName string) string {
	return strings.TrimRight(p.ExplorerURL, "/") + "/product/" + productName
}
