// Package catalog resolves dataset identifiers to the source records indexed in the
// Open Data Cube database.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

)

var ErrNotFound = errors.New("dataset not found")

// Catalog looks up source dataset records.
type Catalog interface {
	Get(ctx context.Context, id string) (*Dataset, error)
}

const (
	PropDatetime   = "datetime"
	PropRegionCode = "odc:region_code"
	PropMaturity   = "dea:dataset_maturity"
	PropGQA        = "gqa:abs_iterative_mean_xy"
	PropPlatform   = "eo:platform"
	PropInstrument = "eo:instrument"
)

type Measurement struct {
	Path string `json:"path"`
	Band int    `json:"band,omitempty"`
	Grid string `json:"grid,omitempty"`
}

// Dataset is a read-only view over an eo3 dataset document.
type Dataset struct {
	ID           string
	Product      string
	Location     string
	Properties   map[string]any
	Measurements map[string]Measurement
}

type eo3Document struct {
	ID      string `json:"id"`
	Product struct {
		Name string `json:"name"`
	} `json:"product"`
	Properties   map[string]any         `json:"properties"`
	Measurements map[string]Measurement `json:"measurements"`
}

// ParseDocument builds a Dataset from a raw eo3 metadata document.
func ParseDocument(doc []byte, productName, location string) (*Dataset, error) {
	var raw eo3Document
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode dataset document: %w", err)
	}
	if productName == "" {
		productName = raw.Product.Name
	}

	ds := &Dataset{
		ID:           raw.ID,
		Product:      productName,
		Location:     location,
		Properties:   raw.Properties,
		Measurements: raw.Measurements,
	}
	if ds.Properties == nil {
		ds.Properties = map[string]any{}
	}
	return ds, nil
}

func (d *Dataset) stringProperty(key string) string {
	value, ok := d.Properties[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func (d *Dataset) RegionCode() string {
	return d.stringProperty(PropRegionCode)
}

func (d *Dataset) Maturity() string {
	return d.stringProperty(PropMaturity)
}

func (d *Dataset) Platform() string {
	return d.stringProperty(PropPlatform)
}

func (d *Dataset) Instrument() string {
	return d.stringProperty(PropInstrument)
}

// GQA returns the absolute iterative mean positional error, if recorded.
func (d *Dataset) GQA() (float64, bool) {
	switch v := d.Properties[PropGQA].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02",
}

// Time is the acquisition time in UTC.
func (d *Dataset) Time() (time.Time, error) {
	value := d.stringProperty(PropDatetime)
	if value == "" {
		return time.Time{}, fmt.Errorf("dataset %s has no %s", d.ID, PropDatetime)
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dataset %s has unparseable %s %q", d.ID, PropDatetime, value)
}

// MeasurementURI resolves a band path against the dataset location.
func (d *Dataset) MeasurementURI(band string) (string, error) {
	m, ok := d.Measurements[band]
	if !ok {
		return "", fmt.Errorf("dataset %s has no measurement %q", d.ID, band)
	}
	ref, err := url.Parse(m.Path)
	if err != nil {
		return "", fmt.Errorf("invalid measurement path %q: %w", m.Path, err)
	}
	if ref.IsAbs() || d.Location == "" {
		return m.Path, nil
	}
	base, err := url.Parse(d.Location)
	if err != nil {
		return "", fmt.Errorf("invalid dataset location %q: %w", d.Location, err)
	}
	return base.ResolveReference(ref).String(), nil
}
