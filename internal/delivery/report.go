package delivery

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// WriteReport stores one CSV row per result at uri.
func WriteReport(ctx context.Context, store storage.Store, uri string, results []Result) error {
	rows := make([]*Result, len(results))
	for i := range results {
		rows[i] = &results[i]
	}
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return store.Put(ctx, uri, bytes.NewReader(data))
}

// ReadReport loads a report written by WriteReport.
func ReadReport(ctx context.Context, store storage.Store, uri string) ([]*Result, error) {
	data, err := storage.ReadAll(ctx, store, uri)
	if err != nil {
		return nil, err
	}
	var rows []*Result
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", uri, err)
	}
	return rows, nil
}
