// Command inspect_dataset prints what the pipeline would do with one dataset without
// loading any imagery.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/preflight"
	"github.com/forest-guardian/fmc-pipeline/internal/properties"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

func main() {
	datasetID := flag.String("dataset-uuid", "", "Source dataset identifier")
	cfgURI := flag.String("process-cfg-url", "", "URI of the process configuration YAML")
	overwrite := flag.Bool("overwrite", false, "Ignore existing output")
	flag.Parse()

	if *datasetID == "" || *cfgURI == "" {
		log.Fatal("both --dataset-uuid and --process-cfg-url are required")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
		fmt.Println("Make sure you have set the required environment variables:")
		fmt.Println("- ODC_DB_HOSTNAME, ODC_DB_PORT, ODC_DB_USERNAME, ODC_DB_PASSWORD, ODC_DB_DATABASE")
		fmt.Println("- AWS_REGION")
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("=== FMC Dataset Inspection ===")
	fmt.Printf("Dataset: %s\n", *datasetID)
	fmt.Printf("Config: %s\n", *cfgURI)
	fmt.Println()

	store, err := storage.NewDefault(ctx, storage.ClientConfig{
		Region:    properties.AWSRegion(),
		Anonymous: properties.AnonymousRead(),
		Timeout:   time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}

	cfg, err := config.Load(ctx, store, *cfgURI)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("✓ Config loaded (%s %s)\n", cfg.Product.Name, cfg.Product.Version)

	db := properties.Database()
	index, err := catalog.OpenPostgres(ctx, catalog.PostgresConfig{
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Database: db.Database,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer index.Close()

	decision, err := preflight.Check(ctx, index, *datasetID, cfg, preflight.Options{
		Overwrite: *overwrite,
		Store:     store,
	})
	if err != nil {
		if preflight.IsRejected(err) {
			fmt.Printf("✗ Would be skipped: %v\n", err)
			return
		}
		log.Fatalf("Preflight failed: %v", err)
	}

	ds := decision.Dataset
	fmt.Println("✓ Dataset accepted")
	fmt.Printf("  Source product: %s\n", ds.Product)
	fmt.Printf("  Output product: %s\n", decision.ProductName)
	fmt.Printf("  Region: %s\n", ds.RegionCode())
	fmt.Printf("  Platform: %s\n", ds.Platform())
	if gqa, ok := ds.GQA(); ok {
		fmt.Printf("  GQA: %.3f\n", gqa)
	}
	fmt.Println()
	fmt.Println("Bands:")
	for _, band := range cfg.InputProducts.InputBands {
		uri, err := ds.MeasurementURI(band)
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", band, err)
			continue
		}
		fmt.Printf("  %s → %s\n", band, uri)
	}
	fmt.Println()
	fmt.Println("Outputs:")
	loc := decision.Location
	for _, uri := range []string{loc.Raster(), loc.Thumbnail(), loc.DatasetDoc(), loc.STAC()} {
		fmt.Printf("  %s\n", uri)
	}
}
