package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/forest-guardian/fmc-pipeline/internal/cache"
	"github.com/forest-guardian/fmc-pipeline/internal/catalog"
	"github.com/forest-guardian/fmc-pipeline/internal/config"
	"github.com/forest-guardian/fmc-pipeline/internal/delivery"
	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/metadata"
	"github.com/forest-guardian/fmc-pipeline/internal/ml"
	"github.com/forest-guardian/fmc-pipeline/internal/notification"
	"github.com/forest-guardian/fmc-pipeline/internal/properties"
	"github.com/forest-guardian/fmc-pipeline/internal/sentinel"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
	"github.com/forest-guardian/fmc-pipeline/output"
)

const (
	clientTimeout = 60 * time.Second
	modelCacheAge = 7 * 24 * time.Hour
)

type commandContext struct {
	debug      bool
	quiet      bool
	progress   bool
	report     string
	scratchDir string

	logger  *zap.Logger
	closers []func()
}

func (c *commandContext) init() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	logger, err := logging.New(c.debug)
	if err != nil {
		return err
	}
	c.logger = logger
	c.onClose(func() { _ = logger.Sync() })
	return nil
}

func (c *commandContext) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *commandContext) clientConfig(anonymous bool) storage.ClientConfig {
	return storage.ClientConfig{
		Region:    properties.AWSRegion(),
		Anonymous: anonymous,
		Timeout:   clientTimeout,
	}
}

func (c *commandContext) sqsClient(ctx context.Context) (*sqs.Client, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, c.clientConfig(false))
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func (c *commandContext) batchOptions() delivery.BatchOptions {
	return delivery.BatchOptions{
		ReportURI: c.report,
		Progress:  c.progress,
		Notifier: notification.NewDiscord(
			properties.DiscordErrorNotificationUrl(),
			properties.DiscordSuccessNotificationUrl(),
		),
	}
}

// newProcessor loads the process configuration and the model once and wires every stage.
func (c *commandContext) newProcessor(ctx context.Context, cfgURI string, overwrite bool) (*delivery.Processor, error) {
	godal.RegisterAll()

	store, err := storage.NewDefault(ctx, c.clientConfig(false))
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(ctx, store, cfgURI)
	if err != nil {
		return nil, err
	}
	c.logger.Info("process config loaded",
		zap.String("uri", cfgURI),
		zap.String("product", cfg.Product.Name),
		zap.String("version", cfg.Product.Version),
		zap.String("output_folder", cfg.OutputFolder))

	db := properties.Database()
	index, err := catalog.OpenPostgres(ctx, catalog.PostgresConfig{
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Database: db.Database,
	}, c.logger)
	if err != nil {
		return nil, err
	}
	c.onClose(index.Close)

	remote := ml.RemoteOptions{FeatureNames: sentinel.FeatureOrder, Logger: c.logger}
	if auth := properties.ModelAuth(); auth.Configured() {
		remote.Auth = &clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
		}
	}
	model, err := ml.Load(ctx, cfg.ModelPath, ml.LoadOptions{
		Store:  store,
		Cache:  cache.NewFileCache[ml.Forest](properties.CachePath(), modelCacheAge),
		Remote: remote,
		Logger: c.logger,
	})
	if err != nil {
		return nil, err
	}
	c.onClose(func() { _ = model.Close() })

	return delivery.NewProcessor(delivery.Dependencies{
		Catalog:   index,
		Store:     store,
		Config:    cfg,
		Loader:    sentinel.NewGDALLoader(c.logger),
		Model:     model,
		Writer:    output.NewCOGWriter(c.logger),
		Publisher: metadata.NewPublisher(store, metadata.GDALProjector{}, c.logger),
		Logger:    c.logger,
	}, delivery.Options{
		Overwrite:  overwrite,
		Anonymous:  properties.AnonymousRead(),
		ScratchDir: c.scratchPath(),
	}), nil
}

func (c *commandContext) scratchPath() string {
	if c.scratchDir != "" {
		return c.scratchDir
	}
	return properties.ScratchPath()
}
