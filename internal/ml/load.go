package ml

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/cache"
	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

type LoadOptions struct {
	Store storage.Store
	// Cache keeps downloaded models between runs; nil disables it.
	Cache  cache.CacheService[Forest]
	Remote RemoteOptions
	Logger *zap.Logger
}

// Load resolves a model path. grpc:// and grpcs:// select a remote model server; any other
// URI is an exported tree ensemble read through storage.
func Load(ctx context.Context, modelPath string, opts LoadOptions) (Model, error) {
	logger := logging.OrNop(opts.Logger).Named("model")

	if u, err := url.Parse(modelPath); err == nil && (u.Scheme == "grpc" || u.Scheme == "grpcs") {
		remote := opts.Remote
		remote.TLS = u.Scheme == "grpcs"
		if remote.Logger == nil {
			remote.Logger = opts.Logger
		}
		logger.Info("using remote model", zap.String("target", u.Host))
		return DialRemote(ctx, u.Host, remote)
	}

	var key string
	if opts.Cache != nil {
		key = opts.Cache.GenerateKey(strings.TrimSpace(modelPath))
		if cached, ok := opts.Cache.Get(key); ok {
			if err := cached.Validate(); err == nil {
				logger.Info("model loaded from cache", zap.String("model_path", modelPath))
				return &cached, nil
			}
			logger.Warn("dropping invalid cached model", zap.String("model_path", modelPath))
			if err := opts.Cache.Delete(key); err != nil {
				logger.Warn("failed to drop cached model", zap.Error(err))
			}
		}
	}

	if opts.Store == nil {
		return nil, fmt.Errorf("no store to fetch model %s", modelPath)
	}
	data, err := storage.ReadAll(ctx, opts.Store, modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download model %s: %w", modelPath, err)
	}
	forest, err := ParseForest(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelPath, err)
	}

	if opts.Cache != nil {
		if err := opts.Cache.Set(key, *forest); err != nil {
			logger.Warn("failed to cache model", zap.Error(err))
		}
	}
	logger.Info("model loaded",
		zap.String("model_path", modelPath),
		zap.Int("trees", len(forest.Trees)),
		zap.Int("features", forest.NFeatures),
	)
	return forest, nil
}
