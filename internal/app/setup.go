package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"metrix/internal/provider"
	"metrix/internal/provider/polygon"
	"metrix/internal/saver"
	"metrix/internal/store"
)

// CreateProvider creates DataProvider from config (currently Polygon only)
func CreateProvider(cfg *Config, logger *slog.Logger) (provider.DataProvider, error) {
	switch strings.ToLower(cfg.DataProvider) {
	case "polygon":
		p, err := createPolygonProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported data provider: %s. Options: polygon", cfg.DataProvider)
	}
}

func createPolygonProvider(cfg *Config, logger *slog.Logger) (*provider.PolygonProvider, error) {
	keys := cfg.Polygon.Keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("POLYGON_API_KEY or POLYGON_API_KEYS not set")
	}
	return provider.NewPolygonProvider(polygon.Options{
		APIKeys:           keys,
		Strategy:          polygon.ParseStrategy(cfg.Polygon.KeyStrategy),
		BaseURL:           cfg.Polygon.BaseURL,
		Timeout:           cfg.Polygon.Timeout,
		RequestsPerMinute: cfg.Polygon.RatePerMinute,
		Logger:            logger,
	})
}

// CreateStore opens the cache backend named by CACHE_BACKEND. The returned
// cleanup releases backend connections.
func CreateStore(ctx context.Context, cfg *Config, format saver.Format) (store.Store, func(), error) {
	ext := format.Extension()
	switch strings.ToLower(cfg.Cache.Backend) {
	case BackendDir, "":
		return store.NewDir(cfg.Cache.Dir, ext), func() {}, nil
	case BackendS3:
		s, err := store.NewS3(ctx, store.S3Options{
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Ext:      ext,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case BackendRedis:
		r, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Ext:      ext,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s. Options: dir, s3, redis", cfg.Cache.Backend)
	}
}
