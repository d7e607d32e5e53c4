package app

import (
	"context"
	"fmt"
	"log/slog"

	"metrix/internal/history"
	"metrix/internal/provider"
	"metrix/internal/saver"
	"metrix/internal/slogx"
	"metrix/internal/store"
)

// ProvideConfig loads and validates config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideLogger builds the logger from the LOG_* settings and installs it
// as the slog default (for Wire).
func ProvideLogger(cfg *Config) (*slog.Logger, func()) {
	logger, closer := slogx.New(slogx.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	slog.SetDefault(logger)
	return logger, func() { _ = closer.Close() }
}

// ProvideFormat creates the artifact Format from config (for Wire).
// Returns error if CACHE_FORMAT is not supported.
func ProvideFormat(cfg *Config) (saver.Format, error) {
	f := saver.NewFormat(cfg.Cache.Format)
	if f == nil {
		return nil, &ConfigError{Field: EnvPrefix + "CACHE_FORMAT", Reason: fmt.Sprintf("unsupported format %q (use: parquet, csv, json)", cfg.Cache.Format)}
	}
	return f, nil
}

// ProvideStore opens the configured cache backend (for Wire).
func ProvideStore(ctx context.Context, cfg *Config, format saver.Format, logger *slog.Logger) (store.Store, func(), error) {
	s, cleanup, err := CreateStore(ctx, cfg, format)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("cache store", "backend", cfg.Cache.Backend, "format", format.Extension(), "enabled", cfg.UseCache)
	return s, cleanup, nil
}

// ProvideDataProvider creates the remote provider (for Wire).
// The cleanup closes idle connections.
func ProvideDataProvider(cfg *Config, logger *slog.Logger) (provider.DataProvider, func(), error) {
	dp, err := CreateProvider(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return dp, func() { _ = dp.Close() }, nil
}

// ProvideFetcher wires the cached fetcher (for Wire).
func ProvideFetcher(cfg *Config, dp provider.DataProvider, s store.Store, format saver.Format, logger *slog.Logger) *history.Fetcher {
	return history.New(dp, s, format,
		history.WithCacheEnabled(cfg.UseCache),
		history.WithLogger(logger),
	)
}
