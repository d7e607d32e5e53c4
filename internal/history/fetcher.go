// Package history returns aggregate bars for a request, serving them from the
// cache store when a previous fetch persisted them and from the remote
// provider otherwise.
package history

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"metrix/internal/model"
	"metrix/internal/provider"
	"metrix/internal/query"
	"metrix/internal/saver"
	"metrix/internal/store"
)

// Fetcher coordinates the provider, the cache store and the artifact format.
// It holds no mutable state and is safe for concurrent use when its
// dependencies are.
type Fetcher struct {
	provider     provider.DataProvider
	store        store.Store
	format       saver.Format
	cacheEnabled bool
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithCacheEnabled sets the cache mode reported by CacheEnabled. Defaults to true.
func WithCacheEnabled(enabled bool) Option {
	return func(f *Fetcher) { f.cacheEnabled = enabled }
}

// New returns a Fetcher.
func New(p provider.DataProvider, s store.Store, format saver.Format, opts ...Option) *Fetcher {
	f := &Fetcher{
		provider:     p,
		store:        s,
		format:       format,
		cacheEnabled: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheEnabled reports the configured cache mode. Callers pass it to Fetch
// unless a run overrides it.
func (f *Fetcher) CacheEnabled() bool { return f.cacheEnabled }

// Key returns the cache key of req.
func (f *Fetcher) Key(req query.Request) query.Key { return req.Key() }

// Location returns where the artifact for req lives in the store.
func (f *Fetcher) Location(req query.Request) string { return f.store.Location(req.Key()) }

// Fetch returns the bars for req.
//
// With cacheEnabled false the provider is called once and the store is not
// touched. Otherwise an existing artifact is decoded and returned without a
// provider call; on a miss the provider result is persisted before it is
// returned. A provider failure is a *ProviderError and leaves the store
// unchanged. A failure to read or decode an existing artifact is a
// *CacheIOError; the provider is not consulted in that case.
func (f *Fetcher) Fetch(ctx context.Context, req query.Request, cacheEnabled bool) ([]model.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !cacheEnabled {
		f.logger.Debug("cache bypassed", "ticker", req.Ticker, "from", req.From.String(), "to", req.To.String())
		bars, err := f.provider.FetchAggregates(ctx, req)
		if err != nil {
			return nil, &ProviderError{Err: err}
		}
		return bars, nil
	}

	key := req.Key()
	log := f.logger.With("ticker", req.Ticker, "key", key.String())

	ok, err := f.store.Exists(ctx, key)
	if err != nil {
		return nil, &CacheIOError{Op: OpExists, Key: key, Err: err}
	}
	if ok {
		return f.load(ctx, log, key)
	}

	log.Debug("cache miss, fetching", "provider", f.provider.GetName())
	start := time.Now()
	bars, err := f.provider.FetchAggregates(ctx, req)
	if err != nil {
		return nil, &ProviderError{Key: key, Err: err}
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	log.Debug("fetched", "rows", len(bars), "elapsed", time.Since(start).Round(time.Millisecond))

	if err := f.persist(ctx, key, bars); err != nil {
		log.Warn("cache write failed, result not cached", "location", f.store.Location(key), "error", err)
	}
	return bars, nil
}

func (f *Fetcher) load(ctx context.Context, log *slog.Logger, key query.Key) ([]model.Bar, error) {
	data, err := f.store.Read(ctx, key)
	if err != nil {
		return nil, &CacheIOError{Op: OpRead, Key: key, Err: err}
	}
	bars, err := f.format.Load(data)
	if err != nil {
		return nil, &CacheIOError{Op: OpDecode, Key: key, Err: err}
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	log.Debug("cache hit", "rows", len(bars), "location", f.store.Location(key))
	return bars, nil
}

func (f *Fetcher) persist(ctx context.Context, key query.Key, bars []model.Bar) error {
	var buf bytes.Buffer
	if err := f.format.Save(&buf, bars); err != nil {
		return &CacheIOError{Op: OpEncode, Key: key, Err: err}
	}
	if err := f.store.Write(ctx, key, buf.Bytes()); err != nil {
		return &CacheIOError{Op: OpWrite, Key: key, Err: err}
	}
	return nil
}
