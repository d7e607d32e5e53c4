package history

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrix/internal/model"
	"metrix/internal/provider/polygon"
	"metrix/internal/query"
	"metrix/internal/saver"
	"metrix/internal/store"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	bars  map[bool][]model.Bar // keyed by Request.Adjusted
	err   error
}

func (p *fakeProvider) GetName() string { return "fake" }
func (p *fakeProvider) Close() error    { return nil }

func (p *fakeProvider) FetchAggregates(_ context.Context, req query.Request) ([]model.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]model.Bar{}, p.bars[req.Adjusted]...), nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memStore counts every operation and can be told to fail.
type memStore struct {
	data     map[query.Key][]byte
	exists   int
	reads    int
	writes   int
	existErr error
	readErr  error
	writeErr error
}

func newMemStore() *memStore { return &memStore{data: map[query.Key][]byte{}} }

func (s *memStore) ops() int { return s.exists + s.reads + s.writes }

func (s *memStore) Exists(_ context.Context, key query.Key) (bool, error) {
	s.exists++
	if s.existErr != nil {
		return false, s.existErr
	}
	_, ok := s.data[key]
	return ok, nil
}

func (s *memStore) Read(_ context.Context, key query.Key) ([]byte, error) {
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	b, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (s *memStore) Write(_ context.Context, key query.Key, data []byte) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Location(key query.Key) string { return "mem://" + key.String() }

func adjustedBars() []model.Bar {
	return []model.Bar{
		{Open: 150, High: 152, Low: 149, Close: 151, Volume: 1000000, VWAP: 150.5, Timestamp: model.MillisToTime(1609459200000), Transactions: 100},
		{Open: 151, High: 153, Low: 150, Close: 152, Volume: 1100000, VWAP: 151.5, Timestamp: model.MillisToTime(1609545600000), Transactions: 110},
	}
}

func rawBars() []model.Bar {
	return []model.Bar{
		{Open: 600, High: 608, Low: 596, Close: 604, Volume: 250000, VWAP: 602, Timestamp: model.MillisToTime(1609459200000), Transactions: 100},
		{Open: 604, High: 612, Low: 600, Close: 608, Volume: 275000, VWAP: 606, Timestamp: model.MillisToTime(1609545600000), Transactions: 110},
	}
}

func aaplRequest(t *testing.T) query.Request {
	t.Helper()
	r, err := query.New("AAPL", 1, query.Day, query.NewDate(2021, 1, 1), query.NewDate(2021, 1, 5), true, query.Asc, 50000)
	require.NoError(t, err)
	return r
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{bars: map[bool][]model.Bar{true: adjustedBars(), false: rawBars()}}
}

func TestFetch_MissThenHit(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("parquet"))
	req := aaplRequest(t)

	first, err := f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.Equal(t, adjustedBars(), first)
	assert.Equal(t, 1, p.Calls())
	assert.Contains(t, s.data, req.Key())
	assert.Equal(t, 1, s.writes)
	assert.Zero(t, s.reads)

	second, err := f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.Calls(), "a hit must not reach the provider")
	assert.Equal(t, 1, s.writes, "a hit must not rewrite the artifact")
	assert.Equal(t, 1, s.reads)
	assert.Equal(t, 2, s.exists)
}

func TestFetch_Bypass(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("parquet"))
	req := aaplRequest(t)

	for i := 1; i <= 3; i++ {
		bars, err := f.Fetch(ctx, req, false)
		require.NoError(t, err)
		assert.Equal(t, adjustedBars(), bars)
		assert.Equal(t, i, p.Calls())
	}
	assert.Zero(t, s.ops(), "bypass must not touch the store")
}

func TestFetch_BypassIgnoresExistingArtifact(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("json"))
	req := aaplRequest(t)
	s.data[req.Key()] = []byte("not json at all")

	bars, err := f.Fetch(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, adjustedBars(), bars)
	assert.Equal(t, []byte("not json at all"), s.data[req.Key()])
}

func TestFetch_AAPLScenarioOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), ".cache", "historical_data")
	format := saver.NewFormat("parquet")
	p := newFakeProvider()
	f := New(p, store.NewDir(dir, format.Extension()), format)
	req := aaplRequest(t)

	first, err := f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls())

	path := filepath.Join(dir, req.Key().String()+".parquet")
	assert.FileExists(t, path)
	assert.Equal(t, path, f.Location(req))

	// A fresh fetcher with a provider that would fail shows the data is served offline.
	offline := New(&fakeProvider{err: errors.New("network down")}, store.NewDir(dir, format.Extension()), format)
	second, err := offline.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFetch_AdjustedFlagSeparatesArtifacts(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("csv"))

	adj := aaplRequest(t)
	raw := adj
	raw.Adjusted = false

	gotAdj, err := f.Fetch(ctx, adj, true)
	require.NoError(t, err)
	gotRaw, err := f.Fetch(ctx, raw, true)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Calls())
	assert.Len(t, s.data, 2)
	assert.Equal(t, adjustedBars(), gotAdj)
	assert.Equal(t, rawBars(), gotRaw)

	again, err := f.Fetch(ctx, raw, true)
	require.NoError(t, err)
	assert.Equal(t, rawBars(), again)
	assert.Equal(t, 2, p.Calls())
}

func TestFetch_AuthFailureLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	authErr := &polygon.APIError{StatusCode: http.StatusUnauthorized, Message: "Unknown API Key"}
	p := &fakeProvider{err: authErr}
	dir := filepath.Join(t.TempDir(), "cache")
	f := New(p, store.NewDir(dir, "parquet"), saver.NewFormat("parquet"))
	req := aaplRequest(t)

	_, err := f.Fetch(ctx, req, true)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, req.Key(), perr.Key)
	var apiErr *polygon.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsAuth())

	_, statErr := os.Stat(filepath.Join(dir, req.Key().String()+".parquet"))
	assert.True(t, os.IsNotExist(statErr))

	p.err = nil
	bars, err := f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.Equal(t, adjustedBars(), bars)
	assert.Equal(t, 2, p.Calls())
}

func TestFetch_BypassProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	f := New(p, newMemStore(), saver.NewFormat("json"))

	_, err := f.Fetch(context.Background(), aaplRequest(t), false)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, perr.Key)
	assert.EqualError(t, errors.Unwrap(err), "boom")
}

func TestFetch_CorruptArtifactIsHardFailure(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("parquet"))
	req := aaplRequest(t)
	s.data[req.Key()] = []byte("definitely not parquet")

	_, err := f.Fetch(ctx, req, true)
	var cerr *CacheIOError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, OpDecode, cerr.Op)
	assert.Equal(t, req.Key(), cerr.Key)
	assert.Zero(t, p.Calls(), "a corrupt artifact must not trigger a re-fetch")
}

func TestFetch_StoreErrors(t *testing.T) {
	ctx := context.Background()
	req := aaplRequest(t)

	t.Run("exists", func(t *testing.T) {
		s := newMemStore()
		s.existErr = errors.New("permission denied")
		p := newFakeProvider()
		_, err := New(p, s, saver.NewFormat("json")).Fetch(ctx, req, true)
		var cerr *CacheIOError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, OpExists, cerr.Op)
		assert.Zero(t, p.Calls())
	})

	t.Run("read", func(t *testing.T) {
		s := newMemStore()
		s.data[req.Key()] = []byte("[]")
		s.readErr = errors.New("io error")
		_, err := New(newFakeProvider(), s, saver.NewFormat("json")).Fetch(ctx, req, true)
		var cerr *CacheIOError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, OpRead, cerr.Op)
	})
}

func TestFetch_WriteFailureReturnsRows(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newMemStore()
	s.writeErr = errors.New("disk full")
	p := newFakeProvider()
	f := New(p, s, saver.NewFormat("parquet"), WithLogger(logger))

	bars, err := f.Fetch(context.Background(), aaplRequest(t), true)
	require.NoError(t, err)
	assert.Equal(t, adjustedBars(), bars)
	assert.Empty(t, s.data)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "disk full")
}

func TestFetch_EmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{bars: map[bool][]model.Bar{}}
	s := newMemStore()
	f := New(p, s, saver.NewFormat("parquet"))
	req := aaplRequest(t)

	bars, err := f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)

	bars, err = f.Fetch(ctx, req, true)
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
	assert.Equal(t, 1, p.Calls())
}

func TestFetch_InvalidRequest(t *testing.T) {
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("json"))

	req := aaplRequest(t)
	req.From, req.To = req.To, req.From

	_, err := f.Fetch(context.Background(), req, true)
	assert.ErrorIs(t, err, query.ErrInvalidRequest)
	assert.Zero(t, p.Calls())
	assert.Zero(t, s.ops())
}

func TestFetcher_CacheEnabledOption(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s := newMemStore()
	f := New(p, s, saver.NewFormat("json"), WithCacheEnabled(false))
	assert.False(t, f.CacheEnabled())

	_, err := f.Fetch(ctx, aaplRequest(t), f.CacheEnabled())
	require.NoError(t, err)
	assert.Zero(t, s.ops())

	f = New(p, s, saver.NewFormat("json"))
	assert.True(t, f.CacheEnabled())
	_, err = f.Fetch(ctx, aaplRequest(t), f.CacheEnabled())
	require.NoError(t, err)
	assert.Equal(t, 1, s.writes)
	assert.Equal(t, aaplRequest(t).Key(), f.Key(aaplRequest(t)))
}
