package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrix/internal/batch"
	"metrix/internal/history"
	"metrix/internal/model"
	"metrix/internal/query"
	"metrix/internal/saver"
	"metrix/internal/store"
	"metrix/internal/version"
)

type stubProvider struct {
	calls   int
	tickers []string
}

func (p *stubProvider) GetName() string { return "stub" }
func (p *stubProvider) Close() error    { return nil }

func (p *stubProvider) FetchAggregates(_ context.Context, req query.Request) ([]model.Bar, error) {
	p.calls++
	p.tickers = append(p.tickers, req.Ticker)
	if req.Ticker == "FAIL" {
		return nil, errors.New("upstream unavailable")
	}
	return []model.Bar{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, VWAP: 1.2, Timestamp: model.MillisToTime(1609459200000), Transactions: 3}}, nil
}

type harness struct {
	provider *stubProvider
	dir      string
	stdout   bytes.Buffer
	initErr  error
}

func newHarness(t *testing.T) *harness {
	return &harness{provider: &stubProvider{}, dir: t.TempDir()}
}

func (h *harness) init(context.Context) (*Env, func(), error) {
	if h.initErr != nil {
		return nil, nil, h.initErr
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	format := saver.NewFormat("parquet")
	s := store.NewDir(h.dir, format.Extension())
	return &Env{
		Fetcher: history.New(h.provider, s, format, history.WithLogger(logger)),
		Store:   s,
		Logger:  logger,
	}, func() {}, nil
}

func (h *harness) run(args ...string) error {
	return NewApp(h.init, &h.stdout).Run(context.Background(), append([]string{"metrix"}, args...))
}

func TestFetch_SecondRunServedFromCache(t *testing.T) {
	h := newHarness(t)
	args := []string{"fetch", "--from", "2021-01-01", "--to", "2021-01-05", "aapl"}

	require.NoError(t, h.run(args...))
	require.NoError(t, h.run(args...))

	assert.Equal(t, 1, h.provider.calls)
	assert.Equal(t, []string{"AAPL"}, h.provider.tickers)
	header := "open,high,low,close,volume,vwap,timestamp,transactions\n"
	assert.Equal(t, 2, strings.Count(h.stdout.String(), header))
	assert.Contains(t, h.stdout.String(), "1,2,0.5,1.5,10,1.2,2021-01-01T00:00:00.000Z,3\n")
}

func TestFetch_NoCache(t *testing.T) {
	h := newHarness(t)
	args := []string{"fetch", "--no-cache", "--format", "json", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL"}

	require.NoError(t, h.run(args...))
	require.NoError(t, h.run(args...))

	assert.Equal(t, 2, h.provider.calls)
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Contains(t, h.stdout.String(), `"open": 1`)
}

func TestFetch_OutDirAndTickersFile(t *testing.T) {
	h := newHarness(t)
	out := t.TempDir()
	list := filepath.Join(t.TempDir(), "tickers.txt")
	require.NoError(t, os.WriteFile(list, []byte("# watchlist\nmsft\naapl\n"), 0o644))

	require.NoError(t, h.run("fetch", "--from", "2021-01-01", "--to", "2021-01-05",
		"--format", "parquet", "--out", out, "--tickers-file", list, "AAPL"))

	assert.Equal(t, []string{"AAPL", "MSFT"}, h.provider.tickers)
	assert.FileExists(t, filepath.Join(out, "AAPL", "aapl_2021-01-01_to_2021-01-05.parquet"))
	assert.FileExists(t, filepath.Join(out, "MSFT", "msft_2021-01-01_to_2021-01-05.parquet"))
	assert.FileExists(t, filepath.Join(out, batch.SuccessFile))
	assert.NoFileExists(t, filepath.Join(out, batch.FailedFile))
	assert.Empty(t, h.stdout.String())
}

func TestFetch_PartialFailure(t *testing.T) {
	h := newHarness(t)
	err := h.run("fetch", "--from", "2021-01-01", "--to", "2021-01-05", "FAIL", "AAPL")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	var perr *history.ProviderError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"FAIL", "AAPL"}, h.provider.tickers)
	assert.Contains(t, h.stdout.String(), "2021-01-01T00:00:00.000Z")
}

func TestFetch_InvalidRequestMakesNoCall(t *testing.T) {
	h := newHarness(t)
	err := h.run("fetch", "--from", "2021-01-05", "--to", "2021-01-01", "AAPL")
	assert.ErrorIs(t, err, query.ErrInvalidRequest)
	assert.Zero(t, h.provider.calls)

	err = h.run("fetch", "--timespan", "second", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL")
	assert.ErrorIs(t, err, query.ErrInvalidRequest)

	err = h.run("fetch", "--format", "parquet", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL")
	assert.ErrorContains(t, err, "requires --out")
}

func TestKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("key", "--canonical", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL"))

	req, err := query.Defaults("AAPL", 1, query.Day, query.NewDate(2021, 1, 1), query.NewDate(2021, 1, 5))
	require.NoError(t, err)
	got := h.stdout.String()
	assert.Contains(t, got, req.Canonical())
	assert.Contains(t, got, "key:      "+req.Key().String())
	assert.Contains(t, got, filepath.Join(h.dir, req.Key().String()+".parquet"))
	assert.Contains(t, got, "cached:   false")
	assert.Zero(t, h.provider.calls)
}

func TestCacheLs(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("fetch", "--adjusted=false", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL"))
	h.stdout.Reset()

	require.NoError(t, h.run("cache", "ls"))
	req, err := query.New("AAPL", 1, query.Day, query.NewDate(2021, 1, 1), query.NewDate(2021, 1, 5), false, query.Asc, query.MaxLimit)
	require.NoError(t, err)
	assert.Equal(t, req.Key().String()+"\n", h.stdout.String())
}

func TestInitErrorExitCode(t *testing.T) {
	h := newHarness(t)
	h.initErr = errors.New("POLYGON_API_KEY or POLYGON_API_KEYS not set")

	err := h.run("fetch", "--from", "2021-01-01", "--to", "2021-01-05", "AAPL")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, 0, ExitCode(nil))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	h.initErr = errors.New("must not be called")
	require.NoError(t, h.run("version"))
	assert.Equal(t, version.Version+"\n", h.stdout.String())
}
