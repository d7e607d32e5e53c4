// Package batch runs many cached fetches through a bounded worker pool and
// summarises the outcome.
package batch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"metrix/internal/model"
	"metrix/internal/query"
)

// Fetcher is the part of history.Fetcher used by Run.
type Fetcher interface {
	Fetch(ctx context.Context, req query.Request, cacheEnabled bool) ([]model.Bar, error)
}

// Options configure Run.
type Options struct {
	Workers      int           // <= 0 means 1
	CacheEnabled bool
	Heartbeat    time.Duration // 0 disables progress lines
	Logger       *slog.Logger
}

// Result is the outcome of one request. Results keep the order of the input.
type Result struct {
	Request query.Request
	Bars    []model.Bar
	Err     error
	Elapsed time.Duration
}

// Run fetches every request with opts.Workers goroutines. It stops handing
// out work once ctx is done; requests never started carry ctx.Err().
func Run(ctx context.Context, f Fetcher, reqs []query.Request, opts Options) []Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make([]Result, len(reqs))
	pending := make(chan int, len(reqs))
	for i := range reqs {
		results[i].Request = reqs[i]
		pending <- i
	}
	close(pending)

	var mu sync.Mutex
	var success, failed int
	barsPerTicker := make(map[string]int)

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Heartbeat > 0 {
		go runHeartbeat(hbCtx, opts.Heartbeat, len(reqs), &mu, &success, &failed, barsPerTicker, logger)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range pending {
				req := reqs[i]
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				start := time.Now()
				bars, err := f.Fetch(ctx, req, opts.CacheEnabled)
				results[i].Bars, results[i].Err, results[i].Elapsed = bars, err, time.Since(start)

				mu.Lock()
				if err != nil {
					failed++
				} else {
					success++
					barsPerTicker[req.Ticker] += len(bars)
				}
				mu.Unlock()

				if err != nil {
					logger.Error("fetch fail", "ticker", req.Ticker, "date_range", dateRange(req), "reason", err)
				} else {
					logger.Debug("fetch ok", "ticker", req.Ticker, "date_range", dateRange(req), "bars", len(bars))
				}
			}
		}()
	}
	wg.Wait()

	logSummary(logger, success, failed, barsPerTicker)
	return results
}

func dateRange(req query.Request) string {
	return req.From.String() + ".." + req.To.String()
}

func runHeartbeat(ctx context.Context, interval time.Duration, total int, mu *sync.Mutex, success, failed *int, barsPerTicker map[string]int, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			s, f := *success, *failed
			var bars int
			for _, n := range barsPerTicker {
				bars += n
			}
			mu.Unlock()
			logger.Info("heartbeat", "done", s+f, "total", total, "success", s, "failed", f, "bars", bars)
		}
	}
}

func logSummary(logger *slog.Logger, success, failed int, barsPerTicker map[string]int) {
	var total int
	tickers := make([]string, 0, len(barsPerTicker))
	for t, n := range barsPerTicker {
		total += n
		tickers = append(tickers, t)
	}
	logger.Info("summary", "total_bars", total, "success", success, "failed", failed)
	sort.Strings(tickers)
	for _, t := range tickers {
		logger.Debug("summary ticker", "ticker", t, "bars", barsPerTicker[t])
	}
}
