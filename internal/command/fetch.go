package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"metrix/internal/batch"
	"metrix/internal/model"
	"metrix/internal/query"
	"metrix/internal/saver"
	"metrix/internal/tickers"
)

func (r *runner) fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "fetch aggregates, serving repeated requests from the cache",
		UsageText: "metrix fetch --from 2021-01-01 --to 2021-01-05 [options] TICKER...",
		Flags: append(requestFlags(),
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "always call the provider and leave the cache untouched",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output encoding: csv or json on stdout; parquet needs --out",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write one file per ticker and a run report under this directory instead of stdout",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "tickers fetched concurrently",
				Value:   1,
			},
			&cli.StringFlag{
				Name:  "tickers-file",
				Usage: "read additional tickers from a .txt or .json file",
			},
		),
		Action: r.fetchAction,
	}
}

func (r *runner) fetchAction(ctx context.Context, cmd *cli.Command) error {
	list := cmd.Args().Slice()
	if p := cmd.String("tickers-file"); p != "" {
		fromFile, err := tickers.LoadFile(p)
		if err != nil {
			return err
		}
		list = append(list, fromFile...)
	}
	list = tickers.Normalize(list)
	if len(list) == 0 {
		return fmt.Errorf("no tickers given")
	}

	out := cmd.String("out")
	format := saver.NewFormat(cmd.String("format"))
	if format == nil {
		return fmt.Errorf("unsupported --format %q (use: csv, json, parquet)", cmd.String("format"))
	}
	if out == "" && format.Extension() == "parquet" {
		return fmt.Errorf("--format parquet requires --out")
	}

	// Validate every ticker before the first network call.
	reqs := make([]query.Request, 0, len(list))
	for _, t := range list {
		req, err := buildRequest(cmd, t)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	return r.withEnv(ctx, func(env *Env) error {
		useCache := env.Fetcher.CacheEnabled() && !cmd.Bool("no-cache")
		results := batch.Run(ctx, env.Fetcher, reqs, batch.Options{
			Workers:      cmd.Int("workers"),
			CacheEnabled: useCache,
			Heartbeat:    30 * time.Second,
			Logger:       env.Logger,
		})

		var errs []error
		for _, res := range results {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", res.Request.Ticker, res.Err))
				continue
			}
			env.Logger.Info("fetched", "ticker", res.Request.Ticker, "rows", len(res.Bars), "cache", useCache, "elapsed", res.Elapsed.Round(time.Millisecond))
			var err error
			if out == "" {
				err = format.Save(r.stdout, res.Bars)
			} else {
				err = writeFile(out, res.Request, format, res.Bars)
			}
			if err != nil {
				return fmt.Errorf("%s: write output: %w", res.Request.Ticker, err)
			}
		}

		if out != "" {
			rep := batch.NewReport(results)
			if err := batch.WriteReport(out, rep); err != nil {
				env.Logger.Warn("could not write run report", "error", err)
			}
			if len(rep.Failed) > 0 {
				env.Logger.Info("summary failed", "count", len(rep.Failed), "reasons", rep.FailedReasons())
			}
		}
		return errors.Join(errs...)
	})
}

// outputPath is {dir}/{TICKER}/{ticker}_{from}_to_{to}.{ext}.
func outputPath(dir string, req query.Request, ext string) string {
	name := fmt.Sprintf("%s_%s_to_%s.%s", strings.ToLower(req.Ticker), req.From, req.To, ext)
	return filepath.Join(dir, req.Ticker, name)
}

func writeFile(dir string, req query.Request, format saver.Format, bars []model.Bar) error {
	p := outputPath(dir, req, format.Extension())
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := format.Save(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
