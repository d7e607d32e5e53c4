package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"metrix/internal/store"
)

func (r *runner) keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the cache key and artifact location of a request",
		UsageText: "metrix key --from 2021-01-01 --to 2021-01-05 [options] TICKER",
		Flags: append(requestFlags(),
			&cli.BoolFlag{
				Name:  "canonical",
				Usage: "also print the canonical encoding the key is hashed from",
			},
		),
		Action: r.keyAction,
	}
}

func (r *runner) keyAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one ticker, got %d", cmd.Args().Len())
	}
	req, err := buildRequest(cmd, cmd.Args().First())
	if err != nil {
		return err
	}
	return r.withEnv(ctx, func(env *Env) error {
		if cmd.Bool("canonical") {
			fmt.Fprintln(r.stdout, req.Canonical())
			fmt.Fprintln(r.stdout)
		}
		ok, err := env.Store.Exists(ctx, req.Key())
		if err != nil {
			return err
		}
		fmt.Fprintf(r.stdout, "key:      %s\n", env.Fetcher.Key(req))
		fmt.Fprintf(r.stdout, "location: %s\n", env.Fetcher.Location(req))
		fmt.Fprintf(r.stdout, "cached:   %t\n", ok)
		return nil
	})
}

func (r *runner) cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "inspect the cache",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "list cached keys (dir backend only)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return r.withEnv(ctx, func(env *Env) error {
						lister, ok := env.Store.(store.Lister)
						if !ok {
							return fmt.Errorf("cache backend %T cannot list artifacts", env.Store)
						}
						keys, err := lister.List()
						if err != nil {
							return err
						}
						var b strings.Builder
						for _, k := range keys {
							b.WriteString(k.String())
							b.WriteByte('\n')
						}
						_, err = fmt.Fprint(r.stdout, b.String())
						return err
					})
				},
			},
		},
	}
}
