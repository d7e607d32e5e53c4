// Package command holds the metrix CLI.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"metrix/internal/history"
	"metrix/internal/store"
	"metrix/internal/version"
)

// Env is what commands need from the dependency graph.
type Env struct {
	Fetcher *history.Fetcher
	Store   store.Store
	Logger  *slog.Logger
}

// Initializer builds an Env. The cleanup must be called when it succeeds.
type Initializer func(ctx context.Context) (*Env, func(), error)

// InitError wraps failures to load config or build dependencies.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "init: " + e.Err.Error() }

func (e *InitError) Unwrap() error { return e.Err }

// ExitCode maps a Run error to the process exit status:
// 0 ok, 1 init or config error, 2 command error.
func ExitCode(err error) int {
	var ie *InitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ie):
		return 1
	default:
		return 2
	}
}

// NewApp builds the root command. Dependencies are built lazily so that
// version and help work without configuration.
func NewApp(initEnv Initializer, stdout io.Writer) *cli.Command {
	r := &runner{initEnv: initEnv, stdout: stdout}
	return &cli.Command{
		Name:    "metrix",
		Usage:   "cached historical aggregates from Polygon",
		Version: version.Version,
		Writer:  stdout,
		Commands: []*cli.Command{
			r.fetchCommand(),
			r.keyCommand(),
			r.cacheCommand(),
			versionCommand(stdout),
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

type runner struct {
	initEnv Initializer
	stdout  io.Writer
}

// withEnv runs fn with a freshly built Env and releases it afterwards.
func (r *runner) withEnv(ctx context.Context, fn func(*Env) error) error {
	env, cleanup, err := r.initEnv(ctx)
	if err != nil {
		return &InitError{Err: err}
	}
	defer cleanup()
	return fn(env)
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the metrix version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(stdout, version.Version)
			return err
		},
	}
}
