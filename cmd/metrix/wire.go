//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"metrix/internal/app"
	"metrix/internal/command"
)

// InitializeApp builds the command Env (config, logger, store, provider, fetcher) via Wire.
// Caller must call the returned cleanup when done.
func InitializeApp(ctx context.Context) (*command.Env, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideLogger,
		app.ProvideFormat,
		app.ProvideStore,
		app.ProvideDataProvider,
		app.ProvideFetcher,
		wire.Struct(new(command.Env), "*"),
	)
	return nil, nil, nil
}
