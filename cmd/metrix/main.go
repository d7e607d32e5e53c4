package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"metrix/internal/command"
	"metrix/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := command.NewApp(InitializeApp, os.Stdout)
	err := app.Run(ctx, os.Args)
	if err != nil {
		slog.Error("metrix failed", "error", err)
	}
	return command.ExitCode(err)
}
