package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/players"
	"github.com/desertthunder/gmsync/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Players: players.Default(),
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "gmsync",
		Usage:    "Mirror local media library changes into a remote music catalog",
		Version:  "0.1.0",
		Flags:    runner.flags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
