package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/rotator/internal/app"
	"github.com/allisson/rotator/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func idFlag(usage string) cli.Flag {
	return &cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true, Usage: usage}
}

// withContainer builds a container from the environment for the duration of one
// command and shuts it down afterwards.
func withContainer(fn func(ctx context.Context, cmd *cli.Command, container *app.Container) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		container := app.NewContainer(config.Load())
		defer func() { _ = container.Shutdown(ctx) }()
		return fn(ctx, cmd, container)
	}
}
