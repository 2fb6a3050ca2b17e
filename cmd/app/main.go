// Package main provides the entry point for the rotator CLI.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func getCommands(version string) []*cli.Command {
	var commands []*cli.Command
	commands = append(commands, getSystemCommands(version)...)
	commands = append(commands, getAuthCommands()...)
	commands = append(commands, getRotationCommands()...)
	return commands
}

func main() {
	cmd := &cli.Command{
		Name:     "rotator",
		Usage:    "Secret rotation engine with HSM-backed envelope encryption",
		Version:  version,
		Commands: getCommands(version),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
