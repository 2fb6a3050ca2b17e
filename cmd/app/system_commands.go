package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/rotator/cmd/app/commands"
	"github.com/allisson/rotator/internal/app"
	"github.com/allisson/rotator/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server and the rotation scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				cfg := container.Config()
				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			}),
		},
		{
			Name:  "self-test",
			Usage: "Round-trip random data through the HSM-backed encryption service",
			Flags: []cli.Flag{formatFlag()},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				envelope, err := container.EnvelopeService()
				if err != nil {
					return err
				}
				return commands.RunSelfTest(ctx, envelope, container.Logger(), commands.DefaultIO(),
					cmd.String("format"))
			}),
		},
		{
			Name:  "usage-report",
			Usage: "Write a signed usage report for offline license reconciliation",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "File to write the report to (defaults to stdout)",
				},
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				collector, err := container.UsageCollector()
				if err != nil {
					return err
				}
				return commands.RunUsageReport(ctx, collector, container.Logger(), commands.DefaultIO(),
					container.Config().LicenseID, cmd.String("output"))
			}),
		},
		{
			Name:  "verify-usage-report",
			Usage: "Verify the signature of a usage report",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Required: true, Usage: "Path of the report to verify"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunVerifyUsageReport(commands.DefaultIO(), config.Load().LicenseID, cmd.String("file"))
			},
		},
	}
}
