package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/rotator/cmd/app/commands"
	"github.com/allisson/rotator/internal/app"
)

// clientFlags are shared by create-client and update-client. Omitting --policies
// starts the interactive prompt.
func clientFlags(activeUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Client display name"},
		&cli.BoolFlag{Name: "active", Aliases: []string{"a"}, Value: true, Usage: activeUsage},
		&cli.StringFlag{
			Name:    "policies",
			Aliases: []string{"p"},
			Usage:   `JSON policy list, e.g. [{"path":"/projects/billing/*","capabilities":["read"]}]`,
		},
		formatFlag(),
	}
}

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-client",
			Usage: "Create an API client and print its bearer token once",
			Flags: clientFlags("Allow the client to authenticate right away"),
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				clients, err := container.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunCreateClient(ctx, clients, container.Logger(), commands.DefaultIO(),
					cmd.String("name"), cmd.Bool("active"), cmd.String("policies"), cmd.String("format"))
			}),
		},
		{
			Name:  "update-client",
			Usage: "Replace the name, active flag and policies of an API client",
			Flags: append([]cli.Flag{idFlag("Client ID (UUID)")}, clientFlags("Allow the client to authenticate")...),
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				clients, err := container.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunUpdateClient(ctx, clients, container.Logger(), commands.DefaultIO(),
					cmd.String("id"), cmd.String("name"), cmd.Bool("active"), cmd.String("policies"),
					cmd.String("format"))
			}),
		},
	}
}
