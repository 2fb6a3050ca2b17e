package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/rotator/cmd/app/commands"
	"github.com/allisson/rotator/internal/app"
)

func getRotationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate",
			Usage: "Rotate a secret immediately, bypassing its schedule",
			Flags: []cli.Flag{idFlag("Rotation definition ID (UUID)"), formatFlag()},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				rotations, err := container.RotationUseCase()
				if err != nil {
					return err
				}
				return commands.RunRotate(ctx, rotations, container.Logger(), commands.DefaultIO(),
					cmd.String("id"), cmd.String("format"))
			}),
		},
	}
}
