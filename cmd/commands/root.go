package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "priomatrix",
		Usage: "Recurring tasks on an urgency/importance matrix",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewAddCommand(),
			NewEditCommand(),
			NewListCommand(),
			NewCalendarCommand(),
			NewShowCommand(),
			NewMoveCommand(),
			NewEndCommand(),
			NewResumeCommand(),
			NewDeleteCommand(),
			NewNextCommand(),
			NewExportCommand(),
			NewImportCommand(),
			NewBackupCommand(),
			NewRestoreCommand(),
			NewResetCommand(),
			NewServeCommand(),
			NewStatusCommand(),
			NewWatchCommand(),
		},
	}
}
