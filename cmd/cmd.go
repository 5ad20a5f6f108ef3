// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func integrationFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "integration",
		Aliases:  []string{"i"},
		Usage:    "Integration name from the [[integrations]] config section",
		Required: required,
	}
}

// setupCommand handles configuration, database and library setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the mapping database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent mapping database migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "library",
				Usage:  "Create the player's library schema in an integration's local database",
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.SetupLibrary,
			},
		},
	}
}

// triggersCommand manages change triggers in local libraries.
func triggersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "triggers",
		Usage: "Manage change triggers in local libraries",
		Commands: []*cli.Command{
			{
				Name:   "install",
				Usage:  "Install the change log and every trigger of the integration's player",
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.TriggersInstall,
			},
			{
				Name:   "uninstall",
				Usage:  "Drop the integration's triggers, keeping pending changes",
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.TriggersUninstall,
			},
			{
				Name:   "list",
				Usage:  "List trigger definitions and whether they are installed",
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.TriggersList,
			},
		},
	}
}

// syncCommand runs the sync workers.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push local library changes to the remote catalog",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one worker per integration until interrupted",
				Flags: []cli.Flag{
					integrationFlag(false),
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Drain pending changes and exit",
					},
					&cli.BoolFlag{
						Name:  "serve",
						Usage: "Start the status and metrics server (overrides server.enabled)",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not print change event updates",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:   "ui",
				Usage:  "Run the workers with an interactive monitor",
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.SyncUI,
			},
		},
	}
}

// changesCommand inspects change logs.
func changesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "changes",
		Usage: "Inspect pending changes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List unacknowledged changes in arrival order",
				Flags: []cli.Flag{
					integrationFlag(false),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of changes to list (0 for all)",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ChangesList,
			},
			{
				Name:  "skip",
				Usage: "Acknowledge a change without pushing it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "seq"},
				},
				Flags:  []cli.Flag{integrationFlag(false)},
				Action: r.ChangesSkip,
			},
		},
	}
}

// mappingCommand inspects and edits the identifier mapping store.
func mappingCommand(r *Runner) *cli.Command {
	typeFlag := &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "Item type (song or playlist)",
	}

	return &cli.Command{
		Name:    "mapping",
		Aliases: []string{"map"},
		Usage:   "Inspect local to remote id mappings",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List mappings of an integration",
				Flags: []cli.Flag{
					integrationFlag(false),
					typeFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MappingList,
			},
			{
				Name:  "get",
				Usage: "Resolve a local id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "local-id"},
				},
				Flags:  []cli.Flag{integrationFlag(false), typeFlag},
				Action: r.MappingGet,
			},
			{
				Name:  "remove",
				Usage: "Forget a mapping so the next create pushes the item again",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "local-id"},
				},
				Flags:  []cli.Flag{integrationFlag(false), typeFlag},
				Action: r.MappingRemove,
			},
			{
				Name:  "export",
				Usage: "Export mappings and failures",
				Flags: []cli.Flag{
					integrationFlag(false),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, markdown, json)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: {integration}_mappings.{ext})",
					},
				},
				Action: r.MappingExport,
			},
		},
	}
}

// failuresCommand inspects recorded fatal failures.
func failuresCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "failures",
		Usage: "Inspect changes that failed fatally",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded failures, newest first",
				Flags: []cli.Flag{
					integrationFlag(false),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.FailuresList,
			},
			{
				Name:  "remove",
				Usage: "Delete a recorded failure",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.FailuresRemove,
			},
		},
	}
}
