// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/watchx/internal/formatter"
	"github.com/desertthunder/watchx/internal/tracker"
	"github.com/urfave/cli/v3"
)

func typeArg() cli.Argument {
	return &cli.StringArg{Name: "type", UsageText: "movie | show | anime"}
}

func idArg() cli.Argument {
	return &cli.StringArg{Name: "id"}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func pageFlags() []cli.Flag {
	return append(jsonFlags(),
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Number of pages to fetch",
			Value: 1,
		},
	)
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: tracker.DefaultTimeout,
	}
}

// setupCommand handles config and database initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
		},
	}
}

// userCommand manages accounts on the bundled backend.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users of the bundled backend",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user and print a bearer token for it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Display name",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime, 0 for no expiry",
						Value: defaultTokenTTL,
					},
				},
				Action: r.UserCreate,
			},
			{
				Name:  "token",
				Usage: "Issue a new bearer token for an existing user",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "user-id"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime, 0 for no expiry",
						Value: defaultTokenTTL,
					},
				},
				Action: r.UserToken,
			},
			{
				Name:  "list",
				Usage: "List users of the bundled backend",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Only users with this exact name",
					},
				),
				Action: r.UserList,
			},
			{
				Name:      "rename",
				Usage:     "Change a user's display name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user-id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "New display name",
						Required: true,
					},
				},
				Action: r.UserRename,
			},
			{
				Name:      "delete",
				Usage:     "Deactivate a user so its tokens stop resolving",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user-id"}},
				Action:    r.UserDelete,
			},
		},
	}
}

// catalogCommand browses the metadata providers.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Browse movies, shows and anime",
		Commands: []*cli.Command{
			{
				Name:      "popular",
				Usage:     "List the popular feed of a content type",
				Arguments: []cli.Argument{typeArg()},
				Flags:     pageFlags(),
				Action:    r.CatalogPopular,
			},
			{
				Name:      "search",
				Usage:     "Search a content type",
				Arguments: []cli.Argument{typeArg(), &cli.StringArg{Name: "query"}},
				Flags:     pageFlags(),
				Action:    r.CatalogSearch,
			},
			{
				Name:      "show",
				Usage:     "Show details and watch status of one item",
				Arguments: []cli.Argument{typeArg(), idArg()},
				Flags:     jsonFlags(),
				Action:    r.CatalogShow,
			},
		},
	}
}

// statusCommand reads and writes watch status through the backend.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Read and update watch status",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the watch status of an item",
				Arguments: []cli.Argument{typeArg(), idArg()},
				Flags:     append(jsonFlags(), timeoutFlag()),
				Action:    r.StatusGet,
			},
			{
				Name:      "set",
				Usage:     "Set the watch status of an item",
				Arguments: []cli.Argument{typeArg(), idArg(), &cli.StringArg{Name: "status", UsageText: "currently_watching | watch_later | watched | rewatch | none"}},
				Flags:     []cli.Flag{timeoutFlag()},
				Action:    r.StatusSet,
			},
			{
				Name:      "clear",
				Usage:     "Stop tracking an item",
				Arguments: []cli.Argument{typeArg(), idArg()},
				Flags:     []cli.Flag{timeoutFlag()},
				Action:    r.StatusClear,
			},
			{
				Name:      "progress",
				Usage:     "Record the season and episode of a show or anime being watched",
				Arguments: []cli.Argument{typeArg(), idArg()},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "season",
						Usage: "Season number (shows only)",
					},
					&cli.IntFlag{
						Name:     "episode",
						Usage:    "Episode number",
						Required: true,
					},
					timeoutFlag(),
				},
				Action: r.StatusProgress,
			},
			{
				Name:      "batch",
				Usage:     "Print the status of many items of one type",
				Arguments: []cli.Argument{typeArg(), &cli.StringArgs{Name: "ids", Min: 1, Max: -1}},
				Flags:     jsonFlags(),
				Action:    r.StatusBatch,
			},
		},
	}
}

// dashboardCommand prints everything the user tracks.
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"dash"},
		Usage:   "List tracked items grouped by type and status",
		Flags: append(jsonFlags(),
			&cli.StringFlag{
				Name:  "type",
				Usage: "Only show one content type",
			},
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Fuzzy filter by title",
			},
		),
		Action: r.Dashboard,
	}
}

// exportCommand writes the dashboard to disk.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export tracked items to files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown, txt",
				Value:   string(formatter.FormatJSON),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: watchx_export_{epoch})",
			},
			&cli.BoolFlag{
				Name:  "split",
				Usage: "Also write one file per content type",
			},
		},
		Action: r.Export,
	}
}

// serveCommand runs the bundled watch-status backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the watch-status backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Run pending migrations before serving",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

// cacheCommand maintains the on-disk catalog cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the catalog response cache",
		Commands: []*cli.Command{
			{
				Name:   "prune",
				Usage:  "Remove expired cache entries",
				Action: r.CachePrune,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Content type to open with",
				Value: "movie",
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Subscribe to backend change events",
				Value: true,
			},
		},
		Action: r.TUI,
	}
}
