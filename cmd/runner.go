package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/services"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tracker"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalogs   map[models.ContentType]services.Catalog
	backend    tracker.Backend
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	styled     bool
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalogs and Backend replace the providers and backend client built from config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalogs   map[models.ContentType]services.Catalog
	Backend    tracker.Backend
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// A nil Config is resolved from --config when the app runs.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalogs:   opts.Catalogs,
		backend:    opts.Backend,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		styled:     isTerminal(opts.Output),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "watchx",
		Usage:   "Track movies, shows and anime against a watch-status backend",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars(shared.EnvPrefix + "_CONFIG"),
			},
		},
		Before:   r.configure,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, userCommand, catalogCommand, statusCommand, dashboardCommand,
		exportCommand, serveCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure resolves the configuration once per run and applies the log settings.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.config == nil {
		config, err := shared.ResolveConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("failed to load config: %w", err)
		}
		r.config = config
	}

	if r.config.Log.File != "" {
		fileLogger, err := shared.NewFileLogger(r.config.Log.File)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(fileLogger)
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	return ctx, nil
}

func (r *Runner) serviceOptions() services.Options {
	return services.Options{HTTPClient: r.httpClient, Logger: r.logger}
}

// catalogClient builds the catalog client and opens the response cache when one is configured.
// The returned func releases the cache.
func (r *Runner) catalogClient() (*catalog.Client, func(), error) {
	catalogs := r.catalogs
	if catalogs == nil {
		var err error
		if catalogs, err = services.NewCatalogs(r.config, r.serviceOptions()); err != nil {
			return nil, nil, err
		}
	}

	var cache *catalog.Cache
	release := func() {}
	if path := r.config.Catalog.CachePath; path != "" {
		c, err := catalog.OpenCache(path, r.config.Catalog.CacheTTL.Duration)
		if err != nil {
			r.logger.Warn("catalog cache unavailable, continuing without it", "path", path, "error", err)
		} else {
			cache = c
			release = func() {
				if err := c.Close(); err != nil {
					r.logger.Warn("failed to close catalog cache", "error", err)
				}
			}
		}
	}

	return catalog.NewClient(catalogs, cache, r.logger), release, nil
}

func (r *Runner) backendClient() tracker.Backend {
	if r.backend == nil {
		r.backend = services.NewWatchStatusServiceFromConfig(r.config, r.serviceOptions())
	}
	return r.backend
}

// connect resolves the token's user and returns a status store for it.
func (r *Runner) connect(ctx context.Context) (*tracker.Store, error) {
	store, err := tracker.Connect(ctx, r.backendClient(), r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to reach watch-status backend: %w", err)
	}
	return store, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.bold(title))
	r.writePlain("═══════════════════════════════════════\n")
}

// bold renders s in bold when writing to a terminal.
func (r *Runner) bold(s string) string {
	if !r.styled {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Render(s)
}

// statusLabel renders a status label, colored when writing to a terminal.
func (r *Runner) statusLabel(s models.WatchStatus) string {
	label := s.Label()
	if s == models.StatusNone {
		label = "Not tracked"
	}
	if !r.styled {
		return label
	}
	return lipgloss.NewStyle().Foreground(statusColors[s]).Render(label)
}

var statusColors = map[models.WatchStatus]lipgloss.Color{
	models.StatusNone:              lipgloss.Color("#626262"),
	models.StatusCurrentlyWatching: lipgloss.Color("#04B575"),
	models.StatusWatchLater:        lipgloss.Color("#FFA500"),
	models.StatusWatched:           lipgloss.Color("#7D56F4"),
	models.StatusRewatch:           lipgloss.Color("#00B7EB"),
}
