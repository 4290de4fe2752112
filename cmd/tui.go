package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/services"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	kind, err := models.ParseContentType(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidContentType, err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/watchx-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	client, release, err := r.catalogClient()
	if err != nil {
		return err
	}
	defer release()

	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cmd.Bool("live") {
		if svc, ok := r.backendClient().(*services.WatchStatusService); ok {
			wsURL, header := svc.EventsURL(store.UserID())
			go func() {
				if err := store.Listen(ctx, wsURL, header); err != nil {
					r.logger.Warn("event stream stopped", "error", err)
				}
			}()
		}
	}

	model := ui.NewModel(ctx, client, store, ui.Options{
		Kind:    kind,
		Timeout: r.config.Backend.Timeout.Duration,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
