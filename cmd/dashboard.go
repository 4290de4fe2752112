package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/watchx/internal/formatter"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Dashboard prints every tracked item grouped by content type and status.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	agg, err := store.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	if raw := cmd.String("type"); raw != "" {
		t, err := models.ParseContentType(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidContentType, err)
		}
		agg = formatter.OnlyType(agg, t)
	}
	agg = formatter.Filter(agg, cmd.String("filter"))

	if cmd.Bool("json") {
		return r.writeJSON(agg, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Dashboard (%d tracked)", agg.Len()))
	if agg.Len() == 0 {
		r.writePlain("Nothing tracked yet.\n")
		return nil
	}

	for _, t := range models.ContentTypes() {
		for _, s := range models.Statuses() {
			items := agg.Items(t, s)
			if len(items) == 0 {
				continue
			}
			plural := t.Plural()
			r.writePlainln("%s / %s (%d)", r.bold(strings.ToUpper(plural[:1])+plural[1:]), r.statusLabel(s), len(items))
			for i, item := range items {
				info := item.Info()
				r.writePlain("%d. %s (%s)  [%s]\n", i+1, info.Title, shared.FormatYear(info.Year), info.ID)
			}
		}
	}
	return nil
}

// Export writes the dashboard to files in the requested format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	agg, err := store.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("📝 %s\n", update.Message)
		}
	}()

	engine := tasks.NewEngine(nil, r.logger)
	result, err := engine.Export(ctx, progressCh, agg, tasks.ExportOpts{
		Format:      format,
		OutputDir:   cmd.String("output"),
		SplitByType: cmd.Bool("split"),
	})
	close(progressCh)
	<-done

	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	for _, t := range models.ContentTypes() {
		r.writePlain("%s: %d\n", t.Plural(), result.Counts[t])
	}
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}
