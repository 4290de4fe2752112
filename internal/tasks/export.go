package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/watchx/internal/formatter"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// ExportOpts contains configuration for dashboard exports.
type ExportOpts struct {
	Format      formatter.Format // Export format: json, csv, markdown, txt
	OutputDir   string           // Base output directory (default: watchx_export_{epoch})
	SplitByType bool             // Also write one file per content type
}

// ExportResult describes the files written by [Engine.Export].
type ExportResult struct {
	OutputDirectory string                     `json:"output_directory"`
	Format          formatter.Format           `json:"format"`
	Files           []string                   `json:"files"`
	Counts          map[models.ContentType]int `json:"counts"`
	ExportedAt      time.Time                  `json:"exported_at"`
	ManifestPath    string                     `json:"-"`
}

// Export writes agg to OutputDir along with an export_manifest.json summary.
func (e *Engine) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	agg models.ContentByStatus,
	opts ExportOpts,
) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("watchx_export_%d", time.Now().Unix())
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	targets := []struct {
		name string
		agg  models.ContentByStatus
	}{{"watchlist", agg}}
	if opts.SplitByType {
		for _, t := range models.ContentTypes() {
			targets = append(targets, struct {
				name string
				agg  models.ContentByStatus
			}{t.Plural(), formatter.OnlyType(agg, t)})
		}
	}

	result := &ExportResult{
		OutputDirectory: opts.OutputDir,
		Format:          opts.Format,
		Files:           make([]string, 0, len(targets)),
		Counts:          make(map[models.ContentType]int, 3),
		ExportedAt:      time.Now().UTC(),
	}
	for _, t := range models.ContentTypes() {
		result.Counts[t] = formatter.OnlyType(agg, t).Len() - len(agg.Items(t, models.StatusNone))
	}

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(opts.OutputDir, target.name+"."+opts.Format.Extension())
		written, err := formatter.WriteExport(target.agg, opts.Format, path)
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, written)
		e.sendProgress(prog, writeExportUpdate(i+1, len(targets), written))
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}
