// package tasks runs long-running watchlist operations: hydrating stored records into
// content and exporting the dashboard.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
)

// DetailsFetcher resolves a content item by type and id. [catalog.Client] implements it.
type DetailsFetcher interface {
	Details(ctx context.Context, t models.ContentType, id string) (models.Content, error)
}

// RecordLister lists a user's stored watch-status records.
type RecordLister interface {
	ListByUser(userID string) ([]*models.WatchStatusRecord, error)
}

// Engine runs hydration and export jobs.
type Engine struct {
	details DetailsFetcher
	logger  *log.Logger
}

// NewEngine creates an [Engine]. details may be nil when only exports are run.
func NewEngine(details DetailsFetcher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{details: details, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
