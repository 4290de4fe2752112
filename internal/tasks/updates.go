package tasks

import (
	"fmt"

	"github.com/desertthunder/watchx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchRecords Phase = iota
	HydrateContent
	WriteExport
)

func (p Phase) String() string {
	switch p {
	case FetchRecords:
		return "fetch_records"
	case HydrateContent:
		return "hydrate_content"
	case WriteExport:
		return "write_export"
	default:
		return ""
	}
}

func fetchRecordsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecords,
		Step:    step,
		Total:   total,
		Message: "Fetching watch-status records...",
	}
}

func foundRecordsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracked items", total),
	}
}

func hydratedUpdate(step, total int, item models.Content) ProgressUpdate {
	return ProgressUpdate{
		Phase:   HydrateContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, item.Info().Title),
		Data:    item,
	}
}

func hydrateFailedUpdate(step, total int, f HydrateFailure) ProgressUpdate {
	return ProgressUpdate{
		Phase:   HydrateContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s %s: %v", step, total, f.ContentType, f.ContentID, f.Err),
	}
}

func writeExportUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Wrote %s", step, total, path),
	}
}
