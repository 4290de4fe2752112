package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tracker"
	"github.com/urfave/cli/v3"
)

// statusView is the JSON shape printed by status commands.
type statusView struct {
	ContentType models.ContentType    `json:"contentType"`
	ContentID   string                `json:"contentId"`
	Status      models.WatchStatus    `json:"status"`
	Progress    *models.WatchProgress `json:"progress,omitempty"`
}

func newStatusView(key tracker.Key, entry models.StatusEntry) statusView {
	v := statusView{ContentType: key.ContentType, ContentID: key.ContentID, Status: entry.Status}
	if entry.Status == models.StatusCurrentlyWatching && key.ContentType.HasProgress() {
		p := entry.Progress()
		v.Progress = &p
	}
	return v
}

// StatusGet prints the watch status of one item.
func (r *Runner) StatusGet(ctx context.Context, cmd *cli.Command) error {
	t, id, err := contentArgs(cmd)
	if err != nil {
		return err
	}

	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	key := store.Key(t, id)
	entry, err := store.Status(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load watch status: %w", err)
	}

	view := newStatusView(key, entry)
	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlain("%s %s: %s\n", t, id, r.statusLabel(view.Status))
	if view.Progress != nil {
		r.writePlain("Progress: season %d, episode %d\n", view.Progress.Season, view.Progress.Episode)
	}
	return nil
}

// loadController returns a loaded controller for (t, id). Details are fetched when the
// type tracks progress so season and episode numbers can be clamped; a failed lookup
// only disables clamping.
func (r *Runner) loadController(ctx context.Context, store *tracker.Store, t models.ContentType, id string, timeout time.Duration) (*tracker.Controller, error) {
	var c *tracker.Controller
	if t.HasProgress() {
		if client, release, err := r.catalogClient(); err == nil {
			item, err := client.Details(ctx, t, id)
			release()
			if err == nil {
				c = tracker.ForContent(store, item, timeout)
			} else {
				r.logger.Debug("progress limits unavailable", "type", t, "id", id, "error", err)
			}
		}
	}
	if c == nil {
		c = tracker.NewController(store, t, id, tracker.ControllerOptions{Timeout: timeout})
	}

	if err := c.Load(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load watch status: %w", err)
	}
	return c, nil
}

// StatusSet writes a new status for one item.
func (r *Runner) StatusSet(ctx context.Context, cmd *cli.Command) error {
	t, id, err := contentArgs(cmd)
	if err != nil {
		return err
	}
	raw := cmd.StringArg("status")
	if raw == "" {
		return fmt.Errorf("%w: status", shared.ErrMissingArgument)
	}
	status, err := models.ParseWatchStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidStatus, err)
	}
	return r.setStatus(ctx, cmd, t, id, status)
}

// StatusClear removes the tracked status of one item.
func (r *Runner) StatusClear(ctx context.Context, cmd *cli.Command) error {
	t, id, err := contentArgs(cmd)
	if err != nil {
		return err
	}
	return r.setStatus(ctx, cmd, t, id, models.StatusNone)
}

func (r *Runner) setStatus(ctx context.Context, cmd *cli.Command, t models.ContentType, id string, status models.WatchStatus) error {
	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	c, err := r.loadController(ctx, store, t, id, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	defer c.Close()

	previous := c.Snapshot().Status
	if err := c.SetStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to update watch status: %w", err)
	}

	r.logger.Debug("status updated", "type", t, "id", id, "from", previous, "to", status)
	r.writePlain("✓ %s %s: %s → %s\n", t, id, r.statusLabel(previous), r.statusLabel(status))
	return nil
}

// StatusProgress moves the season and episode of an item being watched.
func (r *Runner) StatusProgress(ctx context.Context, cmd *cli.Command) error {
	t, id, err := contentArgs(cmd)
	if err != nil {
		return err
	}
	if !t.HasProgress() {
		return fmt.Errorf("%w: %s items do not track progress", shared.ErrInvalidArgument, t)
	}
	episode := cmd.Int("episode")
	if episode < 1 {
		return fmt.Errorf("%w: episode must be at least 1", shared.ErrInvalidArgument)
	}

	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	c, err := r.loadController(ctx, store, t, id, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	defer c.Close()

	if season := cmd.Int("season"); cmd.IsSet("season") && season != c.Snapshot().Progress.Season {
		if season < 1 {
			return fmt.Errorf("%w: season must be at least 1", shared.ErrInvalidArgument)
		}
		if err := c.ChangeSeason(ctx, season); err != nil {
			return fmt.Errorf("failed to update season: %w", err)
		}
	}
	if err := c.ChangeEpisode(ctx, episode); err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}

	p := c.Snapshot().Progress
	r.writePlain("✓ %s %s: season %d, episode %d\n", t, id, p.Season, p.Episode)
	return nil
}

// StatusBatch prints the status of many items with a single backend request.
func (r *Runner) StatusBatch(ctx context.Context, cmd *cli.Command) error {
	t, err := contentTypeArg(cmd)
	if err != nil {
		return err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, arg := range cmd.StringArgs("ids") {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one content id", shared.ErrMissingArgument)
	}

	store, err := r.connect(ctx)
	if err != nil {
		return err
	}

	statuses, err := store.Prefetch(ctx, t, ids)
	if err != nil {
		return fmt.Errorf("failed to load watch statuses: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}
	for _, id := range ids {
		r.writePlain("%s\t%s\n", id, r.statusLabel(statuses[id]))
	}
	return nil
}
