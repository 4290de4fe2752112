package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/urfave/cli/v3"
)

func contentTypeArg(cmd *cli.Command) (models.ContentType, error) {
	raw := cmd.StringArg("type")
	if raw == "" {
		return "", fmt.Errorf("%w: content type (movie, show or anime)", shared.ErrMissingArgument)
	}
	t, err := models.ParseContentType(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidContentType, err)
	}
	return t, nil
}

func contentArgs(cmd *cli.Command) (models.ContentType, string, error) {
	t, err := contentTypeArg(cmd)
	if err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", "", fmt.Errorf("%w: content id", shared.ErrMissingArgument)
	}
	return t, id, nil
}

// CatalogPopular lists the popular feed of a content type.
func (r *Runner) CatalogPopular(ctx context.Context, cmd *cli.Command) error {
	t, err := contentTypeArg(cmd)
	if err != nil {
		return err
	}
	return r.listCatalog(ctx, cmd, t, "")
}

// CatalogSearch lists search results for a query.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	t, err := contentTypeArg(cmd)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	return r.listCatalog(ctx, cmd, t, query)
}

func (r *Runner) listCatalog(ctx context.Context, cmd *cli.Command, t models.ContentType, query string) error {
	client, release, err := r.catalogClient()
	if err != nil {
		return err
	}
	defer release()

	r.logger.Debug("listing catalog", "type", t, "query", query, "pages", cmd.Int("pages"))

	pager := catalog.NewPaginator(client, t, query)
	items := pager.All(ctx, max(cmd.Int("pages"), 1))
	if err := pager.Err(); err != nil && len(items) == 0 {
		return fmt.Errorf("failed to list %s: %w", t.Plural(), err)
	}
	if err := pager.Err(); err != nil {
		r.logger.Warn("stopped paging early", "page", pager.Page(), "kind", shared.Classify(err), "error", err)
	}

	if cmd.Bool("json") {
		raw, err := rawContent(items)
		if err != nil {
			return err
		}
		return r.writeJSON(raw, cmd.Bool("pretty"))
	}

	title := fmt.Sprintf("Popular %s", t.Plural())
	if query != "" {
		title = fmt.Sprintf("%s matching %q", strings.ToUpper(t.Plural()[:1])+t.Plural()[1:], query)
	}
	r.writePlainHeader(title)
	if len(items) == 0 {
		r.writePlain("No results.\n")
		return nil
	}
	for i, item := range items {
		info := item.Info()
		r.writePlain("%d. %s (%s)  ★ %s\n", i+1, r.bold(info.Title), shared.FormatYear(info.Year), shared.FormatRating(info.Rating))
		r.writePlain("   ID: %s\n", info.ID)
	}
	if !pager.Done() {
		r.writePlainln("More results available, use --pages %d to fetch further.", pager.Page()+1)
	}
	return nil
}

// rawContent encodes items with their type tag so a heterogeneous list round-trips.
func rawContent(items []models.Content) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		data, err := models.MarshalContent(item)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// CatalogShow prints one item's details and, when a backend is reachable, its watch status.
func (r *Runner) CatalogShow(ctx context.Context, cmd *cli.Command) error {
	t, id, err := contentArgs(cmd)
	if err != nil {
		return err
	}

	client, release, err := r.catalogClient()
	if err != nil {
		return err
	}
	defer release()

	item, err := client.Details(ctx, t, id)
	if err != nil {
		return fmt.Errorf("failed to fetch %s %s: %w", t, id, err)
	}

	status := models.StatusNone
	known := false
	if store, err := r.connect(ctx); err != nil {
		r.logger.Debug("skipping watch status", "error", err)
	} else if entry, err := store.Status(ctx, store.Key(t, id)); err != nil {
		r.logger.Warn("failed to load watch status", "error", err)
	} else {
		status, known = entry.Status, true
	}

	if cmd.Bool("json") {
		data, err := models.MarshalContent(item)
		if err != nil {
			return err
		}
		payload := map[string]any{"content": json.RawMessage(data)}
		if known {
			payload["status"] = status
		}
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	r.printContent(item)
	if known {
		r.writePlain("Status: %s\n", r.statusLabel(status))
	}
	return nil
}

func (r *Runner) printContent(item models.Content) {
	info := item.Info()
	r.writePlainHeader(fmt.Sprintf("%s (%s)", info.Title, shared.FormatYear(info.Year)))
	r.writePlain("Type: %s\n", item.Type())
	r.writePlain("Rating: ★ %s\n", shared.FormatRating(info.Rating))
	if len(info.Genres) > 0 {
		r.writePlain("Genres: %s\n", strings.Join(info.Genres, ", "))
	}

	models.Match(item,
		func(*models.Movie) struct{} { return struct{}{} },
		func(s *models.Show) struct{} {
			for _, season := range s.Seasons {
				r.writePlain("  Season %d: %d episodes\n", season.SeasonNumber, season.EpisodeCount)
			}
			return struct{}{}
		},
		func(a *models.Anime) struct{} {
			if a.Episodes != nil {
				r.writePlain("Episodes: %d\n", *a.Episodes)
			}
			if len(a.Studios) > 0 {
				r.writePlain("Studios: %s\n", strings.Join(a.Studios, ", "))
			}
			return struct{}{}
		},
	)

	if info.Summary != "" {
		r.writePlainln("%s", shared.Truncate(info.Summary, 400))
	}
	if info.WebURL != "" {
		r.writePlain("%s\n", info.WebURL)
	}
}
