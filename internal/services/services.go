// package services defines interface Catalog for metadata providers and the watch-status backend client
//
// TMDB, MyAnimeList, TVmaze, watchx backend
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// Catalog defines the interface for read-only metadata providers (TMDB, MyAnimeList, TVmaze).
// Each instance serves exactly one [models.ContentType].
type Catalog interface {
	// Popular returns page (1-indexed) of the provider's popular or ranked feed.
	Popular(ctx context.Context, page int) (*models.Page, error)

	// Search returns page of results matching query.
	Search(ctx context.Context, query string, page int) (*models.Page, error)

	// Details fetches a single item, including season data for shows.
	Details(ctx context.Context, id string) (models.Content, error)

	// ContentType is the kind of content this catalog returns.
	ContentType() models.ContentType

	// Name returns the provider name (e.g., "TMDB", "MyAnimeList")
	Name() string
}

// NewCatalog builds the catalog for contentType from config. Shows come from TMDB
// unless catalog.shows_provider is "tvmaze".
func NewCatalog(config *shared.Config, contentType models.ContentType, opts Options) (Catalog, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = config.Backend.Timeout.Duration
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = config.Catalog.RateLimit
	}

	switch contentType {
	case models.ContentMovie:
		return NewTMDBService(config.Credentials.TMDB.APIKey, contentType, opts)
	case models.ContentShow:
		if strings.EqualFold(config.Catalog.ShowsProvider, "tvmaze") {
			return NewTVMazeService(opts), nil
		}
		return NewTMDBService(config.Credentials.TMDB.APIKey, contentType, opts)
	case models.ContentAnime:
		return NewMALService(config.Credentials.MAL.ClientID, opts)
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrInvalidContentType, contentType)
}

// NewCatalogs builds one catalog per content type.
func NewCatalogs(config *shared.Config, opts Options) (map[models.ContentType]Catalog, error) {
	catalogs := make(map[models.ContentType]Catalog, 3)
	for _, t := range models.ContentTypes() {
		c, err := NewCatalog(config, t, opts)
		if err != nil {
			return nil, fmt.Errorf("%s catalog: %w", t, err)
		}
		catalogs[t] = c
	}
	return catalogs, nil
}

// parseYear reads the leading year of a "2006-01-02" style date.
func parseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
