// package catalog normalizes provider responses into uniform content pages
//
// Reads never fail past this package: errors are logged and reported through [Result.Err]
// while the item list stays a valid, possibly empty slice.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/services"
	"github.com/desertthunder/watchx/internal/shared"
)

// Result is one page of normalized content.
type Result struct {
	Items      []models.Content
	Page       int
	TotalPages int
	HasMore    bool
	Err        error // set when the provider failed; Items is then empty
}

// Client is the content catalog facade over one [services.Catalog] per content type.
type Client struct {
	catalogs map[models.ContentType]services.Catalog
	cache    *Cache
	logger   *log.Logger
}

// NewClient creates a catalog client. cache may be nil.
func NewClient(catalogs map[models.ContentType]services.Catalog, cache *Cache, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{catalogs: catalogs, cache: cache, logger: shared.WithLogger(logger, "component", "catalog")}
}

// Provider returns the catalog serving t.
func (c *Client) Provider(t models.ContentType) (services.Catalog, error) {
	cat, ok := c.catalogs[t]
	if !ok {
		return nil, fmt.Errorf("%w: no catalog for %q", shared.ErrServiceUnavailable, t)
	}
	return cat, nil
}

// ListPopular returns page (1-indexed) of the popular feed for t.
func (c *Client) ListPopular(ctx context.Context, t models.ContentType, page int) Result {
	return c.fetch(ctx, t, "popular", "", page, func(cat services.Catalog) (*models.Page, error) {
		return cat.Popular(ctx, page)
	})
}

// Search returns matches for query. A blank query is the popular listing.
func (c *Client) Search(ctx context.Context, t models.ContentType, query string, page int) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.ListPopular(ctx, t, page)
	}
	return c.fetch(ctx, t, "search", query, page, func(cat services.Catalog) (*models.Page, error) {
		return cat.Search(ctx, query, page)
	})
}

// Details fetches a single item. Unlike list reads, failures are returned to the caller.
func (c *Client) Details(ctx context.Context, t models.ContentType, id string) (models.Content, error) {
	key := DetailsKey(t, id)
	if c.cache != nil {
		if item, ok := c.cache.Details(key); ok {
			return item, nil
		}
	}

	cat, err := c.Provider(t)
	if err != nil {
		return nil, err
	}

	item, err := cat.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	item = models.Normalize(item)

	if c.cache != nil {
		if err := c.cache.PutDetails(key, item); err != nil {
			c.logger.Warn("failed to cache details", "key", key, "error", err)
		}
	}
	return item, nil
}

func (c *Client) fetch(ctx context.Context, t models.ContentType, op, query string, page int, call func(services.Catalog) (*models.Page, error)) Result {
	if page < 1 {
		page = 1
	}

	key := PageKey(t, op, query, page)
	if c.cache != nil {
		if p, ok := c.cache.Page(key); ok {
			return resultFromPage(p, page)
		}
	}

	cat, err := c.Provider(t)
	if err != nil {
		return c.failed(t, op, page, err)
	}

	p, err := call(cat)
	if err != nil {
		return c.failed(t, op, page, err)
	}

	for i, item := range p.Items {
		p.Items[i] = models.Normalize(item)
	}

	if c.cache != nil {
		if err := c.cache.PutPage(key, p); err != nil {
			c.logger.Warn("failed to cache page", "key", key, "error", err)
		}
	}
	return resultFromPage(p, page)
}

func (c *Client) failed(t models.ContentType, op string, page int, err error) Result {
	c.logger.Error("catalog read failed", "type", t, "op", op, "page", page, "kind", shared.Classify(err), "error", err)
	return Result{Items: []models.Content{}, Page: page, Err: err}
}

func resultFromPage(p *models.Page, page int) Result {
	items := p.Items
	if items == nil {
		items = []models.Content{}
	}
	if p.Page > 0 {
		page = p.Page
	}

	hasMore := p.HasMore
	if p.TotalPages > 0 {
		hasMore = len(items) > 0 && page < p.TotalPages
	}

	return Result{Items: items, Page: page, TotalPages: p.TotalPages, HasMore: hasMore}
}
