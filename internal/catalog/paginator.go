package catalog

import (
	"context"

	"github.com/desertthunder/watchx/internal/models"
)

// Paginator walks the pages of a listing or search, appending as it goes.
type Paginator struct {
	client *Client
	kind   models.ContentType
	query  string
	page   int
	items  []models.Content
	done   bool
	err    error
}

// NewPaginator starts before page 1. An empty query pages the popular feed.
func NewPaginator(client *Client, t models.ContentType, query string) *Paginator {
	return &Paginator{client: client, kind: t, query: query, items: []models.Content{}}
}

// Next fetches the following page and appends its items. Iteration stops after the
// provider reports no more pages, returns an empty page, or fails.
func (p *Paginator) Next(ctx context.Context) Result {
	if p.done {
		return Result{Items: []models.Content{}, Page: p.page}
	}

	res := p.client.Search(ctx, p.kind, p.query, p.page+1)
	p.page++
	p.items = append(p.items, res.Items...)
	p.err = res.Err
	if res.Err != nil || !res.HasMore || len(res.Items) == 0 {
		p.done = true
	}
	return res
}

// All keeps calling Next until done or limit pages were read (limit <= 0 means no limit).
func (p *Paginator) All(ctx context.Context, limit int) []models.Content {
	for n := 0; !p.done && (limit <= 0 || n < limit); n++ {
		if ctx.Err() != nil {
			break
		}
		p.Next(ctx)
	}
	return p.items
}

func (p *Paginator) Items() []models.Content { return p.items }
func (p *Paginator) Page() int               { return p.page }
func (p *Paginator) Done() bool              { return p.done }
func (p *Paginator) Err() error              { return p.err }
