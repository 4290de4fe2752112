package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// DefaultSearchDelay is the quiet period before a search runs.
const DefaultSearchDelay = 300 * time.Millisecond

// SearchResult pairs a result with the query that produced it.
type SearchResult struct {
	Query      string
	Generation uint64
	Result
}

// Searcher debounces queries for one content type and delivers only the newest result.
type Searcher struct {
	client   *Client
	kind     models.ContentType
	deliver  func(SearchResult)
	debounce *shared.Debouncer[searchRequest]

	mu         sync.Mutex
	generation uint64
	closed     bool
}

type searchRequest struct {
	query      string
	generation uint64
}

// NewSearcher creates a searcher bound to ctx. deliver is called from a background
// goroutine, never for a superseded query and never after Close.
func NewSearcher(ctx context.Context, client *Client, t models.ContentType, delay time.Duration, deliver func(SearchResult)) *Searcher {
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	s := &Searcher{client: client, kind: t, deliver: deliver}
	s.debounce = shared.NewDebouncer(ctx, delay, s.run)
	return s
}

// Query schedules a search, superseding any earlier query. It returns the query's generation.
func (s *Searcher) Query(q string) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.debounce.Trigger(searchRequest{query: q, generation: gen})
	return gen
}

// Close cancels pending and in-flight searches.
func (s *Searcher) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.mu.Unlock()
	s.debounce.Close()
}

func (s *Searcher) run(ctx context.Context, req searchRequest) {
	res := s.client.Search(ctx, s.kind, req.query, 1)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	current := !s.closed && req.generation == s.generation
	s.mu.Unlock()
	if !current {
		return
	}
	s.deliver(SearchResult{Query: req.query, Generation: req.generation, Result: res})
}
