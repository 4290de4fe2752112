package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 5
	MaxWorkers       = 10
	DefaultRateLimit = 10.0
)

// HydrateOpts contains configuration for record hydration.
type HydrateOpts struct {
	NumWorkers int     // Concurrent workers (default: 5, max: 10)
	RateLimit  float64 // Detail lookups per second (default: 10)
}

// HydrateFailure is a record whose content could not be resolved.
type HydrateFailure struct {
	ContentType models.ContentType
	ContentID   string
	Err         error
}

// HydrateResult is the aggregate built from a user's records.
type HydrateResult struct {
	Aggregate models.ContentByStatus
	Total     int
	Hydrated  int
	Failures  []HydrateFailure
}

type hydrateJob struct {
	index  int
	record *models.WatchStatusRecord
}

type hydrateResult struct {
	index   int
	content models.Content
	failure *HydrateFailure
}

// Dashboard lists userID's records and hydrates them into a [models.ContentByStatus].
func (e *Engine) Dashboard(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	records RecordLister,
	userID string,
	opts HydrateOpts,
) (*HydrateResult, error) {
	e.sendProgress(prog, fetchRecordsUpdate(0, 1))
	list, err := records.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	e.sendProgress(prog, foundRecordsUpdate(len(list)))

	return e.Hydrate(ctx, prog, list, opts)
}

// Hydrate resolves each record's content concurrently with rate limiting.
//
// Items keep the order of records within each (type, status) list. Records whose
// content cannot be fetched are skipped and reported in [HydrateResult.Failures].
func (e *Engine) Hydrate(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	records []*models.WatchStatusRecord,
	opts HydrateOpts,
) (*HydrateResult, error) {
	if e.details == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultWorkers
	}
	if opts.NumWorkers > MaxWorkers {
		opts.NumWorkers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	result := &HydrateResult{Aggregate: models.NewContentByStatus(), Total: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan hydrateJob, len(records))
	results := make(chan hydrateResult, len(records))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.hydrateWorker(ctx, &wg, limiter, jobs, results)
	}

	for i, record := range records {
		jobs <- hydrateJob{index: i, record: record}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	resolved := make([]models.Content, len(records))
	completed := 0
	for res := range results {
		completed++
		if res.failure != nil {
			result.Failures = append(result.Failures, *res.failure)
			e.logger.Warn("skipping record", "type", res.failure.ContentType, "id", res.failure.ContentID, "error", res.failure.Err)
			e.sendProgress(prog, hydrateFailedUpdate(completed, len(records), *res.failure))
			continue
		}
		resolved[res.index] = res.content
		result.Hydrated++
		e.sendProgress(prog, hydratedUpdate(completed, len(records), res.content))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	for i, item := range resolved {
		if item != nil {
			result.Aggregate.Add(records[i].Status(), item)
		}
	}
	return result, nil
}

// hydrateWorker is a worker goroutine that resolves records from the jobs channel.
func (e *Engine) hydrateWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan hydrateJob,
	results chan<- hydrateResult,
) {
	defer wg.Done()

	for job := range jobs {
		r := job.record
		fail := func(err error) {
			results <- hydrateResult{index: job.index, failure: &HydrateFailure{
				ContentType: r.ContentType(),
				ContentID:   r.ContentID(),
				Err:         err,
			}}
		}

		if err := limiter.Wait(ctx); err != nil {
			fail(err)
			continue
		}

		content, err := e.details.Details(ctx, r.ContentType(), r.ContentID())
		if err != nil {
			fail(err)
			continue
		}
		results <- hydrateResult{index: job.index, content: models.Normalize(content)}
	}
}
