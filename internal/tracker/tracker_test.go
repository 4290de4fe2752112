package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	tu "github.com/desertthunder/watchx/internal/testing"
	"github.com/gorilla/websocket"
)

const testUser = "user-1"

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func intPtr(n int) *int { return &n }

func testShow() *models.Show {
	return &models.Show{
		Base: models.Base{ID: "1399", Title: "Game of Thrones"},
		Seasons: []models.Season{
			{SeasonNumber: 1, EpisodeCount: 10, Name: "Season 1"},
			{SeasonNumber: 2, EpisodeCount: 8, Name: "Season 2"},
		},
		NumberOfSeasons: 2,
	}
}

// loaded returns a controller that has completed its initial Load.
func loaded(t *testing.T, store *Store, ct models.ContentType, id string, opts ControllerOptions) *Controller {
	t.Helper()
	c := NewController(store, ct, id, opts)
	t.Cleanup(c.Close)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return c
}

func (c *Controller) mutations() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *Controller) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// gatedBackend blocks each Put until released and fails writes for the listed statuses.
// A status with its own entry in gates waits on that channel instead of gate.
type gatedBackend struct {
	*tu.MockBackend
	gate  chan struct{}
	gates map[models.WatchStatus]chan struct{}
	fail  map[models.WatchStatus]bool
}

func (g *gatedBackend) Put(ctx context.Context, userID string, t models.ContentType, id string, entry models.StatusEntry) error {
	gate := g.gate
	if ch, ok := g.gates[entry.Status]; ok {
		gate = ch
	}
	<-gate
	if g.fail[entry.Status] {
		return &shared.UpstreamError{Service: "watch-status", StatusCode: 500}
	}
	return g.MockBackend.Put(ctx, userID, t, id, entry)
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Status reads through and caches", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusWatched})
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentMovie, "550")

		for range 2 {
			entry, err := store.Status(ctx, key)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if entry.Status != models.StatusWatched {
				t.Errorf("expected watched, got %s", entry.Status)
			}
		}

		if gets, _, _ := backend.Counts(); gets != 1 {
			t.Errorf("expected 1 backend read, got %d", gets)
		}
	})

	t.Run("Status failure degrades to none without caching", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.GetErr = &shared.UpstreamError{Service: "watch-status", StatusCode: 502}
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentMovie, "550")

		entry, err := store.Status(ctx, key)
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
		if entry.Status != models.StatusNone {
			t.Errorf("expected none, got %s", entry.Status)
		}
		if _, ok := store.Peek(key); ok {
			t.Error("failed reads should not be cached")
		}
	})

	t.Run("Invalidate notifies subscribers and forces a refetch", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentShow, "1399")

		if _, err := store.Status(ctx, key); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var notified atomic.Int32
		unsubscribe := store.Subscribe(key, func(k Key) {
			if k != key {
				t.Errorf("expected key %s, got %s", key, k)
			}
			notified.Add(1)
		})

		store.Invalidate(key)
		if notified.Load() != 1 {
			t.Errorf("expected 1 notification, got %d", notified.Load())
		}
		if _, ok := store.Peek(key); ok {
			t.Error("expected invalidated entry to be stale")
		}

		if _, err := store.Status(ctx, key); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gets, _, _ := backend.Counts(); gets != 2 {
			t.Errorf("expected 2 backend reads, got %d", gets)
		}

		unsubscribe()
		store.Invalidate(key)
		if notified.Load() != 1 {
			t.Errorf("expected no notification after unsubscribe, got %d", notified.Load())
		}
	})

	t.Run("Prefetch with no ids makes no request", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store := NewStore(backend, testUser, nil)

		got, err := store.Prefetch(ctx, models.ContentMovie, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty map, got %v", got)
		}
		if _, _, batch := backend.Counts(); batch != 0 {
			t.Errorf("expected no batch request, got %d", batch)
		}
	})

	t.Run("Prefetch seeds the cache", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusWatched})
		store := NewStore(backend, testUser, nil)

		got, err := store.Prefetch(ctx, models.ContentMovie, []string{"550", "680"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got["550"] != models.StatusWatched || got["680"] != models.StatusNone {
			t.Errorf("unexpected statuses: %v", got)
		}

		if _, err := store.Status(ctx, store.Key(models.ContentMovie, "550")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := store.Prefetch(ctx, models.ContentMovie, []string{"550", "680"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		gets, _, batch := backend.Counts()
		if gets != 0 {
			t.Errorf("expected batch-seeded reads to skip the backend, got %d gets", gets)
		}
		if batch != 1 {
			t.Errorf("expected fresh ids to be served from cache, got %d batch requests", batch)
		}
	})

	t.Run("Prefetch leaves progress to a full read", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentShow, "1399", models.StatusEntry{
			Status:      models.StatusCurrentlyWatching,
			LastSeason:  intPtr(2),
			LastEpisode: intPtr(4),
		})
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentShow, "1399")

		if _, err := store.Prefetch(ctx, models.ContentShow, []string{"1399"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if status, ok := store.Cached(key); !ok || status != models.StatusCurrentlyWatching {
			t.Errorf("expected cached currently_watching, got %s (%v)", status, ok)
		}

		entry, err := store.Status(ctx, key)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry.Progress() != (models.WatchProgress{Season: 2, Episode: 4}) {
			t.Errorf("expected S2E4, got %+v", entry.Progress())
		}
		if gets, _, _ := backend.Counts(); gets != 1 {
			t.Errorf("expected progress to require a read, got %d gets", gets)
		}
	})

	t.Run("Dashboard is cached until invalidated", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentAnime, "5114", models.StatusEntry{Status: models.StatusWatchLater})
		store := NewStore(backend, testUser, nil)

		for range 2 {
			agg, err := store.Dashboard(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if n := len(agg.Items(models.ContentAnime, models.StatusWatchLater)); n != 1 {
				t.Errorf("expected 1 anime in watch_later, got %d", n)
			}
		}
		if _, all, _ := backend.Counts(); all != 1 {
			t.Errorf("expected 1 aggregate request, got %d", all)
		}

		store.Invalidate(DashboardKey(testUser))
		if _, err := store.Dashboard(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, all, _ := backend.Counts(); all != 2 {
			t.Errorf("expected refetch after invalidation, got %d", all)
		}
	})

	t.Run("Dashboard read that straddles a write is not cached", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})
		backend.ReadGate = make(chan struct{})

		done := make(chan models.ContentByStatus, 1)
		go func() {
			agg, _ := store.Dashboard(ctx)
			done <- agg
		}()
		waitFor(t, func() bool { _, all, _ := backend.Counts(); return all == 1 })

		if err := c.SetStatus(ctx, models.StatusWatched); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(backend.ReadGate)
		if early := <-done; len(early.Items(models.ContentMovie, models.StatusWatched)) != 0 {
			t.Fatal("expected the held read to predate the write")
		}

		agg, err := store.Dashboard(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := len(agg.Items(models.ContentMovie, models.StatusWatched)); n != 1 {
			t.Errorf("expected 1 watched movie, got %d", n)
		}
		if _, all, _ := backend.Counts(); all != 2 {
			t.Errorf("expected a refetch after the write, got %d aggregate requests", all)
		}
	})

	t.Run("late read does not overwrite a newer Set", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentShow, "1399", models.StatusEntry{Status: models.StatusWatchLater})
		backend.ReadGate = make(chan struct{})
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentShow, "1399")

		done := make(chan models.StatusEntry, 1)
		go func() {
			entry, _ := store.Status(ctx, key)
			done <- entry
		}()
		waitFor(t, func() bool { gets, _, _ := backend.Counts(); return gets == 1 })

		newer := models.NewStatusEntry(models.StatusCurrentlyWatching, &models.WatchProgress{Season: 2, Episode: 3})
		store.Set(key, newer)
		close(backend.ReadGate)

		if entry := <-done; entry.Status != models.StatusCurrentlyWatching {
			t.Errorf("expected the newer value from the read, got %s", entry.Status)
		}
		cached, ok := store.Peek(key)
		if !ok || cached.Status != models.StatusCurrentlyWatching {
			t.Fatalf("expected cached currently_watching, got %s (%v)", cached.Status, ok)
		}
		if cached.Progress() != (models.WatchProgress{Season: 2, Episode: 3}) {
			t.Errorf("expected S2E3, got %+v", cached.Progress())
		}
	})

	t.Run("read that straddles an invalidation is not cached", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusWatched})
		backend.ReadGate = make(chan struct{})
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentMovie, "550")

		done := make(chan struct{})
		go func() {
			defer close(done)
			store.Status(ctx, key)
		}()
		waitFor(t, func() bool { gets, _, _ := backend.Counts(); return gets == 1 })

		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusRewatch})
		store.Invalidate(key)
		close(backend.ReadGate)
		<-done

		if _, ok := store.Peek(key); ok {
			t.Fatal("expected the late read to be discarded")
		}
		entry, err := store.Status(ctx, key)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry.Status != models.StatusRewatch {
			t.Errorf("expected rewatch, got %s", entry.Status)
		}
		if gets, _, _ := backend.Counts(); gets != 2 {
			t.Errorf("expected 2 backend reads, got %d", gets)
		}
	})

	t.Run("late batch does not overwrite a newer Set", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusWatchLater})
		backend.ReadGate = make(chan struct{})
		store := NewStore(backend, testUser, nil)
		key := store.Key(models.ContentMovie, "550")

		done := make(chan map[string]models.WatchStatus, 1)
		go func() {
			got, _ := store.Prefetch(ctx, models.ContentMovie, []string{"550", "680"})
			done <- got
		}()
		waitFor(t, func() bool { _, _, batch := backend.Counts(); return batch == 1 })

		store.Set(key, models.StatusEntry{Status: models.StatusWatched})
		close(backend.ReadGate)

		got := <-done
		if got["550"] != models.StatusWatched || got["680"] != models.StatusNone {
			t.Errorf("unexpected statuses: %v", got)
		}
		if status, ok := store.Cached(key); !ok || status != models.StatusWatched {
			t.Errorf("expected cached watched, got %s (%v)", status, ok)
		}
	})

	t.Run("Apply ignores other users", func(t *testing.T) {
		store := NewStore(tu.NewMockBackend(testUser), testUser, nil)
		key := store.Key(models.ContentMovie, "550")

		var notified atomic.Int32
		store.Subscribe(key, func(Key) { notified.Add(1) })

		store.Apply(models.StatusEvent{UserID: "someone-else", ContentType: models.ContentMovie, ContentID: "550"})
		store.Apply(models.StatusEvent{UserID: testUser, ContentType: "book", ContentID: "550"})
		if notified.Load() != 0 {
			t.Errorf("expected no notifications, got %d", notified.Load())
		}

		store.Apply(models.StatusEvent{UserID: testUser, ContentType: models.ContentMovie, ContentID: "550", Status: models.StatusWatched})
		if notified.Load() != 1 {
			t.Errorf("expected 1 notification, got %d", notified.Load())
		}
	})

	t.Run("Connect resolves identity", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store, err := Connect(ctx, backend, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if store.UserID() != testUser {
			t.Errorf("expected user %s, got %s", testUser, store.UserID())
		}

		backend.IdentityErr = shared.ErrAuthRequired
		if _, err := Connect(ctx, backend, nil); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})
}

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("untracked item loads as none", func(t *testing.T) {
		store := NewStore(tu.NewMockBackend(testUser), testUser, nil)
		c := NewController(store, models.ContentShow, "1399", ControllerOptions{})
		defer c.Close()

		if got := c.Snapshot().Label(); got != "Updating..." {
			t.Errorf("expected loading label before Load, got %q", got)
		}
		if err := c.SetStatus(ctx, models.StatusWatched); !errors.Is(err, shared.ErrBusy) {
			t.Errorf("expected ErrBusy before load, got %v", err)
		}

		if err := c.Load(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		snap := c.Snapshot()
		if snap.State != Ready || snap.Status != models.StatusNone {
			t.Errorf("expected ready/none, got %s/%s", snap.State, snap.Status)
		}
		if snap.Label() != "Set Status" {
			t.Errorf("expected label Set Status, got %q", snap.Label())
		}
		if snap.Progress != models.DefaultProgress() {
			t.Errorf("expected default progress, got %+v", snap.Progress)
		}

		select {
		case e := <-c.Events():
			if e.Kind != StatusLoaded {
				t.Errorf("expected status_loaded event, got %s", e.Kind)
			}
		default:
			t.Error("expected a load event")
		}
	})

	t.Run("failed load is ready with none and an error", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.GetErr = &shared.TransportError{Op: "GET", URL: "http://backend", Err: context.DeadlineExceeded}
		store := NewStore(backend, testUser, nil)
		c := NewController(store, models.ContentMovie, "550", ControllerOptions{})
		defer c.Close()

		if err := c.Load(ctx); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected timeout error, got %v", err)
		}
		snap := c.Snapshot()
		if snap.State != Ready || snap.Status != models.StatusNone || snap.Err == nil {
			t.Errorf("expected ready/none with error, got %+v", snap)
		}
		if e := <-c.Events(); e.Kind != LoadFailed || !e.IsError() {
			t.Errorf("expected load_failed event, got %s", e.Kind)
		}
	})

	t.Run("status change is optimistic and revalidates the dashboard", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		gate := make(chan struct{})
		backend.Gate = gate
		store := NewStore(backend, testUser, nil)

		if _, err := store.Dashboard(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		c := loaded(t, store, models.ContentShow, "1399", ControllerOptions{})

		done := make(chan error, 1)
		go func() { done <- c.SetStatus(ctx, models.StatusCurrentlyWatching) }()

		waitFor(t, func() bool { return c.Snapshot().State == Updating })
		snap := c.Snapshot()
		if snap.Label() != "Currently Watching" {
			t.Errorf("expected optimistic label, got %q", snap.Label())
		}
		if !c.ShowProgress() || snap.Progress != (models.WatchProgress{Season: 1, Episode: 1}) {
			t.Errorf("expected pickers at 1/1, got %+v", snap.Progress)
		}

		close(gate)
		if err := <-done; err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snap := c.Snapshot(); snap.State != Ready || snap.Status != models.StatusCurrentlyWatching {
			t.Errorf("expected ready/currently_watching, got %s/%s", snap.State, snap.Status)
		}

		puts := backend.Puts()
		if len(puts) != 1 {
			t.Fatalf("expected 1 put, got %d", len(puts))
		}
		if e := puts[0].Entry; e.LastSeason == nil || *e.LastSeason != 1 || e.LastEpisode == nil || *e.LastEpisode != 1 {
			t.Errorf("expected progress 1/1 in write, got %+v", e)
		}

		agg, err := store.Dashboard(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, all, _ := backend.Counts(); all != 2 {
			t.Errorf("expected dashboard refetch, got %d aggregate requests", all)
		}
		if status, ok := agg.StatusOf(models.ContentShow, "1399"); !ok || status != models.StatusCurrentlyWatching {
			t.Errorf("expected show under currently_watching, got %s (%v)", status, ok)
		}
	})

	t.Run("failed write rolls back without invalidation", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.PutErr = &shared.UpstreamError{Service: "watch-status", StatusCode: 500}
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})
		<-c.Events()

		var invalidations atomic.Int32
		store.Subscribe(DashboardKey(testUser), func(Key) { invalidations.Add(1) })
		store.Subscribe(c.Key(), func(Key) { invalidations.Add(1) })

		err := c.SetStatus(ctx, models.StatusWatched)
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}

		snap := c.Snapshot()
		if snap.Status != models.StatusNone || snap.Label() != "Set Status" {
			t.Errorf("expected rollback to none, got %s", snap.Status)
		}
		if snap.Err == nil {
			t.Error("expected error flag after rollback")
		}
		if e := <-c.Events(); e.Kind != SaveFailed {
			t.Errorf("expected save_failed event, got %s", e.Kind)
		}
		if invalidations.Load() != 0 {
			t.Errorf("expected no invalidation, got %d", invalidations.Load())
		}
	})

	t.Run("repeated status is idempotent", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

		for range 2 {
			if err := c.SetStatus(ctx, models.StatusWatched); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		if snap := c.Snapshot(); snap.State != Ready || snap.Status != models.StatusWatched {
			t.Errorf("expected ready/watched, got %s/%s", snap.State, snap.Status)
		}
		puts := backend.Puts()
		if len(puts) != 2 || puts[0].Entry != puts[1].Entry {
			t.Errorf("expected two identical writes, got %+v", puts)
		}
	})

	t.Run("overlapping failures roll back to the confirmed status", func(t *testing.T) {
		gated := &gatedBackend{
			MockBackend: tu.NewMockBackend(testUser),
			gate:        make(chan struct{}),
			fail:        map[models.WatchStatus]bool{models.StatusWatched: true},
		}
		store := NewStore(gated, testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

		var wg sync.WaitGroup
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.SetStatus(ctx, models.StatusWatched)
			}()
			waitFor(t, func() bool { return c.mutations() == uint64(i+1) })
		}
		close(gated.gate)
		wg.Wait()

		snap := c.Snapshot()
		if snap.State != Ready || snap.Status != models.StatusNone {
			t.Errorf("expected ready/none, got %s/%s", snap.State, snap.Status)
		}
		if snap.Err == nil {
			t.Error("expected error flag from the final failure")
		}
		if puts := gated.Puts(); len(puts) != 0 {
			t.Errorf("expected nothing stored, got %+v", puts)
		}
	})

	t.Run("an earlier write that succeeds outlives a failed newer one", func(t *testing.T) {
		for _, first := range []models.WatchStatus{models.StatusWatchLater, models.StatusWatched} {
			t.Run(string(first)+" settles first", func(t *testing.T) {
				gated := &gatedBackend{
					MockBackend: tu.NewMockBackend(testUser),
					gates: map[models.WatchStatus]chan struct{}{
						models.StatusWatched:    make(chan struct{}),
						models.StatusWatchLater: make(chan struct{}),
					},
					fail: map[models.WatchStatus]bool{models.StatusWatchLater: true},
				}
				store := NewStore(gated, testUser, nil)
				c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

				var wg sync.WaitGroup
				for i, status := range []models.WatchStatus{models.StatusWatched, models.StatusWatchLater} {
					wg.Add(1)
					go func() {
						defer wg.Done()
						c.SetStatus(ctx, status)
					}()
					waitFor(t, func() bool { return c.mutations() == uint64(i+1) })
				}

				second := models.StatusWatched
				if first == models.StatusWatched {
					second = models.StatusWatchLater
				}
				gated.gates[first] <- struct{}{}
				waitFor(t, func() bool { return c.pending() == 1 })
				gated.gates[second] <- struct{}{}
				wg.Wait()

				snap := c.Snapshot()
				if snap.State != Ready || snap.Status != models.StatusWatched {
					t.Errorf("expected ready/watched, got %s/%s", snap.State, snap.Status)
				}
				if snap.Err == nil {
					t.Error("expected error flag from the failed write")
				}
				puts := gated.Puts()
				if len(puts) != 1 || puts[0].Entry.Status != models.StatusWatched {
					t.Errorf("expected only watched to be stored, got %+v", puts)
				}
			})
		}
	})

	t.Run("last writer wins", func(t *testing.T) {
		gated := &gatedBackend{
			MockBackend: tu.NewMockBackend(testUser),
			gate:        make(chan struct{}),
			fail:        map[models.WatchStatus]bool{models.StatusWatched: true},
		}
		store := NewStore(gated, testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

		var wg sync.WaitGroup
		for i, status := range []models.WatchStatus{models.StatusWatched, models.StatusWatchLater} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.SetStatus(ctx, status)
			}()
			waitFor(t, func() bool { return c.mutations() == uint64(i+1) })
		}
		close(gated.gate)
		wg.Wait()

		snap := c.Snapshot()
		if snap.Status != models.StatusWatchLater || snap.Err != nil {
			t.Errorf("expected watch_later without error, got %s (%v)", snap.Status, snap.Err)
		}
	})

	t.Run("clear deletes the relationship", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentAnime, "5114", models.StatusEntry{Status: models.StatusWatched})
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentAnime, "5114", ControllerOptions{})

		if err := c.Clear(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Snapshot().Status != models.StatusNone {
			t.Errorf("expected none, got %s", c.Snapshot().Status)
		}
		entry, err := backend.Get(ctx, testUser, models.ContentAnime, "5114")
		if err != nil || entry.Status != models.StatusNone {
			t.Errorf("expected backend record removed, got %+v (%v)", entry, err)
		}
	})

	t.Run("season change resets episode", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentShow, "1399", models.StatusEntry{
			Status:      models.StatusCurrentlyWatching,
			LastSeason:  intPtr(1),
			LastEpisode: intPtr(7),
		})
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentShow, "1399", ControllerOptions{Content: testShow()})

		if got := c.Snapshot().Progress; got != (models.WatchProgress{Season: 1, Episode: 7}) {
			t.Fatalf("expected S1E7, got %+v", got)
		}
		if err := c.ChangeSeason(ctx, 2); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := c.Snapshot().Progress; got != (models.WatchProgress{Season: 2, Episode: 1}) {
			t.Errorf("expected S2E1, got %+v", got)
		}

		puts := backend.Puts()
		last := puts[len(puts)-1].Entry
		if last.Status != models.StatusCurrentlyWatching || *last.LastSeason != 2 || *last.LastEpisode != 1 {
			t.Errorf("expected currently_watching S2E1 written, got %+v", last)
		}
		if cached, ok := store.Peek(c.Key()); !ok || cached.Progress() != (models.WatchProgress{Season: 2, Episode: 1}) {
			t.Errorf("expected store to hold new progress, got %+v (%v)", cached, ok)
		}
	})

	t.Run("episode is clamped to the season length", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentShow, "1399", models.StatusEntry{Status: models.StatusCurrentlyWatching})
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentShow, "1399", ControllerOptions{Content: testShow()})

		if err := c.ChangeEpisode(ctx, 50); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := c.Snapshot().Progress; got != (models.WatchProgress{Season: 1, Episode: 10}) {
			t.Errorf("expected S1E10, got %+v", got)
		}
	})

	t.Run("progress requires currently watching a show or anime", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentShow, "1399", models.StatusEntry{Status: models.StatusWatched})
		backend.Seed(models.ContentMovie, "550", models.StatusEntry{Status: models.StatusCurrentlyWatching})
		store := NewStore(backend, testUser, nil)

		show := loaded(t, store, models.ContentShow, "1399", ControllerOptions{})
		if err := show.ChangeSeason(ctx, 2); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for watched show, got %v", err)
		}

		movie := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})
		if err := movie.ChangeEpisode(ctx, 2); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for movie, got %v", err)
		}
		if len(backend.Puts()) != 0 {
			t.Error("expected no writes")
		}
	})

	t.Run("failed progress write rolls back", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		backend.Seed(models.ContentAnime, "5114", models.StatusEntry{
			Status:      models.StatusCurrentlyWatching,
			LastSeason:  intPtr(1),
			LastEpisode: intPtr(12),
		})
		backend.PutErr = &shared.UpstreamError{Service: "watch-status", StatusCode: 500}
		store := NewStore(backend, testUser, nil)
		c := loaded(t, store, models.ContentAnime, "5114", ControllerOptions{})

		if err := c.ChangeEpisode(ctx, 13); err == nil {
			t.Fatal("expected error")
		}
		if got := c.Snapshot().Progress; got != (models.WatchProgress{Season: 1, Episode: 12}) {
			t.Errorf("expected rollback to S1E12, got %+v", got)
		}
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		store := NewStore(tu.NewMockBackend(testUser), testUser, nil)
		c := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

		if err := c.SetStatus(ctx, "dropped"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("responses after close are discarded", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		gate := make(chan struct{})
		backend.Gate = gate
		store := NewStore(backend, testUser, nil)
		c := NewController(store, models.ContentMovie, "550", ControllerOptions{})
		if err := c.Load(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- c.SetStatus(ctx, models.StatusWatched) }()
		waitFor(t, func() bool { return c.Snapshot().State == Updating })

		c.Close()
		close(gate)
		if err := <-done; !errors.Is(err, shared.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}

		for range c.Events() {
		}
		if err := c.Load(ctx); !errors.Is(err, shared.ErrClosed) {
			t.Errorf("expected ErrClosed from Load, got %v", err)
		}
	})

	t.Run("other controllers for the same item converge", func(t *testing.T) {
		backend := tu.NewMockBackend(testUser)
		store := NewStore(backend, testUser, nil)
		card := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})
		detail := loaded(t, store, models.ContentMovie, "550", ControllerOptions{})

		if err := detail.SetStatus(ctx, models.StatusRewatch); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		waitFor(t, func() bool { return card.Snapshot().Status == models.StatusRewatch })
	})
}

func TestListen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	event := models.StatusEvent{UserID: testUser, ContentType: models.ContentShow, ContentID: "1399", Status: models.StatusWatched}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		data, _ := json.Marshal(event)
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteMessage(websocket.TextMessage, data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	store := NewStore(tu.NewMockBackend(testUser), testUser, nil)
	received := make(chan Key, 2)
	store.Subscribe(store.Key(models.ContentShow, "1399"), func(k Key) { received <- k })
	store.Subscribe(DashboardKey(testUser), func(k Key) { received <- k })

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	header := http.Header{"Authorization": []string{"Bearer token"}}
	go func() { result <- store.Listen(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), header) }()

	for range 2 {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("expected invalidations from the event stream")
		}
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after cancel")
	}
}
