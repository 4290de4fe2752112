package tracker

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// entry is the cached projection of one backend record.
type entry struct {
	value     models.StatusEntry
	fetchedAt time.Time
	stale     bool
	partial   bool // status known from a batch read, progress missing
}

type call struct {
	done    chan struct{}
	version uint64
	value   models.StatusEntry
	err     error
}

// Store is the process-wide watch-status cache for one user. Entries are keyed by
// (user, content type, content id); subscribers are told when a key changes or is
// invalidated and re-read through the store, which collapses concurrent reads of the
// same key into one request.
//
// Every key carries a version that Set and Invalidate advance. A read only updates the
// cache if its key's version is unchanged when the response arrives, so a late response
// never replaces a newer write or resurrects an invalidated value.
type Store struct {
	backend Backend
	userID  string
	logger  *log.Logger

	mu        sync.Mutex
	entries   map[Key]*entry
	inflight  map[Key]*call
	versions  map[Key]uint64
	subs      map[Key]map[uint64]func(Key)
	nextSub   uint64
	dashboard models.ContentByStatus
	dashStale bool
	dashGen   uint64
}

// NewStore creates a store for userID.
func NewStore(backend Backend, userID string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		backend:  backend,
		userID:   userID,
		logger:   shared.WithLogger(logger, "component", "tracker", "user", userID),
		entries:  make(map[Key]*entry),
		inflight: make(map[Key]*call),
		versions: make(map[Key]uint64),
		subs:     make(map[Key]map[uint64]func(Key)),
	}
}

// Connect resolves the backend identity and returns a store for it.
func Connect(ctx context.Context, backend Backend, logger *log.Logger) (*Store, error) {
	userID, err := backend.Identity(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(backend, userID, logger), nil
}

func (s *Store) UserID() string { return s.userID }

// Key builds the cache key for an item of the store's user.
func (s *Store) Key(t models.ContentType, id string) Key {
	return Key{UserID: s.userID, ContentType: t, ContentID: id}
}

// Subscribe registers fn for changes to key. The returned function removes it.
// fn runs on the goroutine that caused the change and must not block.
func (s *Store) Subscribe(key Key, fn func(Key)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]func(Key))
	}
	s.subs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

func (s *Store) notify(keys ...Key) {
	s.mu.Lock()
	var fns []func(Key)
	var targets []Key
	for _, k := range keys {
		for _, fn := range s.subs[k] {
			fns = append(fns, fn)
			targets = append(targets, k)
		}
	}
	s.mu.Unlock()

	for i, fn := range fns {
		fn(targets[i])
	}
}

// Peek returns the cached entry for key when it is complete and fresh.
func (s *Store) Peek(key Key) (models.StatusEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.stale || e.partial {
		return models.StatusEntry{}, false
	}
	return e.value, true
}

// Set replaces the cached value for key and notifies subscribers.
func (s *Store) Set(key Key, value models.StatusEntry) {
	s.mu.Lock()
	s.versions[key]++
	s.entries[key] = &entry{value: value, fetchedAt: time.Now()}
	s.mu.Unlock()
	s.notify(key)
}

// Invalidate marks keys stale and notifies their subscribers so they re-read.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	for _, k := range keys {
		s.markStaleLocked(k)
	}
	s.mu.Unlock()

	s.logger.Debug("invalidated", "keys", len(keys))
	s.notify(keys...)
}

// Status reads key through the cache. On failure it returns [models.StatusNone] with the error.
func (s *Store) Status(ctx context.Context, key Key) (models.StatusEntry, error) {
	if v, ok := s.Peek(key); ok {
		return v, nil
	}
	return s.fetch(ctx, key)
}

// Revalidate re-reads key from the backend regardless of cache state.
func (s *Store) Revalidate(ctx context.Context, key Key) error {
	if key.IsDashboard() {
		s.Invalidate(key)
		_, err := s.Dashboard(ctx)
		return err
	}

	s.mu.Lock()
	s.markStaleLocked(key)
	s.mu.Unlock()

	_, err := s.fetch(ctx, key)
	if err == nil {
		s.notify(key)
	}
	return err
}

// markStaleLocked advances key's version so reads already in flight are not cached.
func (s *Store) markStaleLocked(key Key) {
	if key.IsDashboard() {
		s.dashStale = true
		s.dashGen++
		return
	}
	s.versions[key]++
	if e, ok := s.entries[key]; ok {
		e.stale = true
	}
}

// fetch reads key from the backend. Concurrent reads of the same key and version share
// one request; a read started before the key last changed is not joined.
func (s *Store) fetch(ctx context.Context, key Key) (models.StatusEntry, error) {
	s.mu.Lock()
	version := s.versions[key]
	if c, ok := s.inflight[key]; ok && c.version == version {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.value, c.err
		case <-ctx.Done():
			return models.StatusEntry{Status: models.StatusNone}, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{}), version: version}
	s.inflight[key] = c
	s.mu.Unlock()

	value, err := s.backend.Get(ctx, key.UserID, key.ContentType, key.ContentID)
	if err != nil {
		value = models.StatusEntry{Status: models.StatusNone}
		s.logger.Warn("status read failed", "key", key, "kind", shared.Classify(err), "error", err)
	}

	s.mu.Lock()
	if err == nil {
		if s.versions[key] == version {
			s.entries[key] = &entry{value: value, fetchedAt: time.Now()}
		} else if e, ok := s.entries[key]; ok && !e.stale && !e.partial {
			s.logger.Debug("discarded stale read", "key", key)
			value = e.value
		}
	}
	if s.inflight[key] == c {
		delete(s.inflight, key)
	}
	s.mu.Unlock()

	c.value, c.err = value, err
	close(c.done)
	return value, err
}

// Prefetch loads statuses for ids with a single batch request and seeds the cache.
// Ids already cached and fresh are not requested; an empty list makes no request.
func (s *Store) Prefetch(ctx context.Context, t models.ContentType, ids []string) (map[string]models.WatchStatus, error) {
	out := make(map[string]models.WatchStatus, len(ids))
	var missing []string
	versions := make(map[string]uint64)

	s.mu.Lock()
	for _, id := range ids {
		key := s.Key(t, id)
		if e, ok := s.entries[key]; ok && !e.stale {
			out[id] = e.value.Status
			continue
		}
		missing = append(missing, id)
		versions[id] = s.versions[key]
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	statuses, err := s.backend.Batch(ctx, s.userID, t, missing)
	if err != nil {
		s.logger.Warn("batch read failed", "type", t, "count", len(missing), "error", err)
		for _, id := range missing {
			out[id] = models.StatusNone
		}
		return out, err
	}

	now := time.Now()
	keys := make([]Key, 0, len(missing))
	s.mu.Lock()
	for _, id := range missing {
		status, ok := statuses[id]
		if !ok || !status.Valid() {
			status = models.StatusNone
		}
		key := s.Key(t, id)
		if s.versions[key] != versions[id] {
			if e, ok := s.entries[key]; ok && !e.stale {
				status = e.value.Status
			}
			out[id] = status
			continue
		}
		out[id] = status
		s.entries[key] = &entry{
			value:     models.StatusEntry{Status: status},
			fetchedAt: now,
			partial:   status == models.StatusCurrentlyWatching && t.HasProgress(),
		}
		keys = append(keys, key)
	}
	s.mu.Unlock()

	s.notify(keys...)
	return out, nil
}

// Cached reports the status known for key without a request, including batch-seeded entries.
func (s *Store) Cached(key Key) (models.WatchStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.stale {
		return models.StatusNone, false
	}
	return e.value.Status, true
}

// Dashboard returns the aggregate view, fetching it when absent or invalidated.
// A response that arrives after a later invalidation is returned but not cached.
// The returned value is shared and must not be modified.
func (s *Store) Dashboard(ctx context.Context) (models.ContentByStatus, error) {
	s.mu.Lock()
	if s.dashboard != nil && !s.dashStale {
		agg := s.dashboard
		s.mu.Unlock()
		return agg, nil
	}
	gen := s.dashGen
	s.mu.Unlock()

	agg, err := s.backend.All(ctx, s.userID)
	if err != nil {
		s.logger.Warn("dashboard read failed", "kind", shared.Classify(err), "error", err)
		return nil, err
	}

	s.mu.Lock()
	if s.dashGen == gen {
		s.dashboard = agg
		s.dashStale = false
	}
	s.mu.Unlock()
	return agg, nil
}

// Write persists entry for key. It does not touch the cache; callers decide what to invalidate.
func (s *Store) Write(ctx context.Context, key Key, value models.StatusEntry) error {
	err := s.backend.Put(ctx, key.UserID, key.ContentType, key.ContentID, value)
	if err != nil {
		s.logger.Warn("status write failed", "key", key, "status", value.Status, "kind", shared.Classify(err), "error", err)
	}
	return err
}
