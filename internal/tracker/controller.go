package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// DefaultTimeout bounds every backend call a controller makes.
const DefaultTimeout = 12 * time.Second

// State of a [Controller].
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Updating
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Updating:
		return "updating"
	default:
		return ""
	}
}

// EventKind enumerates controller notifications.
type EventKind int

const (
	StatusLoaded EventKind = iota
	LoadFailed
	StatusSaved
	ProgressSaved
	SaveFailed
	Revalidated
)

func (k EventKind) String() string {
	switch k {
	case StatusLoaded:
		return "status_loaded"
	case LoadFailed:
		return "load_failed"
	case StatusSaved:
		return "status_saved"
	case ProgressSaved:
		return "progress_saved"
	case SaveFailed:
		return "save_failed"
	case Revalidated:
		return "revalidated"
	default:
		return ""
	}
}

// Event is a non-blocking notification for the UI layer.
type Event struct {
	Kind     EventKind
	Key      Key
	Status   models.WatchStatus
	Progress models.WatchProgress
	Message  string
	Err      error
}

// IsError reports whether the event should be shown as an error notification.
func (e Event) IsError() bool {
	return e.Kind == LoadFailed || e.Kind == SaveFailed
}

// Snapshot is a point-in-time copy of a controller's observable state.
type Snapshot struct {
	State    State
	Status   models.WatchStatus
	Progress models.WatchProgress
	Err      error
}

// Label is the text a status button shows.
func (s Snapshot) Label() string {
	if s.State == Uninitialized || s.State == Loading {
		return "Updating..."
	}
	return s.Status.Label()
}

// ControllerOptions configures [NewController].
type ControllerOptions struct {
	// Content enables progress clamping against known season and episode counts.
	Content models.Content
	Timeout time.Duration
	// EventBuffer sizes the events channel. Events are dropped when it is full.
	EventBuffer int
}

// Controller holds the watch status of one content item.
//
// Mutations apply optimistically. A later mutation supersedes an earlier in-flight one,
// and when the newest mutation fails the controller rolls back to the last status the
// backend confirmed. After Close every late response is discarded.
type Controller struct {
	store   *Store
	key     Key
	content models.Content
	timeout time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	events   chan Event
	gen      uint64
	seq      uint64
	inflight int
	closed   bool
	state    State
	status   models.WatchStatus
	progress models.WatchProgress
	err      error
	unsub    func()

	confirmed    models.WatchStatus
	confirmedSeq uint64
	latestFailed bool
}

// NewController binds a controller for (t, id) to store and subscribes it to the item's key.
func NewController(store *Store, t models.ContentType, id string, opts ControllerOptions) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 16
	}

	c := &Controller{
		store:    store,
		key:      store.Key(t, id),
		content:  opts.Content,
		timeout:  opts.Timeout,
		logger:   shared.WithLogger(store.logger, "content", t, "id", id),
		events:   make(chan Event, opts.EventBuffer),
		status:   models.StatusNone,
		progress: models.DefaultProgress(),

		confirmed: models.StatusNone,
	}
	c.unsub = store.Subscribe(c.key, func(Key) { go c.sync() })
	return c
}

// ForContent is [NewController] for a known content item, enabling progress clamping.
func ForContent(store *Store, content models.Content, timeout time.Duration) *Controller {
	return NewController(store, content.Type(), content.Info().ID, ControllerOptions{Content: content, Timeout: timeout})
}

func (c *Controller) Key() Key { return c.key }

// Events returns the notification channel. It is closed by Close.
func (c *Controller) Events() <-chan Event { return c.events }

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Status: c.status, Progress: c.progress, Err: c.err}
}

// ShowProgress reports whether season and episode pickers apply.
func (c *Controller) ShowProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showProgressLocked()
}

func (c *Controller) showProgressLocked() bool {
	return c.status == models.StatusCurrentlyWatching && c.key.ContentType.HasProgress()
}

// emitLocked sends without blocking; a full channel drops the event.
func (c *Controller) emitLocked(e Event) {
	if c.closed {
		return
	}
	e.Key = c.key
	select {
	case c.events <- e:
	default:
	}
}

// Load fetches the current status. A failed read leaves the controller Ready with
// [models.StatusNone] and returns the error for display.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return shared.ErrClosed
	}
	if c.state == Updating || c.inflight > 0 {
		c.mu.Unlock()
		return shared.ErrBusy
	}
	c.state = Loading
	gen, seq := c.gen, c.seq
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	entry, err := c.store.Status(ctx, c.key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || seq != c.seq {
		return shared.ErrClosed
	}

	c.state = Ready
	c.err = err
	if err != nil {
		c.status = models.StatusNone
		c.confirmed = models.StatusNone
		c.progress = models.DefaultProgress()
		c.emitLocked(Event{Kind: LoadFailed, Status: c.status, Message: "Failed to load watch status", Err: err})
		return err
	}

	c.status = entry.Status
	c.confirmed, c.confirmedSeq = entry.Status, c.seq
	c.progress = c.clamp(entry.Progress())
	c.emitLocked(Event{Kind: StatusLoaded, Status: c.status, Progress: c.progress})
	return nil
}

// SetStatus applies status optimistically and persists it.
func (c *Controller) SetStatus(ctx context.Context, status models.WatchStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown watch status %q", shared.ErrInvalidArgument, status)
	}

	c.mu.Lock()
	if err := c.acceptLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	previous := c.status
	c.status = status
	c.err = nil
	entry := c.entryLocked()
	gen, seq := c.beginLocked()
	c.mu.Unlock()

	c.logger.Debug("setting status", "from", previous, "to", status)
	err := c.write(ctx, entry)

	c.mu.Lock()
	latest, live := c.finishLocked(gen, seq)
	if !live {
		c.mu.Unlock()
		return shared.ErrClosed
	}
	if err != nil {
		if latest {
			c.latestFailed = true
			c.status = c.confirmed
			c.err = err
			c.emitLocked(Event{Kind: SaveFailed, Status: c.status, Message: "Failed to update watch status", Err: err})
		}
		c.mu.Unlock()
		return err
	}
	advanced := c.confirmLocked(seq, status)
	switch {
	case latest:
		c.emitLocked(Event{Kind: StatusSaved, Status: status, Progress: c.progress, Message: "Status updated to " + status.Label()})
	case advanced && c.latestFailed:
		// The newest write already failed and rolled back; this one is what the backend holds.
		c.status = status
		c.emitLocked(Event{Kind: Revalidated, Status: status, Progress: c.progress})
	}
	c.mu.Unlock()

	c.store.Invalidate(DashboardKey(c.key.UserID), c.key)
	return nil
}

// Clear removes the tracked relationship.
func (c *Controller) Clear(ctx context.Context) error {
	return c.SetStatus(ctx, models.StatusNone)
}

// ChangeSeason moves progress to season, resetting the episode to 1, and persists it.
func (c *Controller) ChangeSeason(ctx context.Context, season int) error {
	return c.changeProgress(ctx, func(p models.WatchProgress) models.WatchProgress { return p.WithSeason(season) })
}

// ChangeEpisode moves progress to episode within the current season and persists it.
func (c *Controller) ChangeEpisode(ctx context.Context, episode int) error {
	return c.changeProgress(ctx, func(p models.WatchProgress) models.WatchProgress { return p.WithEpisode(episode) })
}

func (c *Controller) changeProgress(ctx context.Context, next func(models.WatchProgress) models.WatchProgress) error {
	c.mu.Lock()
	if err := c.acceptLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.showProgressLocked() {
		c.mu.Unlock()
		return fmt.Errorf("%w: progress is tracked only while currently watching a show or anime", shared.ErrInvalidArgument)
	}
	previous := c.progress
	c.progress = c.clamp(next(previous))
	c.err = nil
	entry := c.entryLocked()
	progress := c.progress
	gen, seq := c.beginLocked()
	c.mu.Unlock()

	err := c.write(ctx, entry)

	c.mu.Lock()
	latest, live := c.finishLocked(gen, seq)
	if !live {
		c.mu.Unlock()
		return shared.ErrClosed
	}
	if err != nil {
		if latest {
			c.progress = previous
			c.err = err
			c.emitLocked(Event{Kind: SaveFailed, Status: c.status, Progress: previous, Message: "Failed to update progress", Err: err})
		}
		c.mu.Unlock()
		return err
	}
	c.confirmLocked(seq, entry.Status)
	if latest {
		c.emitLocked(Event{
			Kind:     ProgressSaved,
			Status:   c.status,
			Progress: progress,
			Message:  fmt.Sprintf("Progress updated to S%dE%d", progress.Season, progress.Episode),
		})
	}
	c.mu.Unlock()

	c.store.Set(c.key, entry)
	c.store.Invalidate(DashboardKey(c.key.UserID))
	return nil
}

// Close detaches the controller. Responses arriving afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.unsub()
	close(c.events)
}

func (c *Controller) acceptLocked() error {
	switch {
	case c.closed:
		return shared.ErrClosed
	case c.state == Uninitialized || c.state == Loading:
		return shared.ErrBusy
	default:
		return nil
	}
}

func (c *Controller) entryLocked() models.StatusEntry {
	if !c.key.ContentType.HasProgress() {
		return models.NewStatusEntry(c.status, nil)
	}
	progress := c.progress
	return models.NewStatusEntry(c.status, &progress)
}

func (c *Controller) beginLocked() (gen, seq uint64) {
	c.seq++
	c.inflight++
	c.state = Updating
	c.latestFailed = false
	return c.gen, c.seq
}

// confirmLocked records status as accepted by the backend unless a newer mutation was
// already confirmed.
func (c *Controller) confirmLocked(seq uint64, status models.WatchStatus) bool {
	if seq <= c.confirmedSeq {
		return false
	}
	c.confirmed, c.confirmedSeq = status, seq
	return true
}

// finishLocked settles one mutation. latest is false when a newer mutation has
// since been issued; live is false once the controller is closed.
func (c *Controller) finishLocked(gen, seq uint64) (latest, live bool) {
	c.inflight--
	if gen != c.gen {
		return false, false
	}
	if c.inflight == 0 {
		c.state = Ready
	}
	return seq == c.seq, true
}

func (c *Controller) write(ctx context.Context, entry models.StatusEntry) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.Write(ctx, c.key, entry)
}

func (c *Controller) clamp(p models.WatchProgress) models.WatchProgress {
	return p.Clamp(c.content)
}

// sync pulls the store's value after the key changes elsewhere. It is skipped while a
// mutation is pending or if one was issued during the read.
func (c *Controller) sync() {
	c.mu.Lock()
	if c.closed || c.state != Ready || c.inflight > 0 {
		c.mu.Unlock()
		return
	}
	gen, seq := c.gen, c.seq
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	entry, err := c.store.Status(ctx, c.key)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || seq != c.seq || c.inflight > 0 {
		return
	}
	c.confirmed, c.confirmedSeq = entry.Status, c.seq
	progress := c.clamp(entry.Progress())
	if entry.Status == c.status && progress == c.progress {
		return
	}
	c.status, c.progress = entry.Status, progress
	c.emitLocked(Event{Kind: Revalidated, Status: c.status, Progress: c.progress})
}
