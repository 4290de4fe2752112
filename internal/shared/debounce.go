package shared

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs fn once input has been quiet for the configured wait.
//
// Each Trigger replaces the pending value and cancels the context handed to any
// call already in flight. Close cancels everything and turns later triggers into no-ops.
type Debouncer[T any] struct {
	mu     sync.Mutex
	parent context.Context
	wait   time.Duration
	fn     func(ctx context.Context, v T)
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// NewDebouncer creates a [Debouncer] bound to parent. Cancelling parent has the same effect as Close.
func NewDebouncer[T any](parent context.Context, wait time.Duration, fn func(ctx context.Context, v T)) *Debouncer[T] {
	if parent == nil {
		parent = context.Background()
	}
	return &Debouncer[T]{parent: parent, wait: wait, fn: fn}
}

// Trigger schedules fn(v) after the wait, superseding any earlier trigger.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.parent.Err() != nil {
		return
	}
	d.stopLocked()

	ctx, cancel := context.WithCancel(d.parent)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.wait, func() {
		if ctx.Err() != nil {
			return
		}
		d.fn(ctx, v)
	})
}

// Cancel drops the pending trigger and cancels an in-flight call without closing the debouncer.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Close cancels pending and in-flight work; subsequent triggers are ignored.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.closed = true
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
