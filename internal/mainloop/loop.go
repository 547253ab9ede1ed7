// Package mainloop provides the single execution context that owns all view
// state. Work posted from any goroutine runs serially, in posting order, on
// the goroutine that called Run.
package mainloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Call once the loop has stopped.
var ErrStopped = errors.New("main loop stopped")

// Loop is a serial task queue.
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	once    sync.Once
}

// New creates a loop buffering up to size pending tasks before Post blocks.
func New(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		tasks:   make(chan func(), size),
		stopped: make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is done. Tasks still queued when ctx
// ends are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stopped:
		return false
	}
}

// Call posts fn and waits for it to run. Must not be called from the loop
// itself.
func (l *Loop) Call(fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Flush waits until every task posted before it has run.
func (l *Loop) Flush() error {
	return l.Call(func() {})
}
