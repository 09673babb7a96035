// Package eventloop provides the single-threaded control context.
//
// Session, gallery and sidecar state is owned by exactly one goroutine,
// the loop. Other goroutines (the capture watcher, RPC connections, upload
// workers) hand work to it with Post or Call instead of touching that state
// themselves.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/traineemgr/server/logger"
)

var ErrStopped = errors.New("event loop stopped")

const defaultQueueSize = 256

type Loop struct {
	tasks chan func()

	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

func New() *Loop {
	return NewWithQueue(defaultQueueSize)
}

func NewWithQueue(size int) *Loop {
	return &Loop{
		tasks:    make(chan func(), size),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run executes posted tasks in order until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.finished)
	slog.Info("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			slog.Info("event loop stopped")
			return
		case <-l.done:
			slog.Info("event loop stopped")
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "event loop task panicked")
		}
	}()
	fn()
}

// Stop ends Run. Tasks still queued are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Wait blocks until Run has returned.
func (l *Loop) Wait() {
	<-l.finished
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for its result.
// Must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	ok := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r, "event loop call panicked")
				result <- errors.New("internal error")
			}
		}()
		result <- fn()
	})
	if !ok {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Timer is a delayed task created by AfterFunc.
type Timer struct {
	t *time.Timer

	mu        sync.Mutex
	cancelled bool
}

// Stop prevents the task from running if it has not started yet.
// It reports whether the timer was stopped before it fired.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	return t.t.Stop()
}

// AfterFunc posts fn to the loop once d has elapsed. Stop called from the
// loop before fn runs guarantees fn is skipped even if it was already queued.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		l.Post(func() {
			timer.mu.Lock()
			cancelled := timer.cancelled
			timer.cancelled = true
			timer.mu.Unlock()
			if !cancelled {
				fn()
			}
		})
	})
	return timer
}
