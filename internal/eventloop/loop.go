// README: Single logical thread for coordinator state. Every state read or write runs as a task on the loop.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("event loop stopped")

type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	once    sync.Once
}

func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		tasks:   make(chan func(), buffer),
		stopped: make(chan struct{}),
	}
}

// Run executes tasks in submission order until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post enqueues fn without waiting for it to run. It blocks while the queue is full
// and reports false once the loop has stopped. Tasks never Post to their own loop.
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

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have been queued behind the stop; treat it as dropped.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed once Run returns.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}
