// Package control carries configuration commands from control goroutines
// to a pipeline worker. The worker applies them only between sample
// blocks.
package control

import (
	"context"
	"errors"
)

// DefaultSize is the queue capacity used when New is given zero.
const DefaultSize = 64

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("control: queue closed")

// Queue is a bounded single-consumer command queue. Push may be called
// from any goroutine; Drain only from the owning worker.
type Queue[T any] struct {
	ch   chan T
	done chan struct{}
}

// New returns a queue holding up to size pending commands.
func New[T any](size int) *Queue[T] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue[T]{
		ch:   make(chan T, size),
		done: make(chan struct{}),
	}
}

// Push enqueues cmd, blocking while the queue is full until ctx is done
// or the queue is closed.
func (q *Queue[T]) Push(ctx context.Context, cmd T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain applies every pending command in order without blocking and
// returns how many were applied.
func (q *Queue[T]) Drain(apply func(T)) int {
	n := 0
	for {
		select {
		case cmd := <-q.ch:
			apply(cmd)
			n++
		default:
			return n
		}
	}
}

// Pending returns the number of queued commands.
func (q *Queue[T]) Pending() int { return len(q.ch) }

// Close rejects further pushes and wakes blocked ones. Commands already
// queued stay drainable. Close must be called at most once.
func (q *Queue[T]) Close() {
	close(q.done)
}
