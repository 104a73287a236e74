// Package queue provides the in-memory work queue shared by the producer and
// the partition workers.
//
// The queue tracks two counters: queued items and in-flight items. An item
// becomes in flight when a worker dequeues it and stops being in flight when
// the worker calls MarkDone. The queue is drained only when both counters are
// zero, so WaitUntilDrained observes completed work, not just emptied buffers.
package queue

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/types"
)

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity bounds the number of queued (not in-flight) items.
// Enqueue blocks while the queue is full. Zero means unbounded.
func WithCapacity(capacity int) Option {
	return func(q *Queue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithClock sets the clock used for dequeue timeouts.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

// Queue is a FIFO work queue with in-flight accounting.
//
// All methods are safe for concurrent use.
type Queue struct {
	clock    clock.Clock
	capacity int

	mu       sync.Mutex
	items    []types.WorkItem
	inFlight int
	closed   bool
	// changed is closed and replaced on every state change, waking all waiters.
	changed chan struct{}
}

// New creates an empty queue.
//
// Parameters:
//   - opts: Optional capacity and clock settings
//
// Returns:
//   - *Queue: Empty, unbounded queue unless WithCapacity is given
func New(opts ...Option) *Queue {
	q := &Queue{
		clock:   clock.RealClock{},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	return q
}

// broadcast must be called with q.mu held.
func (q *Queue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Enqueue appends an item.
//
// In unbounded mode Enqueue never blocks. In bounded mode it blocks until
// space is available or ctx is done.
//
// Parameters:
//   - ctx: Context bounding the wait for space
//   - item: Item to append
//
// Returns:
//   - error: ErrQueueClosed after Close, ctx.Err() if ctx ends while waiting
func (q *Queue) Enqueue(ctx context.Context, item types.WorkItem) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()

			return types.ErrQueueClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, item)
			q.broadcast()
			q.mu.Unlock()

			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dequeue removes the oldest item and marks it in flight.
//
// Returns ok=false, not an error, when nothing arrives within timeout, when
// ctx is done, or when the queue is closed and empty. A timeout <= 0 polls
// without waiting.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timeout: Maximum wait for an item
//
// Returns:
//   - types.WorkItem: The dequeued item
//   - bool: true if an item was dequeued
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (types.WorkItem, bool) {
	var timer clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			q.inFlight++
			q.broadcast()
			q.mu.Unlock()

			return item, true
		}
		if q.closed || timeout <= 0 {
			q.mu.Unlock()

			return "", false
		}
		wait := q.changed
		q.mu.Unlock()

		if timer == nil {
			timer = q.clock.NewTimer(timeout)
		}

		select {
		case <-wait:
		case <-timer.C():
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

// MarkDone signals that processing of one dequeued item has finished,
// whether it succeeded or failed.
//
// Returns:
//   - error: ErrNotInFlight if no item is in flight
func (q *Queue) MarkDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == 0 {
		return types.ErrNotInFlight
	}
	q.inFlight--
	q.broadcast()

	return nil
}

// WaitUntilDrained blocks until every enqueued item has been dequeued and
// marked done.
//
// Parameters:
//   - ctx: Context bounding the wait
//
// Returns:
//   - error: nil once drained, ctx.Err() otherwise
func (q *Queue) WaitUntilDrained(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items) == 0 && q.inFlight == 0 {
			q.mu.Unlock()

			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close rejects further Enqueue calls and wakes all waiters. Items already
// queued can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.broadcast()
}

// Len returns the number of queued (not in-flight) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// InFlight returns the number of dequeued items not yet marked done.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.inFlight
}

// Pending returns queued plus in-flight items.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) + q.inFlight
}

// Capacity returns the configured capacity (0 = unbounded).
func (q *Queue) Capacity() int {
	return q.capacity
}
