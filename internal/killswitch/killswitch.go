// Package killswitch provides the cooperative stop signal shared by the
// controller, the producer and the partition workers.
//
// Tripping the switch never interrupts an effect call already in progress.
// Components observe it at their own safe points: before a round, before a
// dequeue, and while sleeping or waiting for a drain.
package killswitch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// Switch is a one-way stop flag with a broadcast channel.
//
// The zero value is not usable; create one with New.
type Switch struct {
	tripped atomic.Bool
	once    sync.Once
	done    chan struct{}
	reason  atomic.Value // string
}

// New creates an untripped switch.
func New() *Switch {
	return &Switch{done: make(chan struct{})}
}

// Trip sets the switch. Only the first call has an effect.
//
// Parameters:
//   - reason: Short description recorded for logging (e.g., "env", "kv", "signal")
//
// Returns:
//   - bool: true if this call tripped the switch
func (s *Switch) Trip(reason string) bool {
	first := false
	s.once.Do(func() {
		s.reason.Store(reason)
		s.tripped.Store(true)
		close(s.done)
		first = true
	})

	return first
}

// Tripped reports whether the switch has been tripped.
func (s *Switch) Tripped() bool {
	return s.tripped.Load()
}

// Done returns a channel closed when the switch trips.
func (s *Switch) Done() <-chan struct{} {
	return s.done
}

// Reason returns the reason passed to the first Trip call.
func (s *Switch) Reason() string {
	r, _ := s.reason.Load().(string)

	return r
}

// Context returns a child of parent that is cancelled when the switch trips.
//
// Parameters:
//   - parent: Parent context
//
// Returns:
//   - context.Context: Context cancelled on trip or when parent ends
//   - context.CancelFunc: Releases resources; must be called
func (s *Switch) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// ParseValue interprets a textual switch value such as an environment
// variable or a KV entry. "true", "1", "yes" and "on" (case-insensitive)
// mean tripped.
func ParseValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Sleep waits for d on clk, returning early when ctx ends or the switch trips.
//
// Parameters:
//   - ctx: Context for cancellation
//   - clk: Clock providing the timer
//   - d: Sleep duration; <= 0 returns immediately
//
// Returns:
//   - bool: true if the full duration elapsed
func (s *Switch) Sleep(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil && !s.Tripped()
	}

	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}
