package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/fanout/types"
)

// FakeSource is an in-memory ItemSource that hands out each item once.
//
// It is safe for concurrent use.
type FakeSource struct {
	mu      sync.Mutex
	items   []types.WorkItem
	errs    []error
	fetches atomic.Int64
	fetched chan int
}

var _ types.ItemSource = (*FakeSource)(nil)

// NewFakeSource creates a source preloaded with items.
func NewFakeSource(items ...types.WorkItem) *FakeSource {
	return &FakeSource{
		items:   append([]types.WorkItem(nil), items...),
		fetched: make(chan int, 1024),
	}
}

// Add appends items that later fetches will return.
func (s *FakeSource) Add(items ...types.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, items...)
}

// FailNext makes the next fetch calls return the given errors, in order.
func (s *FakeSource) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs = append(s.errs, errs...)
}

// FetchBatch claims up to maxCount items.
func (s *FakeSource) FetchBatch(ctx context.Context, maxCount int) ([]types.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches.Add(1)

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.notify(0)

		return nil, err
	}

	n := min(maxCount, len(s.items))
	batch := append([]types.WorkItem(nil), s.items[:n]...)
	s.items = s.items[n:]
	s.notify(n)

	return batch, nil
}

func (s *FakeSource) notify(n int) {
	select {
	case s.fetched <- n:
	default:
	}
}

// Fetches returns the number of FetchBatch calls so far.
func (s *FakeSource) Fetches() int {
	return int(s.fetches.Load())
}

// Fetched delivers the size of every batch returned, in call order.
func (s *FakeSource) Fetched() <-chan int {
	return s.fetched
}

// Remaining returns the number of unclaimed items.
func (s *FakeSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// EffectCall is one call recorded by RecordingEffect.
type EffectCall struct {
	Op          string // "upsert" or "notify"
	PartitionID string
	Item        types.WorkItem
}

// RecordingEffect is an EffectAdapter that records every call.
//
// Behavior can be tuned per item with Exists, FailUpsert and FailNotify.
type RecordingEffect struct {
	// Delay is slept (honoring ctx) inside every call.
	Delay time.Duration

	mu         sync.Mutex
	calls      []EffectCall
	exists     map[types.WorkItem]bool
	failUpsert map[types.WorkItem]error
	failNotify map[types.WorkItem]error
	panicOn    map[types.WorkItem]bool
	done       chan EffectCall
}

var _ types.EffectAdapter = (*RecordingEffect)(nil)

// NewRecordingEffect creates an effect adapter that succeeds for every item.
func NewRecordingEffect() *RecordingEffect {
	return &RecordingEffect{
		exists:     make(map[types.WorkItem]bool),
		failUpsert: make(map[types.WorkItem]error),
		failNotify: make(map[types.WorkItem]error),
		panicOn:    make(map[types.WorkItem]bool),
		done:       make(chan EffectCall, 4096),
	}
}

// Exists makes UpsertPrincipal report UpsertAlreadyExists for item.
func (e *RecordingEffect) Exists(item types.WorkItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exists[item] = true
}

// FailUpsert makes UpsertPrincipal fail with err for item.
func (e *RecordingEffect) FailUpsert(item types.WorkItem, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failUpsert[item] = err
}

// FailNotify makes TriggerNotification fail with err for item.
func (e *RecordingEffect) FailNotify(item types.WorkItem, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failNotify[item] = err
}

// PanicOn makes UpsertPrincipal panic for item.
func (e *RecordingEffect) PanicOn(item types.WorkItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.panicOn[item] = true
}

func (e *RecordingEffect) wait(ctx context.Context) error {
	if e.Delay <= 0 {
		return nil
	}

	t := time.NewTimer(e.Delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *RecordingEffect) record(call EffectCall) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()

	select {
	case e.done <- call:
	default:
	}
}

// UpsertPrincipal records the call and returns the configured outcome.
func (e *RecordingEffect) UpsertPrincipal(ctx context.Context, partitionID string, item types.WorkItem) (types.UpsertResult, error) {
	if err := e.wait(ctx); err != nil {
		return types.UpsertCreated, err
	}

	e.mu.Lock()
	shouldPanic := e.panicOn[item]
	exists := e.exists[item]
	err := e.failUpsert[item]
	e.mu.Unlock()

	if shouldPanic {
		panic("recording effect: panic on " + string(item))
	}

	e.record(EffectCall{Op: "upsert", PartitionID: partitionID, Item: item})
	if err != nil {
		return types.UpsertCreated, err
	}
	if exists {
		return types.UpsertAlreadyExists, nil
	}

	return types.UpsertCreated, nil
}

// TriggerNotification records the call and returns the configured outcome.
func (e *RecordingEffect) TriggerNotification(ctx context.Context, partitionID string, item types.WorkItem) error {
	if err := e.wait(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	err := e.failNotify[item]
	e.mu.Unlock()

	e.record(EffectCall{Op: "notify", PartitionID: partitionID, Item: item})

	return err
}

// Calls returns a copy of all recorded calls.
func (e *RecordingEffect) Calls() []EffectCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]EffectCall(nil), e.calls...)
}

// Notified returns the items that received a notification, in call order.
func (e *RecordingEffect) Notified() []types.WorkItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []types.WorkItem
	for _, c := range e.calls {
		if c.Op == "notify" {
			out = append(out, c.Item)
		}
	}

	return out
}

// Recorded delivers every recorded call as it happens.
func (e *RecordingEffect) Recorded() <-chan EffectCall {
	return e.done
}
