package testutil

import (
	"testing"

	fanouttest "github.com/arloliu/fanout/testing"
	"github.com/arloliu/fanout/types"
)

// AssertEachItemOnce verifies that every expected item was upserted and
// notified exactly once, in that order, and inside a single partition.
//
// Parameters:
//   - t: testing handle
//   - calls: calls recorded by a RecordingEffect
//   - items: items the run was expected to handle
func AssertEachItemOnce(t *testing.T, calls []fanouttest.EffectCall, items []types.WorkItem) {
	t.Helper()

	type seen struct {
		partition string
		upserts   int
		notifies  int
	}
	byItem := make(map[types.WorkItem]*seen, len(items))

	for _, c := range calls {
		s, ok := byItem[c.Item]
		if !ok {
			s = &seen{partition: c.PartitionID}
			byItem[c.Item] = s
		}
		if s.partition != c.PartitionID {
			t.Fatalf("item %s handled in partitions %s and %s", c.Item, s.partition, c.PartitionID)
		}
		switch c.Op {
		case "upsert":
			if s.notifies > 0 {
				t.Fatalf("item %s upserted after its notification", c.Item)
			}
			s.upserts++
		case "notify":
			s.notifies++
		}
	}

	for _, item := range items {
		s, ok := byItem[item]
		if !ok {
			t.Fatalf("item %s was never handled", item)
		}
		if s.upserts != 1 || s.notifies != 1 {
			t.Fatalf("item %s: %d upserts, %d notifications, want 1 each", item, s.upserts, s.notifies)
		}
	}
	if len(byItem) != len(items) {
		t.Fatalf("handled %d distinct items, want %d", len(byItem), len(items))
	}
}
