// Package testing provides test utilities for the fanout module.
//
// This package offers helpers for setting up test environments: an embedded
// NATS server with JetStream, KV buckets and work streams, a logger that
// writes to testing.T, and in-memory fakes for the item source and the
// effect adapter. It follows Go's convention of providing testing utilities
// in a dedicated package (similar to net/http/httptest).
//
// Example usage:
//
//	import (
//	    "testing"
//	    fanouttest "github.com/arloliu/fanout/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    src := fanouttest.NewFakeSource("a@example.com", "b@example.com")
//	    eff := fanouttest.NewRecordingEffect()
//	    // wire into fanout.NewController
//	}
package testing
