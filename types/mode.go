package types

import "fmt"

// ProducerMode selects how the batch producer paces rounds against the queue.
type ProducerMode string

const (
	// ModeSyncDrain fetches a batch, enqueues it and waits until every item
	// has been processed before the round ends. At most one batch is in the
	// system at a time.
	ModeSyncDrain ProducerMode = "sync_drain"

	// ModePipelined fetches and enqueues without waiting for the drain,
	// relying on the queue capacity for backpressure.
	ModePipelined ProducerMode = "pipelined"
)

// Validate returns an error for unknown modes. The empty mode is valid and
// means ModeSyncDrain.
func (m ProducerMode) Validate() error {
	switch m {
	case "", ModeSyncDrain, ModePipelined:
		return nil
	default:
		return fmt.Errorf("unknown producer mode %q", string(m))
	}
}

// String returns the mode name, defaulting to sync_drain.
func (m ProducerMode) String() string {
	if m == "" {
		return string(ModeSyncDrain)
	}

	return string(m)
}
