package types

// WorkItem is one unit of work pulled from an ItemSource, typically an email address.
//
// A WorkItem is immutable once enqueued and is processed by exactly one worker.
type WorkItem string

// String returns the item identifier.
func (w WorkItem) String() string {
	return string(w)
}
