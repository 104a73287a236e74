package types

import "context"

// PartitionDirectory lists existing partitions and creates new ones.
//
// Implementations can query various backends:
//   - Identity Toolkit: tenants of a Google Cloud project
//   - Memory: in-process directory for tests and demos
//   - Custom: any service that owns isolated execution contexts
//
// The reconciler calls ListPartitionsPage until NextPageToken is empty, so a
// single page is never assumed to contain all partitions.
type PartitionDirectory interface {
	// ListPartitionsPage returns one page of partitions.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - pageToken: Continuation token from the previous page ("" for the first page)
	//
	// Returns:
	//   - Page: Partitions of this page and the next continuation token
	//   - error: Listing error (nil on success)
	ListPartitionsPage(ctx context.Context, pageToken string) (Page, error)

	// CreatePartition creates a new partition with the given display name.
	//
	// Implementations must not return a partial partition: on failure the
	// returned error is non-nil and the Partition is zero.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - displayName: Unique human-readable name
	//   - cfg: Partition settings
	//
	// Returns:
	//   - Partition: The created partition with its server-assigned ID
	//   - error: Creation error (nil on success)
	CreatePartition(ctx context.Context, displayName string, cfg PartitionConfig) (Partition, error)
}
