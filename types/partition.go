package types

import (
	"slices"
	"strings"
)

// Partition represents one isolated execution context ("tenant").
//
// Partitions are created by a PartitionDirectory, either exogenously or by the
// reconciler when the observed count is below target. The engine never deletes
// a partition, and each partition is owned by exactly one worker for the
// lifetime of the process.
type Partition struct {
	// ID is the stable, server-assigned identifier (e.g., "tenant-2-x7k1q").
	ID string `json:"id"`

	// DisplayName is the human-readable name (e.g., "tenant-2").
	DisplayName string `json:"displayName"`
}

// String returns a compact "<id>(<display name>)" form for logging.
func (p Partition) String() string {
	if p.DisplayName == "" {
		return p.ID
	}

	return p.ID + "(" + p.DisplayName + ")"
}

// Compare orders partitions by ID.
//
// Returns:
//   - int: -1 if p < q, 0 if equal, +1 if p > q
func (p Partition) Compare(q Partition) int {
	return strings.Compare(p.ID, q.ID)
}

// PartitionConfig holds the settings applied when a partition is created.
type PartitionConfig struct {
	// AllowPasswordSignup enables email/password principals in the partition.
	AllowPasswordSignup bool `json:"allowPasswordSignup" yaml:"allowPasswordSignup" mapstructure:"allowPasswordSignup"`

	// EnableEmailLinkSignin enables passwordless email link sign-in.
	EnableEmailLinkSignin bool `json:"enableEmailLinkSignin" yaml:"enableEmailLinkSignin" mapstructure:"enableEmailLinkSignin"`
}

// Page is one page of a paginated partition listing.
type Page struct {
	// Partitions holds the partitions of this page (may be empty).
	Partitions []Partition

	// NextPageToken is the continuation token; empty when no more pages exist.
	NextPageToken string
}

// SortPartitions sorts partitions by ID in place and returns the slice.
func SortPartitions(ps []Partition) []Partition {
	slices.SortFunc(ps, Partition.Compare)

	return ps
}
