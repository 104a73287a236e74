package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/arloliu/fanout/types"
	"github.com/zeebo/xxh3"
)

// DefaultMemoryPageSize is the page size used when none is configured.
const DefaultMemoryPageSize = 100

// ErrDisplayNameTaken is returned by Memory when a display name is reused.
var ErrDisplayNameTaken = errors.New("display name already in use")

// ErrInvalidPageToken is returned by Memory for a token it did not issue.
var ErrInvalidPageToken = errors.New("invalid page token")

// Memory is an in-process PartitionDirectory.
//
// Partitions are listed in creation order. IDs are derived from the display
// name and a creation sequence number with xxh3, mimicking server-assigned
// IDs such as "tenant-2-x7k1q".
type Memory struct {
	mu         sync.RWMutex
	partitions []types.Partition
	configs    map[string]types.PartitionConfig
	pageSize   int
	seq        uint64
	createErrs map[string]error
	listErrs   []error
	listCalls  int
}

var _ types.PartitionDirectory = (*Memory)(nil)

// MemoryOption configures a Memory directory.
type MemoryOption func(*Memory)

// WithPageSize sets the listing page size.
func WithPageSize(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithPartitions preloads the directory.
func WithPartitions(ps ...types.Partition) MemoryOption {
	return func(m *Memory) {
		m.partitions = append(m.partitions, ps...)
	}
}

// NewMemory creates an in-memory directory.
//
// Parameters:
//   - opts: Optional configuration (page size, preloaded partitions)
//
// Returns:
//   - *Memory: Initialized directory
//
// Example:
//
//	dir := directory.NewMemory(directory.WithPageSize(2))
//	p, err := dir.CreatePartition(ctx, "tenant-0", types.PartitionConfig{AllowPasswordSignup: true})
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		configs:    make(map[string]types.PartitionConfig),
		pageSize:   DefaultMemoryPageSize,
		createErrs: make(map[string]error),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// ListPartitionsPage returns the page starting at the offset encoded in pageToken.
func (m *Memory) ListPartitionsPage(ctx context.Context, pageToken string) (types.Page, error) {
	if err := ctx.Err(); err != nil {
		return types.Page{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if len(m.listErrs) > 0 {
		err := m.listErrs[0]
		m.listErrs = m.listErrs[1:]

		return types.Page{}, err
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 || n > len(m.partitions) {
			return types.Page{}, fmt.Errorf("%w: %q", ErrInvalidPageToken, pageToken)
		}
		offset = n
	}

	end := min(offset+m.pageSize, len(m.partitions))
	page := types.Page{Partitions: make([]types.Partition, end-offset)}
	copy(page.Partitions, m.partitions[offset:end])
	if end < len(m.partitions) {
		page.NextPageToken = strconv.Itoa(end)
	}

	return page, nil
}

// CreatePartition appends a partition with a generated ID.
func (m *Memory) CreatePartition(ctx context.Context, displayName string, cfg types.PartitionConfig) (types.Partition, error) {
	if err := ctx.Err(); err != nil {
		return types.Partition{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.createErrs[displayName]; ok {
		return types.Partition{}, err
	}
	for _, p := range m.partitions {
		if p.DisplayName == displayName {
			return types.Partition{}, fmt.Errorf("%w: %q", ErrDisplayNameTaken, displayName)
		}
	}

	m.seq++
	p := types.Partition{
		ID:          partitionID(displayName, m.seq),
		DisplayName: displayName,
	}
	m.partitions = append(m.partitions, p)
	m.configs[p.ID] = cfg

	return p, nil
}

// FailCreate makes every CreatePartition call for displayName return err.
// A nil err clears the failure.
func (m *Memory) FailCreate(displayName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.createErrs, displayName)
		return
	}
	m.createErrs[displayName] = err
}

// FailList makes the next listing calls return the given errors, in order.
func (m *Memory) FailList(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listErrs = append(m.listErrs, errs...)
}

// Len returns the number of partitions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.partitions)
}

// ListCalls returns how many page requests were served.
func (m *Memory) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.listCalls
}

// Config returns the settings a partition was created with.
func (m *Memory) Config(partitionID string) (types.PartitionConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[partitionID]

	return cfg, ok
}

func partitionID(displayName string, seq uint64) string {
	h := xxh3.HashString(displayName + "/" + strconv.FormatUint(seq, 10))
	suffix := strconv.FormatUint(h, 36)
	if len(suffix) > 5 {
		suffix = suffix[:5]
	}

	return displayName + "-" + suffix
}
