// Package paging drains cursor-paginated listings.
package paging

import (
	"context"
	"fmt"

	"github.com/arloliu/fanout/types"
)

// FetchFunc returns one page of results and the continuation token for the
// next page. An empty token means no more pages.
type FetchFunc[T any] func(ctx context.Context, pageToken string) ([]T, string, error)

// DrainAll calls fetch repeatedly, starting with an empty token, until the
// returned continuation token is empty, and concatenates the pages in order.
//
// Empty pages are allowed. A token seen twice is treated as a directory bug
// and aborts with ErrPaginationLoop.
//
// Parameters:
//   - ctx: Context checked between pages
//   - fetch: Page fetch function
//
// Returns:
//   - []T: All items from all pages
//   - error: First fetch error (wrapped with the page number), ctx.Err(), or ErrPaginationLoop
func DrainAll[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var (
		all   []T
		token string
		seen  = make(map[string]struct{})
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, next, err := fetch(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("page %d token %q: %w", page, next, types.ErrPaginationLoop)
		}
		seen[next] = struct{}{}
		token = next
	}
}

// Partitions drains a PartitionDirectory listing.
//
// Parameters:
//   - ctx: Context for cancellation
//   - dir: Directory to list
//
// Returns:
//   - []types.Partition: All partitions in listing order
//   - error: Listing error wrapping ErrListPartitions
func Partitions(ctx context.Context, dir types.PartitionDirectory) ([]types.Partition, error) {
	ps, err := DrainAll(ctx, func(ctx context.Context, token string) ([]types.Partition, string, error) {
		page, err := dir.ListPartitionsPage(ctx, token)
		if err != nil {
			return nil, "", err
		}

		return page.Partitions, page.NextPageToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrListPartitions, err)
	}

	return ps, nil
}
