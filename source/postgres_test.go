package source

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/internal/retry"
	"github.com/arloliu/fanout/types"
)

// fakeRow scans a queued claim result.
type fakeRow struct {
	value *string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(**string)
	if !ok {
		return errors.New("unexpected scan target")
	}
	*ptr = r.value

	return nil
}

// fakeClaimDB hands out queued claim results from QueryRow.
type fakeClaimDB struct {
	mu      sync.Mutex
	results []fakeRow
	sqls    []string
	args    [][]any
}

func (db *fakeClaimDB) push(values ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, v := range values {
		db.results = append(db.results, fakeRow{value: &v})
	}
}

func (db *fakeClaimDB) pushErr(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.results = append(db.results, fakeRow{err: err})
}

func (db *fakeClaimDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("batch query not supported by fake")
}

func (db *fakeClaimDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.sqls = append(db.sqls, sql)
	db.args = append(db.args, args)
	if len(db.results) == 0 {
		return fakeRow{} // NULL: exhausted
	}
	r := db.results[0]
	db.results = db.results[1:]

	return r
}

func noWaitPolicy() *retry.Policy {
	return &retry.Policy{
		MaxAttempts: 3,
		Base:        time.Millisecond,
		Cap:         time.Millisecond,
		Retryable:   IsTransientDBError,
	}
}

func TestPostgres_FetchBatch(t *testing.T) {
	t.Run("calls the claim function until the batch is full", func(t *testing.T) {
		db := &fakeClaimDB{}
		db.push("a@x.io", "b@x.io", "c@x.io")
		src := NewPostgres(db, PostgresConfig{OfferID: 15})

		batch, err := src.FetchBatch(t.Context(), 2)
		require.NoError(t, err)
		require.Equal(t, []types.WorkItem{"a@x.io", "b@x.io"}, batch)

		require.Equal(t, `SELECT "get_one_email_and_insert"($1, $2)`, db.sqls[0])
		require.Equal(t, []any{DefaultClaimTable, int64(15)}, db.args[0])
	})

	t.Run("stops at NULL", func(t *testing.T) {
		db := &fakeClaimDB{}
		db.push("a@x.io")
		src := NewPostgres(db, PostgresConfig{})

		batch, err := src.FetchBatch(t.Context(), 10)
		require.NoError(t, err)
		require.Equal(t, []types.WorkItem{"a@x.io"}, batch)
		require.Len(t, db.sqls, 2)
	})

	t.Run("empty source", func(t *testing.T) {
		batch, err := NewPostgres(&fakeClaimDB{}, PostgresConfig{}).FetchBatch(t.Context(), 10)
		require.NoError(t, err)
		require.Empty(t, batch)
	})

	t.Run("custom function name is quoted", func(t *testing.T) {
		db := &fakeClaimDB{}
		src := NewPostgres(db, PostgresConfig{ClaimFunction: `claim"; DROP TABLE x; --`, Table: "users"})

		_, err := src.FetchBatch(t.Context(), 1)
		require.NoError(t, err)
		require.Equal(t, `SELECT "claim""; DROP TABLE x; --"($1, $2)`, db.sqls[0])
	})

	t.Run("retries transient errors", func(t *testing.T) {
		db := &fakeClaimDB{}
		db.pushErr(errors.Join(types.ErrTransient, errors.New("connection reset")))
		db.push("a@x.io")
		src := NewPostgres(db, PostgresConfig{}, WithPostgresRetry(noWaitPolicy()))

		batch, err := src.FetchBatch(t.Context(), 1)
		require.NoError(t, err)
		require.Equal(t, []types.WorkItem{"a@x.io"}, batch)
	})

	t.Run("permanent error on first claim", func(t *testing.T) {
		db := &fakeClaimDB{}
		denied := errors.New("permission denied for function")
		db.pushErr(denied)
		src := NewPostgres(db, PostgresConfig{}, WithPostgresRetry(noWaitPolicy()))

		_, err := src.FetchBatch(t.Context(), 3)
		require.ErrorIs(t, err, denied)
		require.Len(t, db.sqls, 1)
	})

	t.Run("error after partial claim keeps claimed items", func(t *testing.T) {
		db := &fakeClaimDB{}
		db.push("a@x.io")
		db.pushErr(errors.New("boom"))
		src := NewPostgres(db, PostgresConfig{}, WithPostgresRetry(noWaitPolicy()))

		batch, err := src.FetchBatch(t.Context(), 3)
		require.NoError(t, err)
		require.Equal(t, []types.WorkItem{"a@x.io"}, batch)
	})

	t.Run("no rows is treated as exhausted", func(t *testing.T) {
		db := &fakeClaimDB{}
		db.pushErr(pgx.ErrNoRows)

		batch, err := NewPostgres(db, PostgresConfig{}).FetchBatch(t.Context(), 3)
		require.NoError(t, err)
		require.Empty(t, batch)
	})
}

func TestIsTransientDBError(t *testing.T) {
	require.False(t, IsTransientDBError(nil))
	require.False(t, IsTransientDBError(errors.New("syntax error")))
	require.True(t, IsTransientDBError(types.ErrTransient))
}

// TestPostgres_Integration runs against a real database when
// FANOUT_TEST_POSTGRES_URL is set.
func TestPostgres_Integration(t *testing.T) {
	url := os.Getenv("FANOUT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FANOUT_TEST_POSTGRES_URL not set")
	}

	ctx := t.Context()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Temp tables are per connection.
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	_, err = conn.Exec(ctx, `
CREATE TEMP TABLE fanout_items (email text PRIMARY KEY, claimed boolean NOT NULL DEFAULT false);
INSERT INTO fanout_items (email) VALUES ('a@x.io'), ('b@x.io'), ('c@x.io');
`)
	require.NoError(t, err)

	src := NewPostgres(conn, PostgresConfig{BatchQuery: `
UPDATE fanout_items SET claimed = true
WHERE email IN (
    SELECT email FROM fanout_items
    WHERE NOT claimed AND $2::text <> '' AND $3::bigint >= 0
    ORDER BY email LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING email`})

	first, err := src.FetchBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := src.FetchBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.NotContains(t, first, second[0])

	third, err := src.FetchBatch(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, third)
}
