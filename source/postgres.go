package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/retry"
	"github.com/arloliu/fanout/types"
)

// Default claim function and table of the Postgres source.
const (
	DefaultClaimFunction = "get_one_email_and_insert"
	DefaultClaimTable    = "gmx_tenant_users"
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// PostgresConfig configures the Postgres item source.
type PostgresConfig struct {
	// ClaimFunction is a SQL function claiming a single item. It is called as
	// fn(table text, offer_id bigint) and returns the claimed item, or NULL
	// when nothing is left.
	ClaimFunction string `yaml:"claimFunction" mapstructure:"claimFunction"`

	// Table is passed as the first claim function argument.
	Table string `yaml:"table" mapstructure:"table"`

	// OfferID is passed as the second claim function argument.
	OfferID int64 `yaml:"offerId" mapstructure:"offerId"`

	// BatchQuery, when set, replaces the per-item function calls with one
	// query claiming a whole batch. It receives $1 = limit, $2 = table,
	// $3 = offer ID and must return a single text column.
	BatchQuery string `yaml:"batchQuery" mapstructure:"batchQuery"`
}

// Postgres claims items from a PostgreSQL database.
//
// Claiming is the database's job: the claim function (or batch query) must
// mark every returned row as taken so no later call returns it again.
type Postgres struct {
	db     Querier
	cfg    PostgresConfig
	policy *retry.Policy
	logger types.Logger
}

var _ types.ItemSource = (*Postgres)(nil)

// PostgresOption configures a Postgres source.
type PostgresOption func(*Postgres)

// WithPostgresLogger sets the logger.
func WithPostgresLogger(l types.Logger) PostgresOption {
	return func(p *Postgres) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPostgresRetry overrides the retry policy for transient database errors.
func WithPostgresRetry(policy *retry.Policy) PostgresOption {
	return func(p *Postgres) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// NewPostgres creates a Postgres item source.
//
// Parameters:
//   - db: Connection pool (or any Querier)
//   - cfg: Claim function or batch query settings
//   - opts: Optional logger and retry policy
//
// Returns:
//   - *Postgres: Initialized source
//
// Example:
//
//	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil { /* handle */ }
//	src := source.NewPostgres(pool, source.PostgresConfig{OfferID: 15})
func NewPostgres(db Querier, cfg PostgresConfig, opts ...PostgresOption) *Postgres {
	if cfg.ClaimFunction == "" {
		cfg.ClaimFunction = DefaultClaimFunction
	}
	if cfg.Table == "" {
		cfg.Table = DefaultClaimTable
	}

	policy := retry.DefaultPolicy()
	policy.Retryable = IsTransientDBError

	p := &Postgres{
		db:     db,
		cfg:    cfg,
		policy: policy,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// FetchBatch claims up to maxCount items.
//
// In per-item mode a failure after some items were claimed returns those
// items without an error, so they are not lost; the failure surfaces on the
// next call.
func (p *Postgres) FetchBatch(ctx context.Context, maxCount int) ([]types.WorkItem, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	if p.cfg.BatchQuery != "" {
		return p.fetchBatchQuery(ctx, maxCount)
	}

	items := make([]types.WorkItem, 0, maxCount)
	for len(items) < maxCount {
		item, ok, err := p.claimOne(ctx)
		if err != nil {
			if len(items) > 0 {
				p.logger.Warn("claim interrupted, returning partial batch", "claimed", len(items), "error", err)

				return items, nil
			}

			return nil, err
		}
		if !ok {
			break
		}
		items = append(items, item)
	}

	return items, nil
}

func (p *Postgres) claimSQL() string {
	return "SELECT " + pgx.Identifier{p.cfg.ClaimFunction}.Sanitize() + "($1, $2)"
}

// claimOne calls the claim function. ok is false when the source is exhausted.
func (p *Postgres) claimOne(ctx context.Context) (types.WorkItem, bool, error) {
	var email *string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		return p.db.QueryRow(ctx, p.claimSQL(), p.cfg.Table, p.cfg.OfferID).Scan(&email)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("claim item: %w", err)
	}
	if email == nil || *email == "" {
		return "", false, nil
	}

	return types.WorkItem(*email), true, nil
}

func (p *Postgres) fetchBatchQuery(ctx context.Context, maxCount int) ([]types.WorkItem, error) {
	var items []types.WorkItem
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, p.cfg.BatchQuery, maxCount, p.cfg.Table, p.cfg.OfferID)
		if err != nil {
			return err
		}

		items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.WorkItem, error) {
			var s string
			err := row.Scan(&s)

			return types.WorkItem(s), err
		})

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}

	return items, nil
}

// IsTransientDBError reports whether a database error is worth retrying.
func IsTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	if types.IsTransient(err) {
		return true
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
