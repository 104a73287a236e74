package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanout"
	"github.com/arloliu/fanout/directory"
	"github.com/arloliu/fanout/effect"
	"github.com/arloliu/fanout/identitytoolkit"
	"github.com/arloliu/fanout/source"
)

// adapters builds the collaborators named by the configuration and owns the
// connections they need.
type adapters struct {
	cfg    *appConfig
	logger fanout.Logger

	nc      *nats.Conn
	js      jetstream.JetStream
	pool    *pgxpool.Pool
	toolkit *identitytoolkit.Client
}

func newAdapters(cfg *appConfig, logger fanout.Logger) *adapters {
	return &adapters{cfg: cfg, logger: logger}
}

// Close releases every connection opened so far.
func (a *adapters) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.nc.Close()
		}
	}
}

// jetStream connects to NATS on first use.
func (a *adapters) jetStream() (jetstream.JetStream, error) {
	if a.js != nil {
		return a.js, nil
	}
	if a.cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is required")
	}

	nc, err := nats.Connect(a.cfg.NATS.URL,
		nats.Name("fanout"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				a.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			a.logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("jetstream: %w", err)
	}
	a.nc, a.js = nc, js

	return js, nil
}

// identityToolkit builds the client shared by the directory and the effect.
func (a *adapters) identityToolkit(ctx context.Context) (*identitytoolkit.Client, error) {
	if a.toolkit != nil {
		return a.toolkit, nil
	}

	dc := a.cfg.Directory
	opts := []identitytoolkit.Option{
		identitytoolkit.WithAPIKey(a.cfg.Effect.APIKey),
		identitytoolkit.WithBaseURL(dc.BaseURL),
		identitytoolkit.WithLogger(a.logger),
	}
	switch {
	case dc.CredentialsJSON != "":
		hc, err := identitytoolkit.NewHTTPClient(ctx, []byte(dc.CredentialsJSON))
		if err != nil {
			return nil, err
		}
		opts = append(opts, identitytoolkit.WithHTTPClient(hc))
	case dc.CredentialsFile != "":
		hc, err := identitytoolkit.NewHTTPClientFromFile(ctx, dc.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, identitytoolkit.WithHTTPClient(hc))
	default:
		a.logger.Info("no service account credentials configured, using application default credentials")
	}

	client, err := identitytoolkit.New(ctx, dc.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	a.toolkit = client

	return client, nil
}

func (a *adapters) source(ctx context.Context) (fanout.ItemSource, error) {
	sc := a.cfg.Source
	switch sc.Kind {
	case kindPostgres:
		if sc.Postgres.URL == "" {
			return nil, errors.New("source.postgres.url is required")
		}
		pool, err := pgxpool.New(ctx, sc.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.pool = pool

		return source.NewPostgres(pool, source.PostgresConfig{
			ClaimFunction: sc.Postgres.ClaimFunction,
			Table:         sc.Postgres.Table,
			OfferID:       sc.Postgres.OfferID,
			BatchQuery:    sc.Postgres.BatchQuery,
		}, source.WithPostgresLogger(a.logger)), nil
	case kindJetStream:
		js, err := a.jetStream()
		if err != nil {
			return nil, err
		}

		return source.NewJetStream(ctx, js, sc.JetStream, a.logger)
	case kindStatic:
		items := make([]fanout.WorkItem, 0, len(sc.Items))
		for _, it := range sc.Items {
			items = append(items, fanout.WorkItem(it))
		}

		return source.NewStatic(items), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

func (a *adapters) directory(ctx context.Context) (fanout.PartitionDirectory, error) {
	switch a.cfg.Directory.Kind {
	case kindIdentityToolkit:
		client, err := a.identityToolkit(ctx)
		if err != nil {
			return nil, err
		}

		return directory.NewIdentityToolkit(client), nil
	case kindMemory:
		return directory.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown directory kind %q", a.cfg.Directory.Kind)
	}
}

func (a *adapters) effect(ctx context.Context) (fanout.EffectAdapter, error) {
	switch a.cfg.Effect.Kind {
	case kindIdentityToolkit:
		if a.cfg.Effect.APIKey == "" {
			return nil, errors.New("effect.apiKey is required")
		}
		client, err := a.identityToolkit(ctx)
		if err != nil {
			return nil, err
		}

		return effect.NewIdentityToolkit(client), nil
	case kindLog:
		logger := a.logger

		return effect.Func{
			Notify: func(_ context.Context, partitionID string, item fanout.WorkItem) error {
				logger.Info("dry run", "partition", partitionID, "item", string(item))

				return nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown effect kind %q", a.cfg.Effect.Kind)
	}
}
