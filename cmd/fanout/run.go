package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/fanout"
	"github.com/arloliu/fanout/internal/kvutil"
	"github.com/arloliu/fanout/internal/metrics"
	"github.com/arloliu/fanout/internal/status"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile partitions and process work items until stopped",
		Long: `Reconcile the partition count, start one worker per partition and run
production rounds until the kill switch trips or the process receives
SIGINT/SIGTERM. A second signal abandons in-flight items.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}
}

func run(parent context.Context, cfg *appConfig) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ad := newAdapters(cfg, logger)
	defer ad.Close()

	src, err := ad.source(ctx)
	if err != nil {
		return err
	}
	dir, err := ad.directory(ctx)
	if err != nil {
		return err
	}
	eff, err := ad.effect(ctx)
	if err != nil {
		return err
	}

	sw := fanout.NewKillSwitch()
	ctrlOpts := []fanout.Option{fanout.WithLogger(logger), fanout.WithKillSwitch(sw)}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		ctrlOpts = append(ctrlOpts, fanout.WithMetrics(metrics.NewPrometheus(reg, cfg.Metrics.Namespace)))

		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctrl, err := fanout.NewController(&cfg.Engine, src, dir, eff, ctrlOpts...)
	if err != nil {
		return err
	}

	if cfg.NATS.KillSwitchBucket != "" {
		if err := watchRemoteKillSwitch(ctx, ad, cfg.NATS, sw, logger); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for n := 0; ; n++ {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if n == 0 {
					logger.Info("signal received, stopping after in-flight items", "signal", sig.String())
					ctrl.Kill("signal " + sig.String())

					continue
				}
				logger.Warn("second signal received, abandoning in-flight items", "signal", sig.String())
				cancel()

				return
			}
		}
	}()

	if cfg.NATS.StatusBucket != "" {
		pub, err := startStatusPublisher(ctx, ad, cfg.NATS, ctrl, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Stop(); err != nil {
				logger.Warn("status publisher stop failed", "error", err)
			}
		}()
	}

	logger.Info("starting", "run_id", ctrl.RunID(), "source", cfg.Source.Kind, "directory", cfg.Directory.Kind, "effect", cfg.Effect.Kind)
	err = ctrl.Run(ctx)

	stats := ctrl.Stats()
	for id, s := range stats {
		logger.Info("partition summary", "partition", id, "processed", s.Processed, "created", s.Created,
			"already_existed", s.AlreadyExisted, "failed", s.Failed)
	}
	logger.Info("stopped", "rounds", ctrl.Round(), "reason", sw.Reason())

	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger fanout.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return srv
}

// watchRemoteKillSwitch trips sw when the configured KV key is set to a true value.
func watchRemoteKillSwitch(ctx context.Context, ad *adapters, cfg natsConfig, sw *fanout.KillSwitch, logger fanout.Logger) error {
	js, err := ad.jetStream()
	if err != nil {
		return err
	}
	kv, err := kvutil.EnsureKVBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.KillSwitchBucket,
		Description: "fanout control keys",
	}, 3)
	if err != nil {
		return err
	}

	go func() {
		if err := fanout.WatchKillSwitch(ctx, kv, cfg.KillSwitchKey, sw, logger); err != nil {
			logger.Error("remote kill switch unavailable", "bucket", cfg.KillSwitchBucket, "error", err)
		}
	}()
	logger.Info("watching remote kill switch", "bucket", cfg.KillSwitchBucket, "key", cfg.KillSwitchKey)

	return nil
}

// startStatusPublisher writes the controller status to "status.<run id>".
func startStatusPublisher(ctx context.Context, ad *adapters, cfg natsConfig, ctrl *fanout.Controller, logger fanout.Logger) (*status.Publisher, error) {
	js, err := ad.jetStream()
	if err != nil {
		return nil, err
	}
	kv, err := kvutil.EnsureKVBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.StatusBucket,
		Description: "fanout run status",
		TTL:         24 * time.Hour,
	}, 3)
	if err != nil {
		return nil, err
	}

	key := "status." + ctrl.RunID()
	pub := status.New(kv, key, cfg.StatusInterval, func() status.Snapshot {
		return status.Snapshot{
			RunID:      ctrl.RunID(),
			State:      ctrl.State().String(),
			Round:      ctrl.Round(),
			Partitions: ctrl.Stats(),
		}
	}, status.WithLogger(logger))
	if err := pub.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("publishing run status", "bucket", cfg.StatusBucket, "key", key)

	return pub, nil
}
