package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/fanout"
	"github.com/arloliu/fanout/internal/paging"
	"github.com/arloliu/fanout/internal/reconcile"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Create partitions until the target count is reached, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("target") {
				cfg.Engine.TargetPartitions = target
			}

			return reconcileOnce(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().IntVar(&target, "target", 0, "target partition count (overrides engine.targetPartitions)")

	return cmd
}

func reconcileOnce(ctx context.Context, out io.Writer, cfg *appConfig) error {
	fanout.SetDefaults(&cfg.Engine)
	if err := cfg.Engine.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ad := newAdapters(cfg, logger)
	defer ad.Close()

	dir, err := ad.directory(ctx)
	if err != nil {
		return err
	}

	res, err := reconcile.New(dir,
		reconcile.WithPrefix(cfg.Engine.PartitionNamePrefix),
		reconcile.WithPartitionConfig(cfg.Engine.Partition),
		reconcile.WithLogger(logger),
	).EnsurePartitionCount(ctx, cfg.Engine.TargetPartitions)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "existing: %d  created: %d  failed: %d  total: %d\n",
		res.Existing, len(res.Created), len(res.Failed), len(res.Partitions))
	for _, p := range res.Created {
		fmt.Fprintf(out, "created  %s\t%s\n", p.ID, p.DisplayName)
	}
	for _, name := range res.Failed {
		fmt.Fprintf(out, "failed   %s\n", name)
	}

	return nil
}

func newPartitionsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "List all partitions of the directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			return listPartitions(cmd.Context(), cmd.OutOrStdout(), cfg, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func listPartitions(ctx context.Context, out io.Writer, cfg *appConfig, asJSON bool) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ad := newAdapters(cfg, logger)
	defer ad.Close()

	dir, err := ad.directory(ctx)
	if err != nil {
		return err
	}
	partitions, err := paging.Partitions(ctx, dir)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(partitions)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDISPLAY NAME")
	for _, p := range partitions {
		fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.DisplayName)
	}

	return tw.Flush()
}
