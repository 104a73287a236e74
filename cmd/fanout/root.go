package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/types"
)

type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "fanout",
		Short:         "Distribute claimed work items across partition workers",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a yaml config file (default: ./fanout.yaml if present)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json, console or logfmt (overrides log.format)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	root.AddCommand(newRunCmd(opts), newReconcileCmd(opts), newPartitionsCmd(opts))

	return root
}

// load reads the configuration and applies the logging flags.
func (o *rootOptions) load() (*appConfig, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	return cfg, nil
}

// cliLogger is what the commands log through.
type cliLogger interface {
	types.Logger
	Sync() error
}

// newLogger builds the logger described by cfg. json and console are zap
// encoders; logfmt writes key=value lines through log/slog.
func newLogger(cfg logConfig) (cliLogger, error) {
	if cfg.Format == "logfmt" {
		sl, err := logging.NewLogfmt(os.Stderr, cfg.Level)
		if err != nil {
			return nil, err
		}

		return sl, nil
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	switch cfg.Format {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = level

	zl, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logging.NewZap(zl), nil
}
