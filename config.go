package fanout

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxPartitions is the default safety ceiling for TargetPartitions.
const DefaultMaxPartitions = 100

// Config is the configuration for the Controller.
//
// All duration fields accept standard Go duration strings like "50ms", "2s", "10s".
//
// Timing model:
//
//	round N:   fetch ── enqueue ── wait drained (sync mode) ── sleep RoundInterval
//	empty/err: fetch ── sleep EmptyBackoff
//	worker:    dequeue (DequeueTimeout) ── effect (ItemTimeout) ── sleep ItemPacing [+ FailurePause]
//	idle:      dequeue timed out ── sleep IdleInterval
type Config struct {
	// TargetPartitions is the minimum partition count the reconciler ensures at startup.
	// Zero skips creation and uses whatever partitions exist.
	TargetPartitions int `yaml:"targetPartitions" mapstructure:"targetPartitions"`

	// MaxPartitions is the safety ceiling. A TargetPartitions above it is a
	// fatal misconfiguration.
	MaxPartitions int `yaml:"maxPartitions" mapstructure:"maxPartitions"`

	// PartitionNamePrefix is the display name prefix of created partitions ("<prefix>-<index>").
	PartitionNamePrefix string `yaml:"partitionNamePrefix" mapstructure:"partitionNamePrefix"`

	// Partition holds the settings sent with every partition creation.
	Partition PartitionConfig `yaml:"partition" mapstructure:"partition"`

	// MaxWorkers caps how many partition workers process an item at the same
	// time. Every partition keeps its worker; they take turns. Zero means no cap.
	MaxWorkers int `yaml:"maxWorkers" mapstructure:"maxWorkers"`

	// BatchSize is the maximum number of items fetched per round.
	BatchSize int `yaml:"batchSize" mapstructure:"batchSize"`

	// BatchSizePerPartition, when positive, replaces BatchSize with a quota
	// per served partition: each round fetches BatchSizePerPartition times the
	// partition count.
	BatchSizePerPartition int `yaml:"batchSizePerPartition" mapstructure:"batchSizePerPartition"`

	// Mode selects sync-drain (default) or pipelined rounds.
	Mode ProducerMode `yaml:"mode" mapstructure:"mode"`

	// QueueCapacity bounds the work queue. Zero means unbounded, which is only
	// safe in sync-drain mode.
	QueueCapacity int `yaml:"queueCapacity" mapstructure:"queueCapacity"`

	// RoundInterval is the pause between rounds.
	RoundInterval time.Duration `yaml:"roundInterval" mapstructure:"roundInterval"`

	// EmptyBackoff is the pause after an empty or failed fetch.
	EmptyBackoff time.Duration `yaml:"emptyBackoff" mapstructure:"emptyBackoff"`

	// DequeueTimeout bounds how long a worker waits for an item.
	DequeueTimeout time.Duration `yaml:"dequeueTimeout" mapstructure:"dequeueTimeout"`

	// IdleInterval is the pause after a dequeue timed out.
	IdleInterval time.Duration `yaml:"idleInterval" mapstructure:"idleInterval"`

	// ItemTimeout bounds the effect calls for one item. Zero means no bound.
	ItemTimeout time.Duration `yaml:"itemTimeout" mapstructure:"itemTimeout"`

	// ItemPacing is the pause after every item, per worker.
	ItemPacing time.Duration `yaml:"itemPacing" mapstructure:"itemPacing"`

	// FailurePause is the extra pause after a failed item.
	FailurePause time.Duration `yaml:"failurePause" mapstructure:"failurePause"`

	// ProgressEvery logs worker progress every N successful items. Zero disables it.
	ProgressEvery int `yaml:"progressEvery" mapstructure:"progressEvery"`

	// ShutdownTimeout is the maximum time to wait for workers to finish their
	// in-flight items after a stop.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" mapstructure:"shutdownTimeout"`

	// KillSwitch starts the controller already stopped. The run reconciles
	// nothing and returns immediately.
	KillSwitch bool `yaml:"killSwitch" mapstructure:"killSwitch"`
}

// DefaultConfig returns a Config with production defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		TargetPartitions:    5,
		MaxPartitions:       DefaultMaxPartitions,
		PartitionNamePrefix: "tenant",
		Partition: PartitionConfig{
			AllowPasswordSignup: true,
		},
		MaxWorkers:      5,
		BatchSize:       3000,
		Mode:            ModeSyncDrain,
		QueueCapacity:   0,
		RoundInterval:   10 * time.Second,
		EmptyBackoff:    2 * time.Second,
		DequeueTimeout:  time.Second,
		IdleInterval:    2 * time.Second,
		ItemTimeout:     30 * time.Second,
		ItemPacing:      50 * time.Millisecond,
		FailurePause:    time.Second,
		ProgressEvery:   100,
		ShutdownTimeout: 30 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// TargetPartitions, MaxWorkers, QueueCapacity, ItemTimeout, ItemPacing,
// FailurePause and ProgressEvery treat zero as a meaningful value and are
// left untouched.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxPartitions == 0 {
		cfg.MaxPartitions = defaults.MaxPartitions
	}
	if cfg.PartitionNamePrefix == "" {
		cfg.PartitionNamePrefix = defaults.PartitionNamePrefix
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}
	if cfg.RoundInterval == 0 {
		cfg.RoundInterval = defaults.RoundInterval
	}
	if cfg.EmptyBackoff == 0 {
		cfg.EmptyBackoff = defaults.EmptyBackoff
	}
	if cfg.DequeueTimeout == 0 {
		cfg.DequeueTimeout = defaults.DequeueTimeout
	}
	if cfg.IdleInterval == 0 {
		cfg.IdleInterval = defaults.IdleInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate checks configuration bounds.
//
// Hard Validation Rules:
//   - 0 <= TargetPartitions <= MaxPartitions
//   - BatchSize > 0
//   - Mode is sync_drain or pipelined
//   - MaxWorkers, BatchSizePerPartition, QueueCapacity and ProgressEvery are not negative
//   - No duration is negative
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.TargetPartitions < 0 {
		return fmt.Errorf("%w: TargetPartitions must be >= 0, got %d", ErrInvalidConfig, cfg.TargetPartitions)
	}
	if cfg.MaxPartitions <= 0 {
		return fmt.Errorf("%w: MaxPartitions must be > 0, got %d", ErrInvalidConfig, cfg.MaxPartitions)
	}
	if cfg.TargetPartitions > cfg.MaxPartitions {
		return fmt.Errorf("%w: %w: %d > %d",
			ErrInvalidConfig, ErrTargetExceedsCeiling, cfg.TargetPartitions, cfg.MaxPartitions)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("%w: BatchSize must be > 0, got %d", ErrInvalidConfig, cfg.BatchSize)
	}
	if err := cfg.Mode.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.MaxWorkers < 0 {
		return fmt.Errorf("%w: MaxWorkers must be >= 0, got %d", ErrInvalidConfig, cfg.MaxWorkers)
	}
	if cfg.BatchSizePerPartition < 0 {
		return fmt.Errorf("%w: BatchSizePerPartition must be >= 0, got %d", ErrInvalidConfig, cfg.BatchSizePerPartition)
	}
	if cfg.QueueCapacity < 0 {
		return fmt.Errorf("%w: QueueCapacity must be >= 0, got %d", ErrInvalidConfig, cfg.QueueCapacity)
	}
	if cfg.ProgressEvery < 0 {
		return fmt.Errorf("%w: ProgressEvery must be >= 0, got %d", ErrInvalidConfig, cfg.ProgressEvery)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"RoundInterval", cfg.RoundInterval},
		{"EmptyBackoff", cfg.EmptyBackoff},
		{"DequeueTimeout", cfg.DequeueTimeout},
		{"IdleInterval", cfg.IdleInterval},
		{"ItemTimeout", cfg.ItemTimeout},
		{"ItemPacing", cfg.ItemPacing},
		{"FailurePause", cfg.FailurePause},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidConfig, d.name, d.d)
		}
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but risky values.
//
// This is called after Validate() in NewController() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Mode == ModePipelined && cfg.QueueCapacity == 0 {
		logger.Warn(
			"pipelined mode with an unbounded queue has no backpressure",
			"mode", cfg.Mode.String(),
			"recommended", "set queueCapacity",
		)
	}

	if cfg.ItemPacing == 0 {
		logger.Warn(
			"ItemPacing is zero, workers call the effect adapter back to back",
			"recommended", "50ms",
		)
	}

	if cfg.ItemTimeout == 0 {
		logger.Warn("ItemTimeout is zero, a hung effect call blocks its worker forever")
	}
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Read or parse error
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses a YAML document and applies defaults.
//
// Keys missing from the document keep their DefaultConfig value, so a zero
// value can still be set explicitly.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, fmt.Errorf("parse config: %w", err))
	}
	SetDefaults(&cfg)

	return cfg, nil
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Pacing and backoff are shortened to milliseconds. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := fanout.TestConfig()
//	cfg.TargetPartitions = 2
//	ctrl, err := fanout.NewController(&cfg, src, dir, eff)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.TargetPartitions = 2
	cfg.MaxWorkers = 0
	cfg.BatchSize = 10
	cfg.RoundInterval = 10 * time.Millisecond
	cfg.EmptyBackoff = 10 * time.Millisecond
	cfg.DequeueTimeout = 10 * time.Millisecond
	cfg.IdleInterval = 5 * time.Millisecond
	cfg.ItemTimeout = time.Second
	cfg.ItemPacing = 0
	cfg.FailurePause = 0
	cfg.ProgressEvery = 0
	cfg.ShutdownTimeout = 2 * time.Second

	return cfg
}
