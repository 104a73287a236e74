package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/natsutil"
	"github.com/arloliu/fanout/internal/retry"
	"github.com/arloliu/fanout/types"
)

// JetStreamConfig configures the JetStream item source.
type JetStreamConfig struct {
	// Stream is the name of the stream holding work items (required).
	Stream string `yaml:"stream" mapstructure:"stream"`

	// Consumer is the durable consumer name (default: "fanout").
	Consumer string `yaml:"consumer" mapstructure:"consumer"`

	// FilterSubject restricts the consumer to one subject (optional).
	FilterSubject string `yaml:"filterSubject" mapstructure:"filterSubject"`

	// FetchWait bounds how long one fetch waits for messages (default: 1s).
	FetchWait time.Duration `yaml:"fetchWait" mapstructure:"fetchWait"`

	// AckWait is how long the server waits for an ack before redelivery (default: 30s).
	AckWait time.Duration `yaml:"ackWait" mapstructure:"ackWait"`
}

func (c *JetStreamConfig) applyDefaults() {
	if c.Consumer == "" {
		c.Consumer = "fanout"
	}
	if c.FetchWait <= 0 {
		c.FetchWait = time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
}

// JetStream claims items from a durable JetStream pull consumer.
//
// Each message body is one work item. A message is acked as soon as it is
// fetched, which is the claim: the engine never hands it out again even if
// its effect later fails.
type JetStream struct {
	cfg      JetStreamConfig
	consumer jetstream.Consumer
	logger   types.Logger
}

var _ types.ItemSource = (*JetStream)(nil)

// NewJetStream creates (or updates) the durable consumer and returns the source.
//
// Parameters:
//   - ctx: Context for the consumer creation
//   - js: JetStream handle
//   - cfg: Stream and consumer settings
//   - logger: Optional logger (nil for none)
//
// Returns:
//   - *JetStream: Initialized source
//   - error: Configuration or JetStream API error after retries
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	src, err := source.NewJetStream(ctx, js, source.JetStreamConfig{Stream: "WORK"}, nil)
//	if err != nil { /* handle */ }
func NewJetStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig, logger types.Logger) (*JetStream, error) {
	if cfg.Stream == "" {
		return nil, errors.New("jetstream source: stream is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	durable := sanitizeConsumerName(cfg.Consumer)
	consumerCfg := jetstream.ConsumerConfig{
		Name:          durable,
		Durable:       durable,
		FilterSubject: cfg.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	var cons jetstream.Consumer
	policy := retry.DefaultPolicy()
	policy.Retryable = natsutil.IsConnectivityError
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		cons, err = js.CreateOrUpdateConsumer(ctx, cfg.Stream, consumerCfg)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s on stream %s: %w", durable, cfg.Stream, err)
	}

	logger.Info("jetstream source ready", "stream", cfg.Stream, "consumer", durable)

	return &JetStream{cfg: cfg, consumer: cons, logger: logger}, nil
}

// FetchBatch pulls up to maxCount messages, waiting at most FetchWait.
//
// Returns:
//   - []types.WorkItem: Claimed items (empty when nothing arrived in time)
//   - error: Fetch error; connectivity errors wrap ErrTransient
func (s *JetStream) FetchBatch(ctx context.Context, maxCount int) ([]types.WorkItem, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wait := s.cfg.FetchWait
	if deadline, ok := ctx.Deadline(); ok {
		wait = min(wait, time.Until(deadline))
	}

	batch, err := s.consumer.Fetch(maxCount, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, natsutil.Transient(fmt.Errorf("fetch: %w", err))
	}

	items := make([]types.WorkItem, 0, maxCount)
	for msg := range batch.Messages() {
		if err := msg.Ack(); err != nil {
			// Not acked means not claimed: the server redelivers it later.
			s.logger.Warn("ack failed, message left for redelivery", "subject", msg.Subject(), "error", err)

			continue
		}

		item := strings.TrimSpace(string(msg.Data()))
		if item == "" {
			s.logger.Warn("skipping empty work item", "subject", msg.Subject())

			continue
		}
		items = append(items, types.WorkItem(item))
	}

	if err := batch.Error(); err != nil && !isFetchTimeout(err) {
		if len(items) > 0 {
			s.logger.Warn("fetch ended with error, returning partial batch", "claimed", len(items), "error", err)

			return items, nil
		}

		return nil, natsutil.Transient(fmt.Errorf("fetch: %w", err))
	}

	return items, nil
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jetstream.ErrNoMessages)
}

// sanitizeConsumerName replaces characters not allowed in consumer names.
func sanitizeConsumerName(name string) string {
	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r == '.' || r == '*' || r == '>' ||
			r == '/' || r == '\\' ||
			r < 32 || r == 127 {
			result.WriteRune('_')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
