package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "jobmatch/pkg/platform/audit"
	"jobmatch/pkg/platform/retry"
)

// Consumer materializes the audit topic into a sink. Offsets are committed
// only after every record of a poll has been written.
type Consumer struct {
	client *kgo.Client
	sink   audit.Sink
	logger *slog.Logger
	policy retry.Policy
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = logger }
}

func WithConsumerRetry(p retry.Policy) ConsumerOption {
	return func(c *Consumer) { c.policy = p }
}

func NewConsumer(brokers []string, topic, group string, sink audit.Sink, opts ...ConsumerOption) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client: client,
		sink:   sink,
		logger: slog.Default(),
		policy: retry.Policy{
			MaxAttempts:    8,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is cancelled. A record that cannot be written after
// all retries stops the consumer without committing, so a restart resumes
// from the last committed offset.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var processed []*kgo.Record
		var runErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if runErr != nil {
				return
			}
			if err := c.handle(ctx, rec); err != nil {
				runErr = err
				return
			}
			processed = append(processed, rec)
		})

		if len(processed) > 0 {
			if err := c.client.CommitRecords(ctx, processed...); err != nil && ctx.Err() == nil {
				c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
			}
		}
		if runErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return runErr
		}
	}
}

func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) error {
	entry, err := decode(rec)
	if err != nil {
		// Malformed records are skipped so they do not block the partition.
		c.logger.ErrorContext(ctx, "skipping malformed audit record",
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
			"key", string(rec.Key),
			"error", err,
		)
		return nil
	}

	err = retry.DoVoid(ctx, c.policy, retry.Always, func(ctx context.Context) error {
		return c.sink.Deliver(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("materialize audit entry %s: %w", entry.ID, err)
	}
	return nil
}

func (c *Consumer) Close() {
	c.client.Close()
}
