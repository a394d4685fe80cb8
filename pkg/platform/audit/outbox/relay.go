// Package outbox delivers recorded audit entries to a sink.
//
// The relay runs independently of request handling. Each tick it claims a
// batch, delivers entries in insertion order with retries, and stops an
// application's share of the batch at its first failure so a later entry
// never overtakes an earlier one.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
	"jobmatch/pkg/platform/retry"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 10
	defaultLease        = 30 * time.Second
)

type Relay struct {
	store       Store
	sink        audit.Sink
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *Metrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
	lease       time.Duration
	policy      retry.Policy
}

type Option func(*Relay)

func WithClock(c clockwork.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxAttempts bounds how many delivery rounds an entry gets before it is
// parked for manual inspection.
func WithMaxAttempts(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithLease(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

// WithRetryPolicy sets the in-round retry policy for a single delivery.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Relay) { r.policy = p }
}

func NewRelay(store Store, sink audit.Sink, opts ...Option) *Relay {
	r := &Relay{
		store:       store,
		sink:        sink,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		interval:    defaultPollInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		lease:       defaultLease,
		policy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started",
		"interval", r.interval,
		"batch_size", r.batchSize,
	)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.Chan():
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox flush failed", "error", err)
			}
		}
	}
}

// Flush claims one batch and delivers it. It returns the number of entries
// delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.Claim(ctx, r.batchSize, r.maxAttempts, r.lease)
	if err != nil {
		return 0, err
	}

	delivered := 0
	blocked := make(map[id.ApplicationID]bool)
	var held []id.AuditEntryID

	for i, rec := range records {
		if ctx.Err() != nil {
			for _, rest := range records[i:] {
				held = append(held, rest.Entry.ID)
			}
			break
		}
		app := rec.Entry.ApplicationID
		if blocked[app] {
			held = append(held, rec.Entry.ID)
			continue
		}

		err := retry.DoVoid(ctx, r.policy, classify, func(ctx context.Context) error {
			return r.sink.Deliver(ctx, rec.Entry)
		})
		if err != nil {
			blocked[app] = true
			if ctx.Err() != nil {
				held = append(held, rec.Entry.ID)
				continue
			}
			r.recordFailure(ctx, rec, err)
			continue
		}

		if err := r.store.MarkPublished(ctx, rec.Entry.ID); err != nil {
			// The sink already has it; redelivery is absorbed by its idempotency.
			r.logger.ErrorContext(ctx, "mark outbox entry published failed",
				"entry_id", rec.Entry.ID,
				"error", err,
			)
			blocked[app] = true
			continue
		}
		delivered++
		if r.metrics != nil {
			r.metrics.IncDelivered()
			r.metrics.ObserveLag(r.clock.Since(rec.CreatedAt).Seconds())
		}
	}

	if len(held) > 0 {
		if err := r.store.Release(context.WithoutCancel(ctx), held); err != nil {
			r.logger.WarnContext(ctx, "release outbox entries failed", "count", len(held), "error", err)
		}
	}
	return delivered, nil
}

func (r *Relay) recordFailure(ctx context.Context, rec audit.Record, cause error) {
	if r.metrics != nil {
		r.metrics.IncFailed()
	}
	if err := r.store.MarkFailed(ctx, rec.Entry.ID, cause); err != nil {
		r.logger.ErrorContext(ctx, "mark outbox entry failed errored",
			"entry_id", rec.Entry.ID,
			"error", err,
		)
		return
	}

	attempts := rec.Attempts + 1
	if attempts >= r.maxAttempts {
		if r.metrics != nil {
			r.metrics.IncParked()
		}
		r.logger.ErrorContext(ctx, "outbox entry parked after repeated delivery failures",
			"entry_id", rec.Entry.ID,
			"application_id", rec.Entry.ApplicationID,
			"event", rec.Entry.Event,
			"attempts", attempts,
			"error", cause,
		)
		return
	}
	r.logger.WarnContext(ctx, "audit delivery failed, will retry",
		"entry_id", rec.Entry.ID,
		"application_id", rec.Entry.ApplicationID,
		"attempts", attempts,
		"error", cause,
	)
}

func classify(err error) retry.Action {
	if errors.Is(err, audit.ErrInvalidEntry) {
		return retry.Stop
	}
	return retry.Retry
}
