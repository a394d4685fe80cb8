// Package audit records application transitions into a transactional outbox
// and defines the sinks a relay delivers them to.
//
// Services call Emitter.Record inside the same transaction that changes the
// application row, so an entry exists if and only if the transition
// committed. Delivery to a Sink happens later in outbox.Relay and is retried
// until it succeeds or the row is parked.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	id "jobmatch/pkg/domain"
	"jobmatch/pkg/requestcontext"
)

// Outbox accepts entries for later delivery. Implementations must write
// through the transaction carried in ctx when there is one.
type Outbox interface {
	Append(ctx context.Context, entry Entry) error
}

// Sink is a delivery target. Deliver must be idempotent on Entry.ID.
type Sink interface {
	Deliver(ctx context.Context, entry Entry) error
}

var ErrInvalidEntry = errors.New("invalid audit entry")

// Emitter validates entries and appends them to the outbox. Writes are
// synchronous: when Record fails the caller must fail (and roll back) too.
type Emitter struct {
	outbox  Outbox
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Emitter) {
		e.metrics = m
	}
}

func NewEmitter(outbox Outbox, opts ...Option) *Emitter {
	e := &Emitter{outbox: outbox}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Record fills in ID and Timestamp when unset and appends the entry.
func (e *Emitter) Record(ctx context.Context, entry Entry) error {
	start := time.Now()

	if err := validate(entry); err != nil {
		return err
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}

	if err := e.outbox.Append(ctx, entry); err != nil {
		if e.metrics != nil {
			e.metrics.IncRecordFailures()
		}
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "audit outbox append failed",
				"event", entry.Event,
				"application_id", entry.ApplicationID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return fmt.Errorf("append audit entry: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ObserveRecordDuration(time.Since(start).Seconds())
		e.metrics.IncRecorded(entry.Event)
	}
	return nil
}

func validate(entry Entry) error {
	if !entry.Event.IsValid() {
		return fmt.Errorf("%w: unknown event %q", ErrInvalidEntry, entry.Event)
	}
	if entry.ApplicationID.IsNil() {
		return fmt.Errorf("%w: application id is required", ErrInvalidEntry)
	}
	if entry.JobID.IsNil() || entry.ApplicantID.IsNil() {
		return fmt.Errorf("%w: job and applicant ids are required", ErrInvalidEntry)
	}
	return nil
}

// LogStore is a sink whose deliveries can be read back per applicant.
type LogStore interface {
	Sink
	// ListByApplicant returns the applicant's entries, newest first.
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]LogEntry, error)
	// MarkSeen flags every unseen entry of the applicant and returns how many changed.
	MarkSeen(ctx context.Context, applicantID id.ApplicantID) (int, error)
}
