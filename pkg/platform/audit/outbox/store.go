package outbox

import (
	"context"
	"time"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
)

// Store is the relay's view of the outbox table.
type Store interface {
	// Claim leases up to limit undelivered rows whose attempts are below
	// maxAttempts, skipping rows another relay holds and rows queued behind
	// a leased row of the same application. Rows come back in insertion order.
	Claim(ctx context.Context, limit, maxAttempts int, lease time.Duration) ([]audit.Record, error)
	MarkPublished(ctx context.Context, entryID id.AuditEntryID) error
	// MarkFailed increments the attempt counter, stores cause and drops the lease.
	MarkFailed(ctx context.Context, entryID id.AuditEntryID, cause error) error
	// Release drops the lease without counting an attempt.
	Release(ctx context.Context, entryIDs []id.AuditEntryID) error
}
