package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
	txcontext "jobmatch/pkg/platform/tx"
)

// Store implements audit.Outbox and outbox.Store over the audit_outbox table.
// Append joins the caller's transaction so the entry commits with the
// application change it describes.
type Store struct {
	db *sql.DB
}

// ClaimLockKey is the transaction-scoped advisory lock every Claim holds.
const ClaimLockKey int64 = 0x6a6d2d6f7574626f

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_outbox (id, application_id, applicant_id, job_id, event, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ApplicationID),
		uuid.UUID(entry.ApplicantID),
		uuid.UUID(entry.JobID),
		string(entry.Event),
		entry.Message,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) Claim(ctx context.Context, limit, maxAttempts int, lease time.Duration) ([]audit.Record, error) {
	query := `
		WITH candidates AS (
			SELECT o.id
			FROM audit_outbox o
			WHERE o.published_at IS NULL
			  AND o.attempts < $2
			  AND (o.claimed_until IS NULL OR o.claimed_until < now())
			  AND NOT EXISTS (
				SELECT 1 FROM audit_outbox p
				WHERE p.application_id = o.application_id
				  AND p.published_at IS NULL
				  AND p.attempts < $2
				  AND p.seq < o.seq
				  AND p.claimed_until >= now()
			  )
			ORDER BY o.seq
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE audit_outbox
		SET claimed_until = now() + ($3 * interval '1 millisecond')
		WHERE id IN (SELECT id FROM candidates)
		RETURNING id, application_id, applicant_id, job_id, event, message,
		          occurred_at, seq, attempts, created_at
	`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin outbox claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// claims serialize: each one sees the leases earlier claims committed
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ClaimLockKey); err != nil {
		return nil, fmt.Errorf("lock outbox claim: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, limit, maxAttempts, lease.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var (
			rec                              audit.Record
			entryID, appID, applicant, jobID uuid.UUID
			event                            string
		)
		if err := rows.Scan(&entryID, &appID, &applicant, &jobID, &event, &rec.Entry.Message,
			&rec.Entry.Timestamp, &rec.Seq, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		rec.Entry.ID = id.AuditEntryID(entryID)
		rec.Entry.ApplicationID = id.ApplicationID(appID)
		rec.Entry.ApplicantID = id.ApplicantID(applicant)
		rec.Entry.JobID = id.JobID(jobID)
		rec.Entry.Event = audit.Event(event)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close outbox claim rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outbox claim: %w", err)
	}

	// UPDATE ... RETURNING does not preserve the CTE order.
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

func (s *Store) MarkPublished(ctx context.Context, entryID id.AuditEntryID) error {
	query := `UPDATE audit_outbox SET published_at = now(), claimed_until = NULL, last_error = NULL WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(entryID)); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, entryID id.AuditEntryID, cause error) error {
	query := `
		UPDATE audit_outbox
		SET attempts = attempts + 1, last_error = $2, claimed_until = NULL
		WHERE id = $1
	`
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(entryID), msg); err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, entryIDs []id.AuditEntryID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	ids := make([]string, len(entryIDs))
	for i, e := range entryIDs {
		ids[i] = e.String()
	}
	query := `UPDATE audit_outbox SET claimed_until = NULL WHERE id = ANY($1::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("release outbox entries: %w", err)
	}
	return nil
}

// Pending counts rows that are neither delivered nor parked.
func (s *Store) Pending(ctx context.Context, maxAttempts int) (int, error) {
	var n int
	query := `SELECT count(*) FROM audit_outbox WHERE published_at IS NULL AND attempts < $1`
	if err := s.db.QueryRowContext(ctx, query, maxAttempts).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}
