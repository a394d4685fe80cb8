// Package logstore materializes audit entries into the job_application_logs
// table. Writes are idempotent on entry id.
package logstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Deliver(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO job_application_logs (id, application_id, applicant_id, job_id, event, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ApplicationID),
		uuid.UUID(entry.ApplicantID),
		uuid.UUID(entry.JobID),
		string(entry.Event),
		entry.Message,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert application log: %w", err)
	}
	return nil
}

func (s *Store) ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]audit.LogEntry, error) {
	query := `
		SELECT id, application_id, applicant_id, job_id, event, message, occurred_at, seen
		FROM job_application_logs
		WHERE applicant_id = $1
		ORDER BY occurred_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(applicantID))
	if err != nil {
		return nil, fmt.Errorf("query application logs: %w", err)
	}
	defer rows.Close()

	var out []audit.LogEntry
	for rows.Next() {
		var (
			e                                audit.LogEntry
			entryID, appID, applicant, jobID uuid.UUID
			event                            string
		)
		if err := rows.Scan(&entryID, &appID, &applicant, &jobID, &event, &e.Message, &e.Timestamp, &e.Seen); err != nil {
			return nil, fmt.Errorf("scan application log: %w", err)
		}
		e.ID = id.AuditEntryID(entryID)
		e.ApplicationID = id.ApplicationID(appID)
		e.ApplicantID = id.ApplicantID(applicant)
		e.JobID = id.JobID(jobID)
		e.Event = audit.Event(event)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application logs: %w", err)
	}
	return out, nil
}

func (s *Store) MarkSeen(ctx context.Context, applicantID id.ApplicantID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_application_logs SET seen = true WHERE applicant_id = $1 AND NOT seen`,
		uuid.UUID(applicantID))
	if err != nil {
		return 0, fmt.Errorf("mark application logs seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark application logs seen: %w", err)
	}
	return int(n), nil
}
