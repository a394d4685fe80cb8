package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"jobmatch/internal/application/models"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
	txcontext "jobmatch/pkg/platform/tx"
)

const uniqueViolation = "23505"

const selectColumns = `id, job_id, applicant_id, status, feedback, applied_at, accepted_at, completed_at`

// PostgresStore keeps applications in job_applications. Queries run in the
// transaction carried by ctx when there is one; the *ForUpdate reads only
// lock rows inside such a transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.JobApplication, error) {
	var (
		app                   models.JobApplication
		appID, jobID, userID  uuid.UUID
		status                string
		feedback              sql.NullString
		acceptedAt, completed sql.NullTime
	)
	if err := row.Scan(&appID, &jobID, &userID, &status, &feedback, &app.AppliedAt, &acceptedAt, &completed); err != nil {
		return nil, err
	}
	app.ID = id.ApplicationID(appID)
	app.JobID = id.JobID(jobID)
	app.ApplicantID = id.ApplicantID(userID)
	app.Status = models.Status(status)
	if feedback.Valid {
		f := feedback.String
		app.Feedback = &f
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		app.AcceptedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		app.CompletedAt = &t
	}
	return &app, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.JobApplication, error) {
	app, err := scanApplication(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.JobApplication, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	out := []*models.JobApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *PostgresStore) Create(ctx context.Context, app *models.JobApplication) error {
	query := `
		INSERT INTO job_applications (id, job_id, applicant_id, status, feedback, applied_at, accepted_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		uuid.UUID(app.JobID),
		uuid.UUID(app.ApplicantID),
		string(app.Status),
		nullString(app.Feedback),
		app.AppliedAt,
		nullTime(app.AcceptedAt),
		nullTime(app.CompletedAt),
	)
	if err != nil {
		return mapWriteError(err, "insert application")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM job_applications WHERE id = $1`, uuid.UUID(appID))
}

func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM job_applications WHERE id = $1 FOR UPDATE`, uuid.UUID(appID))
}

func (s *PostgresStore) FindPendingForUpdate(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID) (*models.JobApplication, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM job_applications
		WHERE job_id = $1 AND applicant_id = $2 AND status = 'pending'
		ORDER BY applied_at
		LIMIT 1
		FOR UPDATE
	`
	return s.queryOne(ctx, query, uuid.UUID(jobID), uuid.UUID(applicantID))
}

func (s *PostgresStore) Update(ctx context.Context, app *models.JobApplication) error {
	query := `
		UPDATE job_applications
		SET status = $2, feedback = $3, accepted_at = $4, completed_at = $5
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		string(app.Status),
		nullString(app.Feedback),
		nullTime(app.AcceptedAt),
		nullTime(app.CompletedAt),
	)
	if err != nil {
		return mapWriteError(err, "update application")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RejectPendingSiblings(ctx context.Context, jobID id.JobID, winner id.ApplicationID) ([]*models.JobApplication, error) {
	query := `
		UPDATE job_applications
		SET status = 'rejected'
		WHERE job_id = $1 AND status = 'pending' AND id <> $2
		RETURNING ` + selectColumns
	rejected, err := s.queryMany(ctx, query, uuid.UUID(jobID), uuid.UUID(winner))
	if err != nil {
		return nil, err
	}
	sortByAppliedAt(rejected)
	return rejected, nil
}

func (s *PostgresStore) HasWinner(ctx context.Context, jobID id.JobID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM job_applications WHERE job_id = $1 AND status IN ('accepted', 'completed'))`
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(jobID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check job winner: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListActiveByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error) {
	active := models.ActiveStatuses()
	statuses := make([]string, len(active))
	for i, st := range active {
		statuses[i] = string(st)
	}
	query := `
		SELECT ` + selectColumns + `
		FROM job_applications
		WHERE applicant_id = $1 AND status = ANY($2::text[])
		ORDER BY applied_at, id
	`
	return s.queryMany(ctx, query, uuid.UUID(applicantID), pq.Array(statuses))
}

func (s *PostgresStore) ListByJob(ctx context.Context, jobID id.JobID) ([]*models.JobApplication, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM job_applications WHERE job_id = $1 ORDER BY applied_at, id`, uuid.UUID(jobID))
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM job_applications WHERE applicant_id = $1 ORDER BY applied_at, id`, uuid.UUID(applicantID))
}
