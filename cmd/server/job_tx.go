package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
	txcontext "jobmatch/pkg/platform/tx"
)

const defaultJobTxTimeout = 5 * time.Second

// jobPostgresTx runs a unit in one transaction holding a transaction-scoped
// advisory lock on the job, so every apply, accept and complete of a job
// serializes while different jobs proceed in parallel.
type jobPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newJobPostgresTx(db *sql.DB, timeout time.Duration) *jobPostgresTx {
	return &jobPostgresTx{db: db, timeout: timeout}
}

func (t *jobPostgresTx) RunInJobTx(ctx context.Context, jobID id.JobID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultJobTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// released automatically at commit or rollback
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, jobID.String()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "timed out waiting for job lock")
		}
		return fmt.Errorf("lock job %s: %w", jobID, err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job tx: %w", err)
	}
	return nil
}
