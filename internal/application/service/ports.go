package service

import (
	"context"

	"jobmatch/internal/application/models"
	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks CatalogClient,AuditEmitter,LogReader

// Store persists applications. Reads ending in ForUpdate lock the row when
// the call runs inside a JobTx.
type Store interface {
	Create(ctx context.Context, app *models.JobApplication) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	FindPendingForUpdate(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID) (*models.JobApplication, error)
	Update(ctx context.Context, app *models.JobApplication) error
	RejectPendingSiblings(ctx context.Context, jobID id.JobID, winner id.ApplicationID) ([]*models.JobApplication, error)
	HasWinner(ctx context.Context, jobID id.JobID) (bool, error)
	ListActiveByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error)
	ListByJob(ctx context.Context, jobID id.JobID) ([]*models.JobApplication, error)
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error)
}

// CatalogClient resolves job windows. See catalog.Client for the error contract.
type CatalogClient interface {
	GetJobWindow(ctx context.Context, jobID id.JobID) (catalog.JobWindow, error)
}

// AuditEmitter writes an entry through the transaction carried by ctx.
type AuditEmitter interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// LogReader serves the applicant-facing activity log.
type LogReader interface {
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]audit.LogEntry, error)
	MarkSeen(ctx context.Context, applicantID id.ApplicantID) (int, error)
}

// JobTx runs fn as one atomic unit that excludes every other unit of the
// same job. fn must use the ctx it is given.
type JobTx interface {
	RunInJobTx(ctx context.Context, jobID id.JobID, fn func(ctx context.Context) error) error
}
