package models

import (
	"time"

	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
)

// JobApplication is one applicant's bid for one job.
//
// Invariants:
//   - Status only moves forward: pending -> accepted -> completed, or
//     pending -> rejected (terminal)
//   - AcceptedAt is set exactly when the application is accepted, CompletedAt
//     exactly when it is completed
//   - AppliedAt <= AcceptedAt <= CompletedAt; a transition timestamp earlier
//     than its predecessor is clamped up to it
//   - Feedback is only set on completion
type JobApplication struct {
	ID          id.ApplicationID `json:"id"`
	JobID       id.JobID         `json:"job_id"`
	ApplicantID id.ApplicantID   `json:"applicant_id"`
	Status      Status           `json:"status"`
	AppliedAt   time.Time        `json:"applied_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Feedback    *string          `json:"feedback,omitempty"`
}

func NewJobApplication(appID id.ApplicationID, jobID id.JobID, applicantID id.ApplicantID, now time.Time) (*JobApplication, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id is required")
	}
	if jobID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "job id is required")
	}
	if applicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant id is required")
	}
	return &JobApplication{
		ID:          appID,
		JobID:       jobID,
		ApplicantID: applicantID,
		Status:      StatusPending,
		AppliedAt:   now,
	}, nil
}

// CanAccept checks the pending -> accepted transition.
func (a *JobApplication) CanAccept() error {
	if !a.Status.CanTransitionTo(StatusAccepted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "application is not pending")
	}
	return nil
}

// Accept marks the application as the job's winner.
func (a *JobApplication) Accept(now time.Time) error {
	if err := a.CanAccept(); err != nil {
		return err
	}
	at := clamp(now, a.AppliedAt)
	a.Status = StatusAccepted
	a.AcceptedAt = &at
	return nil
}

// Reject closes a pending application that lost to a sibling.
func (a *JobApplication) Reject() error {
	if !a.Status.CanTransitionTo(StatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "application is not pending")
	}
	a.Status = StatusRejected
	return nil
}

// CanComplete checks the accepted -> completed transition.
func (a *JobApplication) CanComplete() error {
	if !a.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "application is not accepted")
	}
	return nil
}

// Complete closes an accepted application. An empty feedback is stored as nil.
func (a *JobApplication) Complete(now time.Time, feedback string) error {
	if err := a.CanComplete(); err != nil {
		return err
	}
	floor := a.AppliedAt
	if a.AcceptedAt != nil {
		floor = *a.AcceptedAt
	}
	at := clamp(now, floor)
	a.Status = StatusCompleted
	a.CompletedAt = &at
	if feedback != "" {
		a.Feedback = &feedback
	}
	return nil
}

func clamp(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
