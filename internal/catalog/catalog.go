// Package catalog is the read-only view of the remote job catalog.
//
// Callers must tell NotFound (the job does not exist) apart from Unavailable
// (the catalog could not answer): the first is a client error, the second
// a dependency outage.
package catalog

import (
	"context"
	"fmt"
	"time"

	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
)

// JobStatus is the publication state the catalog reports for a job. Only
// published jobs take applications; any other value is passed through as is.
type JobStatus string

const JobStatusPublished JobStatus = "published"

var (
	ErrJobNotFound = fmt.Errorf("catalog job: %w", sentinel.ErrNotFound)
	ErrUnavailable = fmt.Errorf("job catalog: %w", sentinel.ErrUnavailable)
)

// JobWindow is the half-open interval [Start, End) of a job.
type JobWindow struct {
	JobID  id.JobID  `json:"job_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status JobStatus `json:"status"`
}

// IsValid reports whether the window is non-empty.
func (w JobWindow) IsValid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two windows share any instant. Windows that only
// touch at an endpoint do not overlap.
func (w JobWindow) Overlaps(other JobWindow) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// AcceptsApplications reports whether the catalog lets applicants apply.
func (w JobWindow) AcceptsApplications() bool {
	return w.Status == JobStatusPublished
}

// Client resolves a job's window. Errors wrap ErrJobNotFound or
// ErrUnavailable.
type Client interface {
	GetJobWindow(ctx context.Context, jobID id.JobID) (JobWindow, error)
}
