package audit

import (
	"time"

	id "jobmatch/pkg/domain"
)

// Event names one observed application transition.
type Event string

const (
	EventApplied   Event = "applied"
	EventAccepted  Event = "accepted"
	EventRejected  Event = "rejected"
	EventCompleted Event = "completed"
)

func (e Event) IsValid() bool {
	switch e {
	case EventApplied, EventAccepted, EventRejected, EventCompleted:
		return true
	}
	return false
}

// Entry is the append-only log record handed to sinks. Its ID is assigned
// when the entry is recorded and stays stable across redeliveries, so sinks
// deduplicate on it.
type Entry struct {
	ID            id.AuditEntryID  `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ApplicantID   id.ApplicantID   `json:"applicant_id"`
	JobID         id.JobID         `json:"job_id"`
	Event         Event            `json:"event"`
	Message       string           `json:"message,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// LogEntry is an Entry as materialized by a queryable sink.
type LogEntry struct {
	Entry
	Seen bool `json:"seen"`
}

// Record is an outbox row claimed for delivery.
type Record struct {
	Entry     Entry
	Seq       int64
	Attempts  int
	CreatedAt time.Time
}
