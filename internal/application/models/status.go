package models

// Status is the lifecycle state of a job application.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal forward step from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the application still reserves its job window.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// HoldsJob reports whether the application is the job's winner.
func (s Status) HoldsJob() bool {
	return s == StatusAccepted || s == StatusCompleted
}

// ActiveStatuses are the states checked for double-booking.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusAccepted}
}
