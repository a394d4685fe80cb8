// Package memory is an in-process audit.LogStore for tests and dev mode.
package memory

import (
	"context"
	"sort"
	"sync"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
)

type Sink struct {
	mu      sync.RWMutex
	entries map[id.AuditEntryID]*audit.LogEntry
	order   []id.AuditEntryID
	failFn  func(audit.Entry) error
}

func New() *Sink {
	return &Sink{entries: make(map[id.AuditEntryID]*audit.LogEntry)}
}

// FailWith makes Deliver return fn's error for entries where it is non-nil.
// Passing nil clears the hook.
func (s *Sink) FailWith(fn func(audit.Entry) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

func (s *Sink) Deliver(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFn != nil {
		if err := s.failFn(entry); err != nil {
			return err
		}
	}
	if _, ok := s.entries[entry.ID]; ok {
		return nil
	}
	s.entries[entry.ID] = &audit.LogEntry{Entry: entry}
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *Sink) ListByApplicant(_ context.Context, applicantID id.ApplicantID) ([]audit.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.LogEntry
	for _, eid := range s.order {
		if e := s.entries[eid]; e.ApplicantID == applicantID {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *Sink) MarkSeen(_ context.Context, applicantID id.ApplicantID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ApplicantID == applicantID && !e.Seen {
			e.Seen = true
			n++
		}
	}
	return n, nil
}

// Delivered returns all delivered entries in delivery order.
func (s *Sink) Delivered() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, 0, len(s.order))
	for _, eid := range s.order {
		out = append(out, s.entries[eid].Entry)
	}
	return out
}
