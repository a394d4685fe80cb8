package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
)

type row struct {
	rec          audit.Record
	lastError    string
	claimedUntil time.Time
	published    bool
}

// InMemoryStore is an outbox for tests and dev mode. It mirrors the postgres
// claim semantics, including leases and per-application ordering.
type InMemoryStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	rows  []*row
	byID  map[id.AuditEntryID]*row
	seq   int64
}

func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryStore{clock: clock, byID: make(map[id.AuditEntryID]*row)}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[entry.ID]; ok {
		return fmt.Errorf("duplicate outbox entry %s", entry.ID)
	}
	s.seq++
	r := &row{rec: audit.Record{Entry: entry, Seq: s.seq, CreatedAt: s.clock.Now()}}
	s.rows = append(s.rows, r)
	s.byID[entry.ID] = r
	return nil
}

func (s *InMemoryStore) Claim(_ context.Context, limit, maxAttempts int, lease time.Duration) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	leasedApps := make(map[id.ApplicationID]bool)
	var claimed []audit.Record
	for _, r := range s.rows {
		if len(claimed) >= limit {
			break
		}
		if r.published || r.rec.Attempts >= maxAttempts {
			continue
		}
		app := r.rec.Entry.ApplicationID
		if !r.claimedUntil.IsZero() && !now.After(r.claimedUntil) {
			leasedApps[app] = true
			continue
		}
		if leasedApps[app] {
			continue
		}
		r.claimedUntil = now.Add(lease)
		claimed = append(claimed, r.rec)
	}
	return claimed, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, entryID id.AuditEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[entryID]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}
	r.published = true
	r.claimedUntil = time.Time{}
	r.lastError = ""
	return nil
}

func (s *InMemoryStore) MarkFailed(_ context.Context, entryID id.AuditEntryID, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[entryID]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}
	r.rec.Attempts++
	r.claimedUntil = time.Time{}
	if cause != nil {
		r.lastError = cause.Error()
	}
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, entryIDs []id.AuditEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entryIDs {
		if r, ok := s.byID[e]; ok {
			r.claimedUntil = time.Time{}
		}
	}
	return nil
}

// Entries returns every appended entry in insertion order.
func (s *InMemoryStore) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.rec.Entry)
	}
	return out
}

// Pending counts rows that are neither delivered nor parked.
func (s *InMemoryStore) Pending(_ context.Context, maxAttempts int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if !r.published && r.rec.Attempts < maxAttempts {
			n++
		}
	}
	return n, nil
}

// LastError returns the stored delivery error of an entry.
func (s *InMemoryStore) LastError(entryID id.AuditEntryID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byID[entryID]; ok {
		return r.lastError
	}
	return ""
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.byID = make(map[id.AuditEntryID]*row)
}
