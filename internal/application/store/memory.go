// Package store persists job applications.
//
// Both implementations return copies; callers mutate their copy and write it
// back with Update. Neither store takes the job lock itself: callers hold it
// through service.JobTx.
package store

import (
	"context"
	"sort"
	"sync"

	"jobmatch/internal/application/models"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.JobApplication
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{apps: make(map[id.ApplicationID]*models.JobApplication)}
}

func clone(a *models.JobApplication) *models.JobApplication {
	c := *a
	if a.AcceptedAt != nil {
		t := *a.AcceptedAt
		c.AcceptedAt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		c.CompletedAt = &t
	}
	if a.Feedback != nil {
		f := *a.Feedback
		c.Feedback = &f
	}
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, app *models.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrConflict
	}
	if app.Status.HoldsJob() && s.hasWinnerLocked(app.JobID) {
		return sentinel.ErrConflict
	}
	s.apps[app.ID] = clone(app)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(app), nil
}

// FindByIDForUpdate behaves like FindByID; the caller's job lock provides
// the row lock.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	return s.FindByID(ctx, appID)
}

func (s *InMemoryStore) FindPendingForUpdate(_ context.Context, jobID id.JobID, applicantID id.ApplicantID) (*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.JobID == jobID && app.ApplicantID == applicantID && app.Status == models.StatusPending {
			return clone(app), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, app *models.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.apps[app.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if app.Status.HoldsJob() && !current.Status.HoldsJob() && s.hasWinnerLocked(app.JobID) {
		return sentinel.ErrConflict
	}
	s.apps[app.ID] = clone(app)
	return nil
}

func (s *InMemoryStore) RejectPendingSiblings(_ context.Context, jobID id.JobID, winner id.ApplicationID) ([]*models.JobApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rejected []*models.JobApplication
	for _, app := range s.apps {
		if app.JobID != jobID || app.ID == winner || app.Status != models.StatusPending {
			continue
		}
		if err := app.Reject(); err != nil {
			return nil, err
		}
		rejected = append(rejected, clone(app))
	}
	sortByAppliedAt(rejected)
	return rejected, nil
}

func (s *InMemoryStore) HasWinner(_ context.Context, jobID id.JobID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasWinnerLocked(jobID), nil
}

func (s *InMemoryStore) hasWinnerLocked(jobID id.JobID) bool {
	for _, app := range s.apps {
		if app.JobID == jobID && app.Status.HoldsJob() {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) ListActiveByApplicant(_ context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error) {
	return s.filter(func(a *models.JobApplication) bool {
		return a.ApplicantID == applicantID && a.Status.IsActive()
	}), nil
}

func (s *InMemoryStore) ListByJob(_ context.Context, jobID id.JobID) ([]*models.JobApplication, error) {
	return s.filter(func(a *models.JobApplication) bool { return a.JobID == jobID }), nil
}

func (s *InMemoryStore) ListByApplicant(_ context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error) {
	return s.filter(func(a *models.JobApplication) bool { return a.ApplicantID == applicantID }), nil
}

func (s *InMemoryStore) filter(keep func(*models.JobApplication) bool) []*models.JobApplication {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.JobApplication{}
	for _, app := range s.apps {
		if keep(app) {
			out = append(out, clone(app))
		}
	}
	sortByAppliedAt(out)
	return out
}

func sortByAppliedAt(apps []*models.JobApplication) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].AppliedAt.Equal(apps[j].AppliedAt) {
			return apps[i].ID.String() < apps[j].ID.String()
		}
		return apps[i].AppliedAt.Before(apps[j].AppliedAt)
	})
}
