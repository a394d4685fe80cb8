package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch/internal/application/models"
	"jobmatch/internal/application/store"
	"jobmatch/internal/catalog"
	catalogmemory "jobmatch/internal/catalog/memory"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
)

type overlapFixture struct {
	store     *store.InMemoryStore
	catalog   *catalogmemory.Catalog
	applicant id.ApplicantID
	base      time.Time
	applied   int
}

func newOverlapFixture() *overlapFixture {
	return &overlapFixture{
		store:     store.NewInMemory(),
		catalog:   catalogmemory.New(),
		applicant: id.ApplicantID(uuid.New()),
		base:      time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *overlapFixture) window(startHour, endHour int) catalog.JobWindow {
	return catalog.JobWindow{
		JobID:  id.JobID(uuid.New()),
		Start:  f.base.Add(time.Duration(startHour) * time.Hour),
		End:    f.base.Add(time.Duration(endHour) * time.Hour),
		Status: catalog.JobStatusPublished,
	}
}

// hold records a pending application for a new job; later holds sort later.
func (f *overlapFixture) hold(t *testing.T, startHour, endHour int) id.JobID {
	t.Helper()
	w := f.window(startHour, endHour)
	f.catalog.Put(w)
	f.applied++
	app, err := models.NewJobApplication(id.NewApplicationID(), w.JobID, f.applicant, f.base.Add(time.Duration(f.applied)*time.Second))
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), app))
	return w.JobID
}

func (f *overlapFixture) detector(limit int, policy OverlapPolicy) *OverlapDetector {
	return NewOverlapDetector(f.store, f.catalog, limit, policy, discardLogger(), nil)
}

func TestOverlapDetector_HasConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("no held jobs never calls the catalog", func(t *testing.T) {
		f := newOverlapFixture()
		got, err := f.detector(4, OverlapFailOpen).HasConflict(ctx, f.applicant, f.window(1, 2))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("detects overlap among many held jobs", func(t *testing.T) {
		f := newOverlapFixture()
		for i := 0; i < 10; i++ {
			f.hold(t, i*10, i*10+5)
		}
		d := f.detector(3, OverlapFailOpen)

		got, err := d.HasConflict(ctx, f.applicant, f.window(44, 46))
		require.NoError(t, err)
		assert.True(t, got)

		got, err = d.HasConflict(ctx, f.applicant, f.window(45, 50))
		require.NoError(t, err)
		assert.False(t, got, "touching endpoints do not overlap")
	})

	t.Run("first overlap cancels queued lookups", func(t *testing.T) {
		f := newOverlapFixture()
		first := f.hold(t, 0, 10)
		second := f.hold(t, 20, 30)
		third := f.hold(t, 40, 50)

		got, err := f.detector(1, OverlapFailOpen).HasConflict(ctx, f.applicant, f.window(5, 6))
		require.NoError(t, err)
		assert.True(t, got)
		assert.Equal(t, 1, f.catalog.Calls(first))
		assert.Zero(t, f.catalog.Calls(second))
		assert.Zero(t, f.catalog.Calls(third))
	})

	t.Run("fail open skips an unreachable held job", func(t *testing.T) {
		f := newOverlapFixture()
		down := f.hold(t, 0, 10)
		f.catalog.Fail(down, catalog.ErrUnavailable)

		got, err := f.detector(4, OverlapFailOpen).HasConflict(ctx, f.applicant, f.window(5, 6))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("fail closed reports an unreachable held job as unavailable", func(t *testing.T) {
		f := newOverlapFixture()
		down := f.hold(t, 0, 10)
		f.catalog.Fail(down, catalog.ErrJobNotFound)

		_, err := f.detector(4, OverlapFailClosed).HasConflict(ctx, f.applicant, f.window(50, 60))
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("overlap wins over a failing lookup", func(t *testing.T) {
		f := newOverlapFixture()
		f.hold(t, 0, 10)
		down := f.hold(t, 20, 30)
		f.catalog.Fail(down, catalog.ErrUnavailable)

		got, err := f.detector(1, OverlapFailClosed).HasConflict(ctx, f.applicant, f.window(5, 6))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("cancelled caller is unavailable", func(t *testing.T) {
		f := newOverlapFixture()
		f.hold(t, 0, 10)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.detector(4, OverlapFailOpen).HasConflict(cancelled, f.applicant, f.window(50, 60))
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestParseOverlapPolicy(t *testing.T) {
	p, err := ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverlapFailOpen, p)

	p, err = ParseOverlapPolicy("fail_closed")
	require.NoError(t, err)
	assert.Equal(t, OverlapFailClosed, p)

	_, err = ParseOverlapPolicy("fail_sometimes")
	assert.Error(t, err)
}

type failingLister struct{ err error }

func (l failingLister) ListActiveByApplicant(context.Context, id.ApplicantID) ([]*models.JobApplication, error) {
	return nil, l.err
}

func TestOverlapDetector_StoreFailure(t *testing.T) {
	boom := errors.New("db down")
	d := NewOverlapDetector(failingLister{err: boom}, catalogmemory.New(), 0, "", nil, nil)
	_, err := d.HasConflict(context.Background(), id.ApplicantID(uuid.New()), catalog.JobWindow{})
	assert.ErrorIs(t, err, boom)
}
