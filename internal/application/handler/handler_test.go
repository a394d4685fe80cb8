package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"jobmatch/internal/application/handler/mocks"
	"jobmatch/internal/application/models"
	"jobmatch/internal/application/service"
	"jobmatch/internal/application/store"
	"jobmatch/internal/catalog"
	catalogmemory "jobmatch/internal/catalog/memory"
	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
	"jobmatch/pkg/platform/audit"
	sinkmemory "jobmatch/pkg/platform/audit/sink/memory"
	outboxmemory "jobmatch/pkg/platform/audit/store/memory"
	"jobmatch/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.now = time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
}

func (s *HandlerSuite) pending(jobID id.JobID, applicantID id.ApplicantID) *models.JobApplication {
	return &models.JobApplication{
		ID:          id.NewApplicationID(),
		JobID:       jobID,
		ApplicantID: applicantID,
		Status:      models.StatusPending,
		AppliedAt:   s.now,
	}
}

func (s *HandlerSuite) TestApply() {
	jobID := id.JobID(uuid.New())
	applicantID := id.ApplicantID(uuid.New())

	s.Run("creates the application", func() {
		app := s.pending(jobID, applicantID)
		s.svc.EXPECT().Apply(gomock.Any(), jobID, applicantID, "I can start early").Return(app, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications",
			ApplyRequest{ApplicantID: applicantID.String(), Message: "  I can start early "})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		env := testutil.DecodeEnvelope[models.JobApplication](s.T(), rr)
		s.Equal("success", env.Status)
		s.Equal(app.ID, env.Data.ID)
		s.Equal(models.StatusPending, env.Data.Status)
	})

	s.Run("overlap is a conflict", func() {
		s.svc.EXPECT().Apply(gomock.Any(), jobID, applicantID, "").
			Return(nil, dErrors.New(dErrors.CodeConflict, "applicant already holds an overlapping job"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications",
			ApplyRequest{ApplicantID: applicantID.String()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("catalog outage is unavailable", func() {
		s.svc.EXPECT().Apply(gomock.Any(), jobID, applicantID, "").
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "job catalog unavailable"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications",
			ApplyRequest{ApplicantID: applicantID.String()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})

	s.Run("malformed job id never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/not-a-uuid/applications",
			ApplyRequest{ApplicantID: applicantID.String()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("missing applicant is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications", ApplyRequest{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("oversized message is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications",
			ApplyRequest{ApplicantID: applicantID.String(), Message: strings.Repeat("a", maxMessageLength+1)})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("broken JSON is a bad request", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/jobs/"+jobID.String()+"/applications", `{"applicant_id":`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestAccept() {
	jobID := id.JobID(uuid.New())
	applicantID := id.ApplicantID(uuid.New())
	path := "/jobs/" + jobID.String() + "/applications/accept"

	s.Run("returns the accepted application", func() {
		app := s.pending(jobID, applicantID)
		accepted := s.now.Add(time.Hour)
		app.Status = models.StatusAccepted
		app.AcceptedAt = &accepted
		s.svc.EXPECT().Accept(gomock.Any(), jobID, applicantID).Return(app, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			AcceptRequest{ApplicantID: applicantID.String()}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		env := testutil.DecodeEnvelope[models.JobApplication](s.T(), rr)
		s.Equal(models.StatusAccepted, env.Data.Status)
		s.Require().NotNil(env.Data.AcceptedAt)
	})

	s.Run("lost race is not found", func() {
		s.svc.EXPECT().Accept(gomock.Any(), jobID, applicantID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no pending application for this job and applicant"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			AcceptRequest{ApplicantID: applicantID.String()}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("internal errors hide their message", func() {
		s.svc.EXPECT().Accept(gomock.Any(), jobID, applicantID).
			Return(nil, dErrors.New(dErrors.CodeInternal, "pq: relation does not exist"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			AcceptRequest{ApplicantID: applicantID.String()}))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "relation")
	})
}

func (s *HandlerSuite) TestComplete() {
	appID := id.NewApplicationID()
	path := "/applications/" + appID.String() + "/complete"

	s.Run("empty body completes without feedback", func() {
		s.svc.EXPECT().Complete(gomock.Any(), appID, "").Return(&models.JobApplication{ID: appID, Status: models.StatusCompleted}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("feedback is passed trimmed", func() {
		s.svc.EXPECT().Complete(gomock.Any(), appID, "great work").Return(&models.JobApplication{ID: appID, Status: models.StatusCompleted}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			CompleteRequest{Feedback: " great work "}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("not accepted is not found", func() {
		s.svc.EXPECT().Complete(gomock.Any(), appID, "").Return(nil, dErrors.New(dErrors.CodeNotFound, "application is not accepted"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestReads() {
	jobID := id.JobID(uuid.New())
	applicantID := id.ApplicantID(uuid.New())

	s.Run("get", func() {
		app := s.pending(jobID, applicantID)
		s.svc.EXPECT().Get(gomock.Any(), app.ID).Return(app, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications/"+app.ID.String(), nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("list by job returns an empty array", func() {
		s.svc.EXPECT().ListByJob(gomock.Any(), jobID).Return([]*models.JobApplication{}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/jobs/"+jobID.String()+"/applications", nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		env := testutil.DecodeEnvelope[json.RawMessage](s.T(), rr)
		s.JSONEq(`[]`, string(env.Data))
	})

	s.Run("list by applicant", func() {
		s.svc.EXPECT().ListByApplicant(gomock.Any(), applicantID).Return([]*models.JobApplication{s.pending(jobID, applicantID)}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applicants/"+applicantID.String()+"/applications", nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		env := testutil.DecodeEnvelope[[]models.JobApplication](s.T(), rr)
		s.Len(env.Data, 1)
	})

	s.Run("logs", func() {
		s.svc.EXPECT().ListLogs(gomock.Any(), applicantID).Return([]audit.LogEntry{{
			Entry: audit.Entry{ID: id.NewAuditEntryID(), ApplicantID: applicantID, Event: audit.EventApplied, Message: "Thanks for applying"},
		}}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applicants/"+applicantID.String()+"/logs", nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		env := testutil.DecodeEnvelope[[]audit.LogEntry](s.T(), rr)
		s.Require().Len(env.Data, 1)
		s.Equal(audit.EventApplied, env.Data[0].Event)
		s.False(env.Data[0].Seen)
	})

	s.Run("mark logs seen", func() {
		s.svc.EXPECT().MarkLogsSeen(gomock.Any(), applicantID).Return(2, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applicants/"+applicantID.String()+"/logs/seen", nil))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})
}

// TestApplyAcceptFlow drives the real service through the router.
func TestApplyAcceptFlow(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	jobs := catalogmemory.New()
	jobID := id.JobID(uuid.New())
	jobs.Put(catalog.JobWindow{JobID: jobID, Start: base, End: base.Add(8 * time.Hour), Status: catalog.JobStatusPublished})

	logs := sinkmemory.New()
	svc := service.New(store.NewInMemory(), jobs, audit.NewEmitter(outboxmemory.NewInMemoryStore(nil)),
		service.NewShardedJobTx(time.Second), service.WithLogReader(logs))
	router := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)

	first, second := id.ApplicantID(uuid.New()), id.ApplicantID(uuid.New())
	apply := func(t *testing.T, applicant id.ApplicantID) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/jobs/"+jobID.String()+"/applications",
			ApplyRequest{ApplicantID: applicant.String()})
		testutil.AssertStatus(t, testutil.DoRequest(router, testutil.WithRequestTime(req, base.Add(-time.Hour))), http.StatusCreated)
	}

	testutil.Given(t, "two applicants on one job", func(t *testing.T) {
		apply(t, first)
		apply(t, second)

		testutil.When(t, "the first is accepted", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/jobs/"+jobID.String()+"/applications/accept",
				AcceptRequest{ApplicantID: first.String()})
			rr := testutil.DoRequest(router, testutil.WithRequestID(req, "req-accept"))
			testutil.AssertStatus(t, rr, http.StatusOK)

			testutil.Then(t, "the second is rejected and cannot be accepted", func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/jobs/"+jobID.String()+"/applications", nil))
				env := testutil.DecodeEnvelope[[]models.JobApplication](t, rr)
				require.Len(t, env.Data, 2)
				statuses := map[id.ApplicantID]models.Status{}
				for _, app := range env.Data {
					statuses[app.ApplicantID] = app.Status
				}
				assert.Equal(t, models.StatusAccepted, statuses[first])
				assert.Equal(t, models.StatusRejected, statuses[second])

				req := testutil.NewJSONRequest(t, http.MethodPost, "/jobs/"+jobID.String()+"/applications/accept",
					AcceptRequest{ApplicantID: second.String()})
				testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusNotFound, "not_found")
			})

			testutil.Then(t, "a late applicant is refused", func(t *testing.T) {
				req := testutil.NewJSONRequest(t, http.MethodPost, "/jobs/"+jobID.String()+"/applications",
					ApplyRequest{ApplicantID: uuid.NewString()})
				testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusConflict, "conflict")
			})
		})
	})

}
