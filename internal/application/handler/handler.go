// Package handler exposes the application lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobmatch/internal/application/models"
	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
	"jobmatch/pkg/platform/audit"
	"jobmatch/pkg/platform/httputil"
	"jobmatch/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the lifecycle operations served over HTTP.
type Service interface {
	Apply(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID, message string) (*models.JobApplication, error)
	Accept(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID) (*models.JobApplication, error)
	Complete(ctx context.Context, appID id.ApplicationID, feedback string) (*models.JobApplication, error)
	Get(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error)
	ListByJob(ctx context.Context, jobID id.JobID) ([]*models.JobApplication, error)
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error)
	ListLogs(ctx context.Context, applicantID id.ApplicantID) ([]audit.LogEntry, error)
	MarkLogsSeen(ctx context.Context, applicantID id.ApplicantID) (int, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers the application routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/jobs/{jobID}/applications", h.handleApply)
	r.Get("/jobs/{jobID}/applications", h.handleListByJob)
	r.Post("/jobs/{jobID}/applications/accept", h.handleAccept)
	r.Get("/applications/{applicationID}", h.handleGet)
	r.Post("/applications/{applicationID}/complete", h.handleComplete)
	r.Get("/applicants/{applicantID}/applications", h.handleListByApplicant)
	r.Get("/applicants/{applicantID}/logs", h.handleListLogs)
	r.Post("/applicants/{applicantID}/logs/seen", h.handleMarkLogsSeen)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ApplyRequest
	if err := decode(w, r, &req, false); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Normalize()
	applicantID, err := req.Validate()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.svc.Apply(ctx, jobID, applicantID, req.Message)
	if err != nil {
		h.fail(ctx, w, "apply", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req AcceptRequest
	if err := decode(w, r, &req, false); err != nil {
		httputil.WriteError(w, err)
		return
	}
	applicantID, err := req.Validate()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.svc.Accept(ctx, jobID, applicantID)
	if err != nil {
		h.fail(ctx, w, "accept", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req CompleteRequest
	if err := decode(w, r, &req, true); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.svc.Complete(ctx, appID, req.Feedback)
	if err != nil {
		h.fail(ctx, w, "complete", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.svc.Get(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "get", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleListByJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	apps, err := h.svc.ListByJob(ctx, jobID)
	if err != nil {
		h.fail(ctx, w, "list by job", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleListByApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "applicantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	apps, err := h.svc.ListByApplicant(ctx, applicantID)
	if err != nil {
		h.fail(ctx, w, "list by applicant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "applicantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.svc.ListLogs(ctx, applicantID)
	if err != nil {
		h.fail(ctx, w, "list logs", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleMarkLogsSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "applicantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.svc.MarkLogsSeen(ctx, applicantID)
	if err != nil {
		h.fail(ctx, w, "mark logs seen", err)
		return
	}
	h.logger.DebugContext(ctx, "logs marked seen",
		"applicant_id", applicantID,
		"marked", n,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.WarnContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

// decode reads a bounded JSON body into dst. An empty body is accepted only
// when optional is set.
func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}
