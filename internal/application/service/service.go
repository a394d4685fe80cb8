// Package service runs the job application lifecycle: apply with overlap
// detection, job-scoped single-winner accept with cascade rejection, and
// completion. Every state change and its audit entry commit together.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jobmatch/internal/application/models"
	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
	"jobmatch/pkg/platform/audit"
	"jobmatch/pkg/platform/sentinel"
	"jobmatch/pkg/requestcontext"
)

const (
	defaultAppliedMessage = "Thanks for applying"
	acceptedMessage       = "Congratulations, you were selected for this job"
	rejectedMessage       = "Thanks for applying. This job has been accepted by another candidate."
	completedMessage      = "Job marked as completed"
)

const tracerName = "jobmatch/internal/application/service"

type Service struct {
	store   Store
	catalog CatalogClient
	audit   AuditEmitter
	tx      JobTx
	logs    LogReader
	overlap *OverlapDetector

	logger        *slog.Logger
	metrics       *Metrics
	tracer        trace.Tracer
	overlapLimit  int
	overlapPolicy OverlapPolicy
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithLogReader enables ListLogs and MarkLogsSeen.
func WithLogReader(logs LogReader) Option {
	return func(s *Service) {
		s.logs = logs
	}
}

func WithOverlapPolicy(policy OverlapPolicy) Option {
	return func(s *Service) {
		s.overlapPolicy = policy
	}
}

// WithOverlapConcurrency caps the concurrent catalog lookups of one apply.
func WithOverlapConcurrency(n int) Option {
	return func(s *Service) {
		s.overlapLimit = n
	}
}

func New(store Store, catalog CatalogClient, emitter AuditEmitter, tx JobTx, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		audit:   emitter,
		tx:      tx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.overlap = NewOverlapDetector(store, catalog, s.overlapLimit, s.overlapPolicy, s.logger, s.metrics)
	return s
}

// Apply creates a pending application after checking the job is open and
// does not overlap a job the applicant already reserves. An empty message
// records the default greeting.
func (s *Service) Apply(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID, message string) (*models.JobApplication, error) {
	ctx, span := s.startSpan(ctx, "Apply",
		attribute.String("job_id", jobID.String()),
		attribute.String("applicant_id", applicantID.String()))
	defer span.End()
	defer s.observe("apply", time.Now())

	app, err := s.apply(ctx, jobID, applicantID, message)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("application_id", app.ID.String()))
	return app, nil
}

func (s *Service) apply(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID, message string) (*models.JobApplication, error) {
	now := requestcontext.Now(ctx)
	app, err := models.NewJobApplication(id.NewApplicationID(), jobID, applicantID, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, dErrors.MessageOf(err))
	}

	window, err := s.catalog.GetJobWindow(ctx, jobID)
	if err != nil {
		return nil, s.catalogError(ctx, jobID, err)
	}
	if !window.IsValid() {
		s.rejectApply("malformed_window")
		return nil, dErrors.New(dErrors.CodeConflict, "job has an invalid time window")
	}
	if !window.AcceptsApplications() {
		s.rejectApply("job_not_open")
		return nil, dErrors.New(dErrors.CodeConflict, "job is not open for applications")
	}

	overlaps, err := s.overlap.HasConflict(ctx, applicantID, window)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to check for overlapping jobs")
	}
	if overlaps {
		s.rejectApply("overlap")
		return nil, dErrors.New(dErrors.CodeConflict, "applicant already holds an overlapping job")
	}

	if message == "" {
		message = defaultAppliedMessage
	}
	err = s.tx.RunInJobTx(ctx, jobID, func(ctx context.Context) error {
		taken, err := s.store.HasWinner(ctx, jobID)
		if err != nil {
			return err
		}
		if taken {
			s.rejectApply("job_filled")
			return dErrors.New(dErrors.CodeConflict, "job already has an accepted application")
		}
		if err := s.store.Create(ctx, app); err != nil {
			return err
		}
		return s.audit.Record(ctx, entryFor(app, audit.EventApplied, message, now))
	})
	if err != nil {
		return nil, s.translate(ctx, err, "failed to apply")
	}

	if s.metrics != nil {
		s.metrics.IncApplied()
	}
	s.logger.InfoContext(ctx, "application created",
		"application_id", app.ID,
		"job_id", jobID,
		"applicant_id", applicantID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return app, nil
}

// Accept makes the applicant's pending application the job's winner and
// rejects every other pending application of the job in the same unit.
func (s *Service) Accept(ctx context.Context, jobID id.JobID, applicantID id.ApplicantID) (*models.JobApplication, error) {
	ctx, span := s.startSpan(ctx, "Accept",
		attribute.String("job_id", jobID.String()),
		attribute.String("applicant_id", applicantID.String()))
	defer span.End()
	defer s.observe("accept", time.Now())

	now := requestcontext.Now(ctx)
	var (
		accepted *models.JobApplication
		rejected []*models.JobApplication
	)
	err := s.tx.RunInJobTx(ctx, jobID, func(ctx context.Context) error {
		app, err := s.store.FindPendingForUpdate(ctx, jobID, applicantID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no pending application for this job and applicant")
		}
		if err != nil {
			return err
		}
		if err := app.Accept(now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "application is not pending")
		}
		if err := s.store.Update(ctx, app); err != nil {
			return err
		}
		siblings, err := s.store.RejectPendingSiblings(ctx, jobID, app.ID)
		if err != nil {
			return err
		}

		if err := s.audit.Record(ctx, entryFor(app, audit.EventAccepted, acceptedMessage, now)); err != nil {
			return err
		}
		for _, sibling := range siblings {
			if err := s.audit.Record(ctx, entryFor(sibling, audit.EventRejected, rejectedMessage, now)); err != nil {
				return err
			}
		}
		accepted, rejected = app, siblings
		return nil
	})
	if err != nil {
		err = s.translate(ctx, err, "failed to accept application")
		s.countAccept(string(dErrors.CodeOf(err)))
		recordSpanError(span, err)
		return nil, err
	}

	s.countAccept("accepted")
	if s.metrics != nil {
		s.metrics.AddCascadeRejections(len(rejected))
	}
	span.SetAttributes(
		attribute.String("application_id", accepted.ID.String()),
		attribute.Int("rejected", len(rejected)))
	s.logger.InfoContext(ctx, "application accepted",
		"application_id", accepted.ID,
		"job_id", jobID,
		"applicant_id", applicantID,
		"rejected", len(rejected),
		"request_id", requestcontext.RequestID(ctx),
	)
	return accepted, nil
}

// Complete closes an accepted application. Anything else, including an
// application already completed, is NotFound.
func (s *Service) Complete(ctx context.Context, appID id.ApplicationID, feedback string) (*models.JobApplication, error) {
	ctx, span := s.startSpan(ctx, "Complete", attribute.String("application_id", appID.String()))
	defer span.End()
	defer s.observe("complete", time.Now())

	current, err := s.store.FindByID(ctx, appID)
	if err != nil {
		err = s.translate(ctx, err, "failed to load application")
		recordSpanError(span, err)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var completed *models.JobApplication
	err = s.tx.RunInJobTx(ctx, current.JobID, func(ctx context.Context) error {
		app, err := s.store.FindByIDForUpdate(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.Complete(now, feedback); err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "application is not accepted")
		}
		if err := s.store.Update(ctx, app); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, entryFor(app, audit.EventCompleted, completedMessage, now)); err != nil {
			return err
		}
		completed = app
		return nil
	})
	if err != nil {
		err = s.translate(ctx, err, "failed to complete application")
		recordSpanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncCompletions()
	}
	s.logger.InfoContext(ctx, "application completed",
		"application_id", appID,
		"job_id", completed.JobID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return completed, nil
}

func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to load application")
	}
	return app, nil
}

func (s *Service) ListByJob(ctx context.Context, jobID id.JobID) ([]*models.JobApplication, error) {
	apps, err := s.store.ListByJob(ctx, jobID)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to list applications")
	}
	return apps, nil
}

func (s *Service) ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error) {
	apps, err := s.store.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to list applications")
	}
	return apps, nil
}

// ListLogs returns the applicant's delivered audit entries, newest first.
func (s *Service) ListLogs(ctx context.Context, applicantID id.ApplicantID) ([]audit.LogEntry, error) {
	if s.logs == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "application logs are not configured")
	}
	entries, err := s.logs.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to list logs")
	}
	return entries, nil
}

func (s *Service) MarkLogsSeen(ctx context.Context, applicantID id.ApplicantID) (int, error) {
	if s.logs == nil {
		return 0, dErrors.New(dErrors.CodeUnavailable, "application logs are not configured")
	}
	n, err := s.logs.MarkSeen(ctx, applicantID)
	if err != nil {
		return 0, s.translate(ctx, err, "failed to mark logs seen")
	}
	return n, nil
}

func entryFor(app *models.JobApplication, event audit.Event, message string, at time.Time) audit.Entry {
	return audit.Entry{
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		JobID:         app.JobID,
		Event:         event,
		Message:       message,
		Timestamp:     at,
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "application."+op, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start).Seconds())
	}
}

func (s *Service) rejectApply(reason string) {
	if s.metrics != nil {
		s.metrics.IncApplyRejected(reason)
	}
}

func (s *Service) countAccept(outcome string) {
	if s.metrics != nil {
		s.metrics.IncAccept(outcome)
	}
}
