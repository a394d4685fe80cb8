package service

import (
	"context"
	"errors"

	id "jobmatch/pkg/domain"
	dErrors "jobmatch/pkg/domain-errors"
	"jobmatch/pkg/platform/sentinel"
	"jobmatch/pkg/requestcontext"
)

// translate maps store and dependency errors to domain codes. Errors that
// already carry a code pass through unchanged.
func (s *Service) translate(ctx context.Context, err error, message string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "job already has an accepted application")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "job catalog unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, message)
	}
	s.logger.ErrorContext(ctx, message,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func (s *Service) catalogError(ctx context.Context, jobID id.JobID, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "job not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		s.logger.WarnContext(ctx, "job catalog unavailable",
			"job_id", jobID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "job catalog unavailable")
	}
	return s.translate(ctx, err, "failed to resolve job")
}
