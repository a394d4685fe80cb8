package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"jobmatch/internal/application/models"
	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
	"jobmatch/pkg/requestcontext"
)

// OverlapPolicy decides what a failed lookup of an already-held job means.
type OverlapPolicy string

const (
	// OverlapFailOpen skips the held job and lets the apply proceed.
	OverlapFailOpen OverlapPolicy = "fail_open"
	// OverlapFailClosed refuses the apply as Unavailable.
	OverlapFailClosed OverlapPolicy = "fail_closed"
)

const DefaultOverlapConcurrency = 4

func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(s); p {
	case OverlapFailOpen, OverlapFailClosed:
		return p, nil
	case "":
		return OverlapFailOpen, nil
	}
	return "", fmt.Errorf("unknown overlap policy %q", s)
}

// ActiveLister lists the applications that still reserve their job window.
type ActiveLister interface {
	ListActiveByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.JobApplication, error)
}

var errOverlapFound = errors.New("overlap found")

// OverlapDetector checks a candidate window against the windows of every job
// the applicant is pending on or holds.
type OverlapDetector struct {
	apps    ActiveLister
	catalog CatalogClient
	limit   int
	policy  OverlapPolicy
	logger  *slog.Logger
	metrics *Metrics
}

func NewOverlapDetector(apps ActiveLister, catalog CatalogClient, limit int, policy OverlapPolicy, logger *slog.Logger, metrics *Metrics) *OverlapDetector {
	if limit <= 0 {
		limit = DefaultOverlapConcurrency
	}
	if policy == "" {
		policy = OverlapFailOpen
	}
	return &OverlapDetector{
		apps:    apps,
		catalog: catalog,
		limit:   limit,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
	}
}

// HasConflict reports whether candidate overlaps a window the applicant
// already reserves. Lookups run with bounded concurrency and the first
// overlap cancels the rest.
func (d *OverlapDetector) HasConflict(ctx context.Context, applicantID id.ApplicantID, candidate catalog.JobWindow) (bool, error) {
	active, err := d.apps.ListActiveByApplicant(ctx, applicantID)
	if err != nil {
		return false, fmt.Errorf("list active applications: %w", err)
	}
	if len(active) == 0 {
		return false, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	var found atomic.Bool

	seen := make(map[id.JobID]struct{}, len(active))
	for _, app := range active {
		if _, dup := seen[app.JobID]; dup {
			continue
		}
		seen[app.JobID] = struct{}{}
		jobID := app.JobID

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			window, err := d.catalog.GetJobWindow(gctx, jobID)
			if err != nil {
				if found.Load() {
					return nil
				}
				return d.siblingFailure(ctx, applicantID, jobID, err)
			}
			if !window.IsValid() {
				d.logWarn(ctx, "skipping held job with malformed window",
					"applicant_id", applicantID, "job_id", jobID)
				return nil
			}
			if candidate.Overlaps(window) {
				found.Store(true)
				return errOverlapFound
			}
			return nil
		})
	}

	err = g.Wait()
	switch {
	case errors.Is(err, errOverlapFound):
		return true, nil
	case err != nil:
		return false, err
	}
	// lookups that failed because the caller gave up must not read as "no overlap"
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("overlap check: %w: %v", sentinel.ErrUnavailable, err)
	}
	return false, nil
}

func (d *OverlapDetector) siblingFailure(ctx context.Context, applicantID id.ApplicantID, jobID id.JobID, cause error) error {
	if d.metrics != nil {
		d.metrics.IncSiblingLookupFailures()
	}
	d.logWarn(ctx, "held job lookup failed during overlap check",
		"applicant_id", applicantID,
		"job_id", jobID,
		"policy", d.policy,
		"error", cause,
	)
	if d.policy == OverlapFailClosed {
		return fmt.Errorf("resolve held job %s: %w: %v", jobID, catalog.ErrUnavailable, cause)
	}
	return nil
}

func (d *OverlapDetector) logWarn(ctx context.Context, msg string, args ...any) {
	if d.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	d.logger.WarnContext(ctx, msg, args...)
}
