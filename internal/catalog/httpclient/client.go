// Package httpclient talks to the job catalog over HTTP.
//
// GET {base}/jobs/{id}/window answers with an envelope:
//
//	{"status":"success","data":{"start":"...","end":"...","status":"published"}}
//	{"status":"error","error_code":"not_found"}
//
// A 404 or error_code "not_found" is NotFound. Everything else that is not a
// well-formed success (transport errors, timeouts, 5xx, garbage bodies, an
// open breaker) is Unavailable.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
)

const (
	defaultTimeout = 2 * time.Second
	maxBodyBytes   = 1 << 20
)

type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	settings gobreaker.Settings
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreakerSettings overrides the circuit breaker configuration.
// IsSuccessful is always forced so that NotFound does not trip the breaker.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(c *Client) { c.settings = s }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		settings: DefaultBreakerSettings(),
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.settings, c.logger)
	return c
}

// DefaultBreakerSettings trips after 5 consecutive failures and probes again
// after 30s.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "job-catalog",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker(s gobreaker.Settings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	s.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, sentinel.ErrNotFound)
	}
	if s.OnStateChange == nil && logger != nil {
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
		}
	}
	return gobreaker.NewCircuitBreaker(s)
}

type windowData struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

type envelope struct {
	Status    string      `json:"status"`
	Data      *windowData `json:"data"`
	ErrorCode string      `json:"error_code"`
}

func (c *Client) GetJobWindow(ctx context.Context, jobID id.JobID) (catalog.JobWindow, error) {
	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, jobID)
	})
	outcome := outcomeOf(err)
	if c.metrics != nil {
		c.metrics.ObserveRequest(outcome, time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return catalog.JobWindow{}, fmt.Errorf("%w: %w", catalog.ErrUnavailable, err)
		}
		if outcome == outcomeUnavailable {
			c.logger.WarnContext(ctx, "job catalog lookup failed",
				"job_id", jobID,
				"error", err,
			)
		}
		return catalog.JobWindow{}, err
	}
	return res.(catalog.JobWindow), nil
}

func (c *Client) fetch(ctx context.Context, jobID id.JobID) (catalog.JobWindow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/jobs/" + url.PathEscape(jobID.String()) + "/window"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: build request: %w", catalog.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: %w", catalog.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: read body: %w", catalog.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return catalog.JobWindow{}, catalog.ErrJobNotFound
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if decodeErr == nil && env.Status == "error" && env.ErrorCode == "not_found" {
		return catalog.JobWindow{}, catalog.ErrJobNotFound
	}
	if resp.StatusCode >= 300 {
		return catalog.JobWindow{}, fmt.Errorf("%w: unexpected status %d", catalog.ErrUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: decode body: %w", catalog.ErrUnavailable, decodeErr)
	}
	if env.Status != "success" || env.Data == nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: catalog error %q", catalog.ErrUnavailable, env.ErrorCode)
	}

	return catalog.JobWindow{
		JobID:  jobID,
		Start:  env.Data.Start,
		End:    env.Data.End,
		Status: catalog.JobStatus(env.Data.Status),
	}, nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
