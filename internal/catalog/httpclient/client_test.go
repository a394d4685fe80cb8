package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
	"jobmatch/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(srv.Client()),
		WithTimeout(200 * time.Millisecond),
	}
	return New(srv.URL, append(base, opts...)...), &hits
}

func TestGetJobWindow_Success(t *testing.T) {
	jobID := id.JobID(uuid.New())
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/"+jobID.String()+"/window", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"success","data":{"start":"2026-06-01T09:00:00Z","end":"2026-06-01T17:00:00Z","status":"published"}}`)
	})

	w, err := client.GetJobWindow(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, w.JobID)
	assert.Equal(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), w.Start.UTC())
	assert.Equal(t, time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC), w.End.UTC())
	assert.Equal(t, catalog.JobStatusPublished, w.Status)
}

func TestGetJobWindow_NotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http 404": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"error envelope": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"error","data":null,"error_code":"not_found"}`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, h)
			_, err := client.GetJobWindow(context.Background(), id.JobID(uuid.New()))
			assert.ErrorIs(t, err, sentinel.ErrNotFound)
			assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
		})
	}
}

func TestGetJobWindow_Unavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		},
		"other error code": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"error","error_code":"internal"}`)
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, h)
			_, err := client.GetJobWindow(context.Background(), id.JobID(uuid.New()))
			assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		})
	}
}

func TestGetJobWindow_BreakerOpensOnFailuresNotOnNotFound(t *testing.T) {
	settings := DefaultBreakerSettings()
	settings.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 }
	settings.Timeout = time.Hour

	var fail atomic.Bool
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, WithBreakerSettings(settings))
	ctx := context.Background()

	for range 3 {
		_, err := client.GetJobWindow(ctx, id.JobID(uuid.New()))
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())

	fail.Store(true)
	for range 2 {
		_, err := client.GetJobWindow(ctx, id.JobID(uuid.New()))
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	before := hits.Load()
	_, err := client.GetJobWindow(ctx, id.JobID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, before, hits.Load(), "open breaker short-circuits the request")
}
