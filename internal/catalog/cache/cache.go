// Package cache decorates a catalog.Client with a redis read-through cache.
//
// Only successful lookups are cached. NotFound and Unavailable always go to
// the upstream so a job that appears or a catalog that recovers is seen on
// the next call. Redis errors are logged and bypassed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
)

const (
	defaultTTL = 30 * time.Second
	keyPrefix  = "jobmatch:catalog:window:"
)

type Client struct {
	upstream catalog.Client
	rdb      redis.UniversalClient
	ttl      time.Duration
	logger   *slog.Logger
}

type Option func(*Client)

func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(upstream catalog.Client, rdb redis.UniversalClient, opts ...Option) *Client {
	c := &Client{
		upstream: upstream,
		rdb:      rdb,
		ttl:      defaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(jobID id.JobID) string {
	return keyPrefix + jobID.String()
}

func (c *Client) GetJobWindow(ctx context.Context, jobID id.JobID) (catalog.JobWindow, error) {
	raw, err := c.rdb.Get(ctx, key(jobID)).Bytes()
	switch {
	case err == nil:
		var w catalog.JobWindow
		if jsonErr := json.Unmarshal(raw, &w); jsonErr == nil {
			return w, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt catalog cache entry", "job_id", jobID)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "catalog cache read failed", "job_id", jobID, "error", err)
	}

	w, err := c.upstream.GetJobWindow(ctx, jobID)
	if err != nil {
		return catalog.JobWindow{}, err
	}

	payload, err := json.Marshal(w)
	if err != nil {
		return w, nil
	}
	if err := c.rdb.Set(ctx, key(jobID), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "job_id", jobID, "error", err)
	}
	return w, nil
}

// Invalidate drops the cached window of jobID.
func (c *Client) Invalidate(ctx context.Context, jobID id.JobID) error {
	return c.rdb.Del(ctx, key(jobID)).Err()
}
