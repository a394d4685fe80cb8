// Package memory is an in-process job catalog for tests and dev mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	"jobmatch/internal/catalog"
	id "jobmatch/pkg/domain"
)

type Catalog struct {
	mu       sync.RWMutex
	windows  map[id.JobID]catalog.JobWindow
	failures map[id.JobID]error
	calls    map[id.JobID]int
}

func New() *Catalog {
	return &Catalog{
		windows:  make(map[id.JobID]catalog.JobWindow),
		failures: make(map[id.JobID]error),
		calls:    make(map[id.JobID]int),
	}
}

// Put registers or replaces a job window.
func (c *Catalog) Put(w catalog.JobWindow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[w.JobID] = w
}

// Fail makes lookups of jobID return err until Heal is called.
func (c *Catalog) Fail(jobID id.JobID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[jobID] = err
}

func (c *Catalog) Heal(jobID id.JobID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failures, jobID)
}

// Calls returns how many lookups jobID received.
func (c *Catalog) Calls(jobID id.JobID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[jobID]
}

func (c *Catalog) GetJobWindow(ctx context.Context, jobID id.JobID) (catalog.JobWindow, error) {
	if err := ctx.Err(); err != nil {
		return catalog.JobWindow{}, fmt.Errorf("%w: %w", catalog.ErrUnavailable, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[jobID]++
	if err, ok := c.failures[jobID]; ok {
		return catalog.JobWindow{}, err
	}
	w, ok := c.windows[jobID]
	if !ok {
		return catalog.JobWindow{}, catalog.ErrJobNotFound
	}
	return w, nil
}
