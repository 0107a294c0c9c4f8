// Package admission bounds the number of concurrently executing search
// requests, the max_concurrent_searches control named by the concurrency
// design.
package admission

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManySearchRequests is returned when the concurrency limit is
// already saturated and the caller should retry after RetryAfter.
type ErrTooManySearchRequests struct {
	RetryAfter time.Duration
}

func (e *ErrTooManySearchRequests) Error() string {
	return fmt.Sprintf("admission: too many concurrent search requests, retry after %s", e.RetryAfter)
}

// Controller gates concurrent search execution with a weighted semaphore.
type Controller struct {
	sem   *semaphore.Weighted
	limit int64
}

// New creates a Controller allowing up to maxConcurrent search requests to
// run at once.
func New(maxConcurrent int64) *Controller {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Controller{sem: semaphore.NewWeighted(maxConcurrent), limit: maxConcurrent}
}

// Acquire reserves one admission slot, returning ErrTooManySearchRequests
// immediately if none is free rather than queueing the caller.
func (c *Controller) Acquire(ctx context.Context) error {
	if !c.sem.TryAcquire(1) {
		return &ErrTooManySearchRequests{RetryAfter: 100 * time.Millisecond}
	}
	return nil
}

// Release returns an admission slot acquired via Acquire.
func (c *Controller) Release() {
	c.sem.Release(1)
}

// Run acquires a slot, runs fn, and releases the slot regardless of fn's
// outcome.
func (c *Controller) Run(ctx context.Context, fn func() error) error {
	if err := c.Acquire(ctx); err != nil {
		return err
	}
	defer c.Release()
	return fn()
}

// Limit returns the configured maximum concurrency.
func (c *Controller) Limit() int64 { return c.limit }
