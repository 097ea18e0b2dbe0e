package core

// job_limiter.go caps parallel cleaning runs. Every run holds a whole
// dataset in memory, so runs take one unit of a weighted semaphore and
// queue behind it for at most maxWait.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyJobs is returned when no cleaning slot frees up within the wait
// window. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many concurrent cleaning jobs, please try again later")

// DefaultMaxConcurrentJobs is the default limit for parallel cleaning runs.
const DefaultMaxConcurrentJobs = 4

// DefaultMaxWaitTime is how long a run queues for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// JobLimiter bounds concurrent cleaning runs.
type JobLimiter struct {
	sem     *semaphore.Weighted
	size    int64
	maxWait time.Duration
	running atomic.Int64
}

// NewJobLimiter returns a limiter with size slots. Non-positive arguments
// fall back to the defaults.
func NewJobLimiter(size int, maxWait time.Duration) *JobLimiter {
	if size <= 0 {
		size = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &JobLimiter{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
		maxWait: maxWait,
	}
}

// Acquire takes one slot, waiting up to maxWait. A cancelled ctx wins over
// ErrTooManyJobs. Each successful Acquire must be paired with Release.
func (l *JobLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyJobs
	}
	l.running.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (l *JobLimiter) Release() {
	l.running.Add(-1)
	l.sem.Release(1)
}

// MaxConcurrent returns the number of slots.
func (l *JobLimiter) MaxConcurrent() int {
	return int(l.size)
}

// WaitForDrain blocks until every running job has released its slot, or ctx
// ends. Claiming the whole semaphore also holds back new runs while it waits.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.size); err != nil {
		return err
	}
	l.sem.Release(l.size)
	return nil
}

// LimiterStatus is a snapshot of the limiter's state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports running and free slots.
func (l *JobLimiter) Status() LimiterStatus {
	active := int(l.running.Load())
	return LimiterStatus{
		Active:        active,
		Available:     int(l.size) - active,
		MaxConcurrent: int(l.size),
	}
}
