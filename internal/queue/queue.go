// internal/queue/queue.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Job is one independently schedulable unit of work. Jobs must be safe to
// re-run: a failed job is logged and picked up again on the next scheduled
// pass, never retried in a tight loop.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// NewJob tags a work function with a fresh id.
func NewJob(name string, run func(ctx context.Context) error) Job {
	return Job{ID: uuid.NewString(), Name: name, Run: run}
}

var ErrQueueFull = errors.New("queue full")
var ErrClosed = errors.New("queue closed")

// Queue is an in-process job queue with a bounded buffer and a fixed
// worker pool. One failing job never aborts the others.
type Queue struct {
	jobs    chan Job
	workers int
}

func New(workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	return &Queue{jobs: make(chan Job, size), workers: workers}
}

// Enqueue adds a job without blocking; a full buffer is reported to the
// caller so fan-out can surface backpressure instead of stalling.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs; workers drain what is buffered.
func (q *Queue) Close() {
	close(q.jobs)
}

// Run processes jobs with the worker pool until the queue is closed and
// drained, or ctx is cancelled. Job errors are logged and counted, not
// propagated: per-unit isolation is the contract.
func (q *Queue) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		worker := i
		eg.Go(func() error {
			for {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				case job, ok := <-q.jobs:
					if !ok {
						return nil
					}
					q.execute(egCtx, worker, job)
				}
			}
		})
	}
	return eg.Wait()
}

func (q *Queue) execute(ctx context.Context, worker int, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[queue][panic] worker=%d job=%s id=%s: %v", worker, job.Name, job.ID, rec)
		}
	}()
	if err := job.Run(ctx); err != nil {
		log.Printf("[queue][err] worker=%d job=%s id=%s: %v", worker, job.Name, job.ID, err)
		return
	}
	log.Printf("[queue][ok] worker=%d job=%s id=%s", worker, job.Name, job.ID)
}

// Drain is the synchronous mode used by the CLI: close, run, wait.
func (q *Queue) Drain(ctx context.Context) error {
	q.Close()
	if err := q.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("queue drain: %w", err)
	}
	return nil
}
