// Package scheduler runs jobs when they become ready until they report they are complete.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

const (
	SubSystem = "Scheduler" // For logger

	// DefaultTick is how often jobs are checked.
	DefaultTick = 500 * time.Millisecond
)

var (
	ErrJobNotFound = errors.New("Job not found")
)

// Job tells the Scheduler when and how to run it.
type Job interface {
	// IsReady returns true when a job should be executed.
	IsReady(ctx context.Context) bool

	// Run executes the job.
	Run(ctx context.Context)

	// IsComplete returns true when a job should be removed from the scheduler.
	IsComplete(ctx context.Context) bool

	// Equal returns true if another job matches it. Used to cancel jobs.
	Equal(other Job) bool
}

// Scheduler runs jobs when they are ready.
type Scheduler struct {
	tick time.Duration

	lock sync.Mutex
	jobs []Job
}

// NewScheduler returns a scheduler that checks its jobs every tick.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}

	return &Scheduler{
		tick: tick,
	}
}

// ScheduleJob adds a job to the scheduler.
func (sch *Scheduler) ScheduleJob(ctx context.Context, job Job) {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	sch.jobs = append(sch.jobs, job)
}

// CancelJob removes a job from the scheduler. The job passed in just needs to be equivalent based
// on the job's Equal function.
func (sch *Scheduler) CancelJob(ctx context.Context, job Job) error {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	for i, existing := range sch.jobs {
		if existing.Equal(job) {
			sch.jobs = append(sch.jobs[:i], sch.jobs[i+1:]...)
			return nil
		}
	}

	return ErrJobNotFound
}

// JobCount returns the number of scheduled jobs.
func (sch *Scheduler) JobCount() int {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	return len(sch.jobs)
}

// Run checks the jobs every tick and runs the ready ones until the context is done.
func (sch *Scheduler) Run(ctx context.Context) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	ticker := time.NewTicker(sch.tick)
	defer ticker.Stop()

	logger.Verbose(ctx, "Scheduler running")
	defer logger.Verbose(ctx, "Scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sch.runReady(ctx)
		}
	}
}

// runReady runs the jobs that are ready and removes the ones that completed. Jobs run without the
// lock so they can schedule or cancel jobs.
func (sch *Scheduler) runReady(ctx context.Context) {
	sch.lock.Lock()
	jobs := make([]Job, len(sch.jobs))
	copy(jobs, sch.jobs)
	sch.lock.Unlock()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}

		if !job.IsReady(ctx) {
			continue
		}

		job.Run(ctx)

		if job.IsComplete(ctx) {
			sch.CancelJob(ctx, job)
		}
	}
}
