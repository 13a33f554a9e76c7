package scheduler

import (
	"context"
	"time"

	"github.com/tokenized/pkg/logger"
)

// Process is run by a PeriodicProcess.
type Process interface {
	Run(ctx context.Context) error
}

// ProcessFunc adapts a function to a Process.
type ProcessFunc func(ctx context.Context) error

func (f ProcessFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicProcess is a Scheduler job that runs a process at a specified frequency. It is never
// complete.
type PeriodicProcess struct {
	name      string
	process   Process
	frequency time.Duration
	next      time.Time
}

func NewPeriodicProcess(name string, process Process, frequency time.Duration) *PeriodicProcess {
	return &PeriodicProcess{
		name:      name,
		process:   process,
		frequency: frequency,
		next:      time.Now().Add(frequency),
	}
}

// IsReady returns true when a job should be executed.
func (pp *PeriodicProcess) IsReady(ctx context.Context) bool {
	return !time.Now().Before(pp.next)
}

// Run executes the job. A failure is logged and the process runs again at the next period.
func (pp *PeriodicProcess) Run(ctx context.Context) {
	// Schedule next time
	pp.next = time.Now().Add(pp.frequency)

	start := time.Now()
	if err := pp.process.Run(ctx); err != nil {
		logger.Warn(ctx, "Periodic process %s failed : %s", pp.name, err)
		return
	}
	logger.Elapsed(ctx, start, pp.name)
}

// IsComplete returns true when a job should be removed from the scheduler.
func (pp *PeriodicProcess) IsComplete(ctx context.Context) bool {
	return false
}

// Equal returns true if another job matches it. Used to cancel jobs.
func (pp *PeriodicProcess) Equal(other Job) bool {
	otherPP, ok := other.(*PeriodicProcess)
	if !ok {
		return false
	}
	return pp.name == otherPP.name
}
