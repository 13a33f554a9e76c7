package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
)

// countJob runs a fixed number of times.
type countJob struct {
	name  string
	limit int

	lock sync.Mutex
	runs int
}

func (j *countJob) IsReady(ctx context.Context) bool { return true }

func (j *countJob) Run(ctx context.Context) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.runs++
}

func (j *countJob) IsComplete(ctx context.Context) bool {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.runs >= j.limit
}

func (j *countJob) Equal(other Job) bool {
	o, ok := other.(*countJob)
	return ok && o.name == j.name
}

func (j *countJob) count() int {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.runs
}

func testContext() context.Context {
	return logger.ContextWithLogConfig(context.Background(), logger.NewDevelopmentConfig())
}

func waitFor(t *testing.T, condition func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for scheduler")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCompleteJobRemoved(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	sch := NewScheduler(time.Millisecond)
	job := &countJob{name: "three", limit: 3}
	sch.ScheduleJob(ctx, job)

	done := make(chan struct{})
	go func() {
		sch.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return sch.JobCount() == 0 })

	if got := job.count(); got != 3 {
		t.Fatalf("Wrong run count : got %d, wanted 3", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Scheduler didn't stop")
	}
}

func TestPeriodicProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	var lock sync.Mutex
	runs := 0
	process := ProcessFunc(func(ctx context.Context) error {
		lock.Lock()
		defer lock.Unlock()
		runs++
		if runs%2 == 0 {
			return errors.New("every other run fails")
		}
		return nil
	})

	sch := NewScheduler(time.Millisecond)
	periodic := NewPeriodicProcess("stats", process, 5*time.Millisecond)
	sch.ScheduleJob(ctx, periodic)

	go sch.Run(ctx)

	waitFor(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return runs >= 4
	})

	if sch.JobCount() != 1 {
		t.Fatalf("Periodic process removed after failures")
	}

	if err := sch.CancelJob(ctx, NewPeriodicProcess("stats", nil, time.Second)); err != nil {
		t.Fatalf("Failed to cancel job : %s", err)
	}
	if err := sch.CancelJob(ctx, periodic); errors.Cause(err) != ErrJobNotFound {
		t.Fatalf("Wrong error cancelling twice : got %v, wanted %v", err, ErrJobNotFound)
	}
}
