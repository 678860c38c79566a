// Package scheduler runs the marketplace's periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Yassin6up/somoo-sub000/internal/app/metrics"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// ErrUnknownJob is returned by RunNow for names that were never added.
var ErrUnknownJob = errors.New("unknown job")

// Job is a named unit of periodic work. Run reports how many records it
// touched.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) (int, error)
}

// Scheduler wraps a cron runner and exposes it as a lifecycle service.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	log     *logger.Logger
	running bool
}

// New constructs a scheduler. Overlapping runs of the same job are skipped
// and panics are recovered.
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log: log,
	}
}

// Add registers a job. The spec is validated immediately.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler job requires a name and a run function")
	}
	if job.Timeout <= 0 {
		job.Timeout = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) Name() string { return "scheduler" }

func (s *Scheduler) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.Infof("scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes the named job synchronously.
func (s *Scheduler) RunNow(name string) (int, error) {
	s.mu.Lock()
	var found *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			found = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return s.execute(*found)
}

func (s *Scheduler) execute(job Job) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	metrics.RecordJobRun(job.Name, time.Since(start), err == nil)

	entry := s.log.WithField("job", job.Name).WithField("affected", n)
	if err != nil {
		entry.WithError(err).Error("scheduled job failed")
		return n, err
	}
	entry.Debug("scheduled job finished")
	return n, nil
}
