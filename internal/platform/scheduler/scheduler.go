// Package scheduler runs recurring background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler evaluating schedules in loc.
func New(loc *time.Location) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name with a standard five-field spec such as
// "15 18 * * 1-5". It returns the parsed schedule for callers that need the
// next fire time.
func (s *Scheduler) Add(name, spec string, job Job) (cron.Schedule, error) {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q for %s: %w", spec, name, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(name, job) }))
	slog.Info("job scheduled", "job", name, "spec", spec)
	return schedule, nil
}

// RunNow executes job once, synchronously, with the scheduler's context.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	started := time.Now()
	slog.Info("job started", "job", name)
	if err := job(s.ctx); err != nil {
		slog.Error("job failed", "job", name, "duration", time.Since(started), "error", err)
		return
	}
	slog.Info("job finished", "job", name, "duration", time.Since(started))
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("scheduler stopped")
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out", "error", ctx.Err())
	}
}
