package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled backup run.
type Job func(ctx context.Context) error

// Scheduler runs a backup job on a cron schedule.
type Scheduler struct {
	schedule string
	job      Job

	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

// ParseSchedule validates a five-field cron expression or a descriptor such as "@daily".
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser().Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", expr, err)
	}
	return schedule, nil
}

func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// NewScheduler creates a scheduler for job. The schedule is checked by Run.
func NewScheduler(schedule string, job Job) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithParser(cronParser())),
	}
}

// Run schedules the job and blocks until ctx is cancelled, then waits for
// a run in progress to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	if _, err := ParseSchedule(s.schedule); err != nil {
		s.mu.Unlock()
		return err
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() { s.runJob(ctx) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true
	s.mu.Unlock()

	slog.Info("Backup scheduler started", "schedule", s.schedule, "next_run", s.NextRun())

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	slog.Info("Backup scheduler stopped")
	return nil
}

// NextRun returns when the job runs next, or the zero time when not scheduled.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

func (s *Scheduler) runJob(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		slog.Error("Scheduled backup failed", "error", err)
		return
	}
	slog.Info("Scheduled backup finished", "duration", time.Since(start).Round(time.Millisecond), "next_run", s.NextRun())
}
