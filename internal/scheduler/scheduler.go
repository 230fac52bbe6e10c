// Package scheduler runs panel jobs on cron schedules for daemon mode,
// as an alternative to one-shot invocations from CI.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled run. The context carries the per-job timeout.
type Job func(ctx context.Context) error

// Scheduler manages periodic jobs.
type Scheduler struct {
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	jobTimeout time.Duration
	log        *zap.Logger
}

// New creates a scheduler in the given timezone. jobTimeout bounds each
// job run.
func New(timezone string, jobTimeout time.Duration, log *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		jobs:       make(map[string]cron.EntryID),
		jobTimeout: jobTimeout,
		log:        log,
	}, nil
}

// AddJob schedules a job with a standard cron expression.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		s.log.Info("scheduled job starting", zap.String("job", name))
		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Info("scheduled job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.jobs[name] = entryID
	s.log.Info("job scheduled", zap.String("job", name), zap.String("cron", schedule))
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// JobInfo describes one scheduled job.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// ListJobs returns the schedule state for logging at daemon startup.
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
				break
			}
		}
	}
	return infos
}
