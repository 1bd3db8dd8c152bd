// CLAUDE:SUMMARY Daily wall-clock trigger: next HH:MM in the reference zone, job run loop until cancel.
// Package scheduler fires the daily drop at a fixed wall-clock time.
//
// It is the in-process alternative to an external cron entry. Each firing
// runs the job once; a failed job is not retried before the next day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Job is invoked once per firing.
type Job func(ctx context.Context) error

// Config configures the scheduler.
type Config struct {
	// At is the daily fire time "HH:MM". Default: "22:01", one minute after
	// the weekday puzzle is published.
	At string `yaml:"at"`
	// Zone is the location At is read in. Default: UTC.
	Zone *time.Location `yaml:"-"`
}

func (c *Config) defaults() {
	if c.At == "" {
		c.At = "22:01"
	}
	if c.Zone == nil {
		c.Zone = time.UTC
	}
}

// ParseClock reads "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: parse time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Scheduler fires a Job every day at Config.At.
type Scheduler struct {
	job    Job
	config Config
	hour   int
	minute int
	logger *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New creates a Scheduler.
func New(cfg Config, job Job, logger *slog.Logger) (*Scheduler, error) {
	cfg.defaults()
	h, m, err := ParseClock(cfg.At)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		job:    job,
		config: cfg,
		hour:   h,
		minute: m,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first fire time strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.config.Zone)
	y, mo, d := local.Date()
	next := time.Date(y, mo, d, s.hour, s.minute, 0, 0, s.config.Zone)
	if !next.After(local) {
		next = time.Date(y, mo, d+1, s.hour, s.minute, 0, 0, s.config.Zone)
	}
	return next
}

// Run waits for each fire time and runs the job. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		next := s.Next(s.now())
		s.logger.Info("scheduler: next run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(s.now())):
		}

		if err := s.job(ctx); err != nil {
			s.logger.Warn("scheduler: job failed", "error", err)
		}
	}
}
