// Package scheduler triggers periodic jobs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a cron schedule. A tick that fires while the
// previous run is still active is skipped.
type Scheduler struct {
	c        *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	logger   *slog.Logger
	entry    cron.EntryID
}

// parser accepts both 5-field and 6-field (with seconds) specs and
// descriptors such as "@daily".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New registers job under spec in the given IANA timezone.
func New(ctx context.Context, name, spec, timezone string, job Job, logger *slog.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("scheduler: %s: schedule required", name)
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %s: invalid schedule %q: %w", name, spec, err)
	}

	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s: invalid timezone %q: %w", name, tz, err)
		}
		loc = l
	}

	cl := cronLogger{logger: logger.With(slog.String("job", name))}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{c: c, schedule: schedule, loc: loc, logger: logger}
	id := c.Schedule(schedule, cron.FuncJob(func() {
		started := time.Now()
		if err := job(ctx); err != nil {
			logger.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
			return
		}
		logger.Info("scheduled job finished", slog.String("job", name), slog.Duration("took", time.Since(started)))
	}))
	s.entry = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.c.Start()
	s.logger.Info("scheduler started", slog.Time("next_run", s.Next()))
}

// Next returns the next activation time. Before the cron loop has picked up
// the entry it is computed from the schedule directly.
func (s *Scheduler) Next() time.Time {
	if next := s.c.Entry(s.entry).Next; !next.IsZero() {
		return next
	}
	return s.schedule.Next(time.Now().In(s.loc))
}

// Stop stops triggering and waits for a running job or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
