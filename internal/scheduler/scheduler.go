// Package scheduler drives the recurring automation tasks. Every minute it
// matches enabled schedules against their cron expressions, runs the due
// ones concurrently and turns changed observations into notifications.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"saintagent/internal/logging"
	"saintagent/internal/notify"
	"saintagent/internal/store"
	"saintagent/internal/tasks"
)

// Config holds scheduler settings.
type Config struct {
	TickInterval time.Duration
}

// DefaultConfig ticks once a minute, matching cron's resolution.
func DefaultConfig() Config {
	return Config{TickInterval: time.Minute}
}

// Scheduler owns the tick loop.
type Scheduler struct {
	cfg        Config
	st         *store.Store
	registry   *tasks.Registry
	dispatcher *notify.Dispatcher

	now func() time.Time
}

// New creates a scheduler.
func New(cfg Config, st *store.Store, registry *tasks.Registry, dispatcher *notify.Dispatcher) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Scheduler{
		cfg:        cfg,
		st:         st,
		registry:   registry,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	logging.Scheduler("scheduler running (tick %s)", s.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			logging.Scheduler("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass for the current minute. Due schedules run
// concurrently; one schedule's failure never affects another's run.
func (s *Scheduler) Tick(ctx context.Context) {
	t0 := s.now().Truncate(time.Minute)

	schedules, err := s.st.ListEnabledSchedules()
	if err != nil {
		logging.Get(logging.CategoryScheduler).Error("list schedules: %v", err)
		return
	}

	var due []store.Schedule
	for _, sched := range schedules {
		matched, err := MatchesMinute(sched.CronExpr, t0)
		if err != nil {
			logging.Get(logging.CategoryScheduler).Warn("schedule %d: bad cron %q: %v", sched.ID, sched.CronExpr, err)
			continue
		}
		if matched {
			due = append(due, sched)
		}
	}
	if len(due) == 0 {
		s.drain(ctx)
		return
	}

	logging.Scheduler("tick %s: %d schedule(s) due", t0.Format("15:04"), len(due))
	g, gctx := errgroup.WithContext(ctx)
	for _, sched := range due {
		sched := sched
		g.Go(func() error {
			s.runOne(gctx, sched, t0)
			return nil
		})
	}
	_ = g.Wait()

	s.drain(ctx)
}

// runOne executes one schedule, contained: panics and errors are logged,
// never propagated.
func (s *Scheduler) runOne(ctx context.Context, sched store.Schedule, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryScheduler).Error("schedule %d panicked: %v", sched.ID, r)
		}
	}()

	task, err := s.registry.Get(sched.TaskType)
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("schedule %d: %v", sched.ID, err)
		return
	}

	result, err := task.Run(ctx, sched)
	if err != nil {
		if errors.Is(err, tasks.ErrNoResult) {
			logging.SchedulerDebug("schedule %d produced no result", sched.ID)
			return
		}
		logging.Get(logging.CategoryScheduler).Warn("schedule %d (%s) failed: %v", sched.ID, sched.TaskType, err)
		return
	}

	if err := s.commit(sched, task, result, at); err != nil {
		logging.Get(logging.CategoryScheduler).Error("schedule %d commit failed: %v", sched.ID, err)
	}
}

// commit applies the notification policy. NotifyAlways tasks notify on
// every result; change-detecting tasks notify only when the observation
// differs from the last known result, and record the first observation
// silently. Result update and notification queueing land in one
// transaction.
func (s *Scheduler) commit(sched store.Schedule, task tasks.Task, result string, at time.Time) error {
	if task.NotifyAlways {
		msg := task.Notification(sched.LastKnownResult, result)
		return s.st.CommitChange(sched.ID, sched.UserID, result, msg, at)
	}

	if sched.LastKnownResult == nil {
		logging.Scheduler("schedule %d: first observation recorded", sched.ID)
		return s.st.RecordRun(sched.ID, result, at)
	}
	if *sched.LastKnownResult == result {
		// No change, no write: the row stays exactly as the previous
		// observation left it.
		return nil
	}

	msg := task.Notification(sched.LastKnownResult, result)
	logging.Scheduler("schedule %d: change detected", sched.ID)
	return s.st.CommitChange(sched.ID, sched.UserID, result, msg, at)
}

func (s *Scheduler) drain(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	if n, err := s.dispatcher.Drain(ctx); err != nil {
		logging.Get(logging.CategoryScheduler).Warn("notification drain failed: %v", err)
	} else if n > 0 {
		logging.Scheduler("dispatched %d notification(s)", n)
	}
}

// MatchesMinute reports whether a standard 5-field cron expression fires at
// the given minute. The next activation after one second before t0 equals
// t0 exactly when t0 is an activation, which avoids both missed and double
// fires at minute resolution.
func MatchesMinute(expr string, t0 time.Time) (bool, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return false, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	t0 = t0.Truncate(time.Minute)
	return sched.Next(t0.Add(-time.Second)).Equal(t0), nil
}
