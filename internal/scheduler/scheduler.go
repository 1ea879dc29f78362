// Package scheduler is the beat process: it fires the recurring CRM
// tasks into the broker on their schedules. A Redis lease per entry keeps
// concurrently running instances from double-enqueueing a tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/metrics"
)

// lockTTL is the lease window for one tick. Long enough that every
// instance sees the entry as taken, short enough to recover from a
// crashed holder before the next tick of the fastest schedule.
const lockTTL = 30 * time.Second

// Entry is one scheduled task.
type Entry struct {
	Name    string
	Task    string
	Spec    Spec
	Payload any

	next time.Time
}

// Scheduler enqueues entries on their schedules.
type Scheduler struct {
	broker  *broker.Client
	entries []*Entry
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a scheduler over the given entries.
func New(b *broker.Client, entries []Entry) *Scheduler {
	s := &Scheduler{
		broker: b,
		logger: log.WithComponent("scheduler"),
		now:    time.Now,
	}
	for i := range entries {
		e := entries[i]
		s.entries = append(s.entries, &e)
	}
	return s
}

// Run blocks firing entries until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.logger.Warn().Str("event", "scheduler.empty").Msg("no entries to schedule")
		<-ctx.Done()
		return ctx.Err()
	}

	now := s.now()
	for _, e := range s.entries {
		e.next = e.Spec.Next(now)
		s.logger.Info().
			Str("event", "scheduler.entry_added").
			Str("entry", e.Name).
			Str("task", e.Task).
			Time("next_run", e.next).
			Msg("schedule entry registered")
	}

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			now := s.now()
			for _, e := range s.entries {
				if e.next.After(now) {
					continue
				}
				s.fire(ctx, e)
				e.next = e.Spec.Next(now)
			}
			timer.Reset(s.untilNext())
		}
	}
}

// untilNext returns the wait until the earliest pending entry, clamped to
// a floor so a past-due entry does not busy-loop the timer.
func (s *Scheduler) untilNext() time.Duration {
	now := s.now()
	min := time.Duration(-1)
	for _, e := range s.entries {
		d := e.next.Sub(now)
		if min < 0 || d < min {
			min = d
		}
	}
	if min < 50*time.Millisecond {
		min = 50 * time.Millisecond
	}
	return min
}

// fire enqueues one entry behind its Redis lease.
func (s *Scheduler) fire(ctx context.Context, e *Entry) {
	mutex := s.broker.NewMutex(fmt.Sprintf("crm:beat:lock:%s", e.Name), lockTTL)
	got, err := mutex.TryLock(ctx)
	if err != nil {
		metrics.IncSchedulerTick(e.Name, "error")
		s.logger.Error().Err(err).
			Str("event", "scheduler.lock_error").
			Str("entry", e.Name).
			Msg("failed to acquire tick lease")
		return
	}
	if !got {
		metrics.IncSchedulerTick(e.Name, "skipped")
		s.logger.Debug().
			Str("event", "scheduler.tick_skipped").
			Str("entry", e.Name).
			Msg("tick held by another instance")
		return
	}
	// The lease is left to expire on its own: releasing it immediately
	// would let a second instance on the same tick enqueue again.

	task, err := s.broker.Enqueue(ctx, e.Task, e.Payload)
	if err != nil {
		metrics.IncSchedulerTick(e.Name, "error")
		s.logger.Error().Err(err).
			Str("event", "scheduler.enqueue_error").
			Str("entry", e.Name).
			Msg("failed to enqueue scheduled task")
		return
	}

	metrics.IncSchedulerTick(e.Name, "enqueued")
	s.logger.Info().
		Str("event", "scheduler.tick").
		Str("entry", e.Name).
		Str("task_id", task.ID).
		Msg("scheduled task enqueued")
}
