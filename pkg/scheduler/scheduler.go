// Package scheduler fires tasks once or periodically, with precise
// (drift-compensating) and drifting firing modes, mirroring the
// spawn_later-based scheduler in the Python original.
package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Task is the unit of work a Scheduler runs. A non-nil error from a
// periodic Task stops that chain; schedule_once tasks simply end.
type Task func() error

// Cancellable is a handle to a scheduled task. A single Cancellable's
// successive firings never run concurrently with themselves. cancel()
// is idempotent and safe to call from any goroutine, including one that
// races with the timer goroutine rearming this same Cancellable.
type Cancellable struct {
	mu        sync.Mutex
	cancelled bool
	timer     *clock.Timer
}

// IsCancelled reports whether this Cancellable has been cancelled.
func (c *Cancellable) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// setTimer rearms the Cancellable with a freshly created timer for the
// next firing. It refuses to do so once cancelled, which is what closes
// the lost-cancel race described in spec §4.1/§9: a firing in flight can
// never resurrect a Cancellable that cancel() has already claimed.
func (c *Cancellable) setTimer(t *clock.Timer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return false
	}
	c.timer = t
	return true
}

// Cancel prevents the next firing. It returns true only for the call
// that actually transitions the Cancellable to cancelled.
func (c *Cancellable) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancelled {
		return false
	}
	c.cancelled = true
	return true
}

// Scheduler runs delayed and periodic tasks against an injectable clock,
// so precise/drifting timing behavior can be asserted in tests without
// sleeping in real time.
type Scheduler struct {
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a Scheduler backed by the real wall clock.
func New(logger *zap.Logger) *Scheduler {
	return NewWithClock(clock.New(), logger)
}

// NewWithClock builds a Scheduler against an arbitrary clock.Clock,
// primarily so tests can use clock.NewMock.
func NewWithClock(c clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{clock: c, logger: logger}
}

// ScheduleOnce runs task exactly once after delay.
func (s *Scheduler) ScheduleOnce(delay time.Duration, task Task) *Cancellable {
	c := &Cancellable{}
	timer := s.clock.AfterFunc(delay, func() {
		if c.IsCancelled() {
			return
		}
		if err := task(); err != nil {
			s.logger.Error("scheduled task failed", zap.Error(err))
		}
	})
	c.setTimer(timer)
	return c
}

// ScheduleAtFixedRate runs task periodically in precise mode: firings
// target the ideal times t0 + k*interval. If a run overruns a period the
// drift is absorbed into the next delay's modulus rather than replaying
// missed ticks, so the long-term average rate stays 1/interval.
func (s *Scheduler) ScheduleAtFixedRate(initialDelay, interval time.Duration, task Task) *Cancellable {
	return s.schedulePeriodic(initialDelay, interval, task, true)
}

// ScheduleWithFixedDelay runs task periodically in drifting mode: the
// next delay is always exactly `delay` measured from the end of the
// previous firing, so the average rate is slower than 1/delay by the
// mean run time of task.
func (s *Scheduler) ScheduleWithFixedDelay(initialDelay, delay time.Duration, task Task) *Cancellable {
	return s.schedulePeriodic(initialDelay, delay, task, false)
}

func (s *Scheduler) schedulePeriodic(initialDelay, interval time.Duration, task Task, precise bool) *Cancellable {
	c := &Cancellable{}
	started := s.clock.Now().Add(initialDelay)

	var arm func(delay time.Duration)
	arm = func(delay time.Duration) {
		timer := s.clock.AfterFunc(delay, func() {
			s.fire(c, started, interval, task, precise, arm)
		})
		c.setTimer(timer)
	}
	arm(initialDelay)
	return c
}

// fire runs one periodic tick and rearms the Cancellable for the next
// one, unless the task failed or the Cancellable was cancelled in the
// meantime. Preserved from the source: a firing that lands before
// `started` (e.g. woken early by clock skew) is skipped entirely rather
// than run, per the "first-tick guard" in spec §9/§8 scenario S6.
func (s *Scheduler) fire(c *Cancellable, started time.Time, interval time.Duration, task Task, precise bool, arm func(time.Duration)) {
	if c.IsCancelled() {
		return
	}
	now := s.clock.Now()

	var nextDelay time.Duration
	if precise || now.Before(started) {
		drift := now.Sub(started) % interval
		if drift < 0 {
			drift += interval
		}
		nextDelay = interval - drift
	} else {
		nextDelay = interval
	}

	if !now.Before(started) {
		if err := task(); err != nil {
			s.logger.Error("periodic task failed, stopping chain", zap.Error(err))
			return
		}
	}

	if c.IsCancelled() {
		return
	}
	arm(nextDelay)
}
