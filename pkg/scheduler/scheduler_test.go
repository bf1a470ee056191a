package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler() (*Scheduler, *clock.Mock) {
	mc := clock.NewMock()
	return NewWithClock(mc, zap.NewNop()), mc
}

func TestScheduleOnceFiresExactlyOnce(t *testing.T) {
	s, mc := newTestScheduler()
	var calls int
	var mu sync.Mutex

	s.ScheduleOnce(5*time.Second, func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	mc.Add(5 * time.Second)
	mc.Add(time.Millisecond) // let the goroutine observe the fire
	time.Sleep(10 * time.Millisecond)

	mc.Add(10 * time.Second)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestScheduleAtFixedRatePrecision(t *testing.T) {
	s, mc := newTestScheduler()
	var mu sync.Mutex
	var fireTimes []time.Time

	interval := 10 * time.Second
	c := s.ScheduleAtFixedRate(0, interval, func() error {
		mu.Lock()
		fireTimes = append(fireTimes, mc.Now())
		mu.Unlock()
		return nil
	})
	defer c.Cancel()

	for i := 0; i < 5; i++ {
		mc.Add(interval)
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fireTimes, 5)
	for i, ft := range fireTimes {
		expected := time.Unix(0, 0).Add(time.Duration(i+1) * interval)
		assert.WithinDuration(t, expected, ft, time.Millisecond)
	}
}

func TestScheduleWithFixedDelayNeverFiresEarly(t *testing.T) {
	s, mc := newTestScheduler()
	var mu sync.Mutex
	var fireTimes []time.Time

	delay := 10 * time.Second
	c := s.ScheduleWithFixedDelay(0, delay, func() error {
		mu.Lock()
		fireTimes = append(fireTimes, mc.Now())
		mu.Unlock()
		return nil
	})
	defer c.Cancel()

	for i := 0; i < 3; i++ {
		mc.Add(delay)
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fireTimes, 3)
	for i := 1; i < len(fireTimes); i++ {
		assert.True(t, !fireTimes[i].Before(fireTimes[i-1].Add(delay)))
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s, mc := newTestScheduler()
	c := s.ScheduleAtFixedRate(0, time.Second, func() error { return nil })

	assert.True(t, c.Cancel())
	assert.False(t, c.Cancel())
	assert.False(t, c.Cancel())

	mc.Add(5 * time.Second)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, c.IsCancelled())
}

func TestPeriodicTaskErrorStopsChain(t *testing.T) {
	s, mc := newTestScheduler()
	var mu sync.Mutex
	var calls int

	s.ScheduleAtFixedRate(0, time.Second, func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		return assert.AnError
	})

	for i := 0; i < 3; i++ {
		mc.Add(time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}
