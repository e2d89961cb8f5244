package provisioning

import (
	"context"
	"sync"
	"time"
)

// Scheduler re-enters a chain after a delay. Schedule is fire-and-forget:
// the caller never awaits a result, the scheduled step runs on an
// unspecified goroutine.
type Scheduler interface {
	Schedule(step Step, delay time.Duration)
}

// TimerScheduler runs scheduled steps off timers. An in-flight counter
// covers both waiting timers and running handlers, so Wait returns only at
// chain quiescence: a handler that schedules a follow-up step increments the
// counter before its own decrement.
type TimerScheduler struct {
	dispatch func(context.Context, Step)

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewTimerScheduler builds a scheduler delivering steps to dispatch.
func NewTimerScheduler(dispatch func(context.Context, Step)) *TimerScheduler {
	return &TimerScheduler{dispatch: dispatch}
}

// Schedule implements Scheduler.
func (s *TimerScheduler) Schedule(step Step, delay time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.dispatch(context.Background(), step)
	})
}

// Wait blocks until every scheduled step and its transitive follow-ups have
// finished.
func (s *TimerScheduler) Wait() { s.wg.Wait() }

// Close stops accepting new steps. Steps already scheduled still run; use
// Wait to drain them.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
