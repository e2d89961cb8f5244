package provisioning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countStep struct{ n int }

func (countStep) Kind() StepKind { return StepKind("count") }

func TestTimerSchedulerWaitsForFollowUps(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []int

	var s *TimerScheduler
	s = NewTimerScheduler(func(ctx context.Context, step Step) {
		c := step.(countStep)
		mu.Lock()
		seen = append(seen, c.n)
		mu.Unlock()
		// Each step schedules one follow-up; Wait must cover the whole
		// cascade, not just the first timer.
		if c.n < 3 {
			s.Schedule(countStep{n: c.n + 1}, time.Millisecond)
		}
	})

	s.Schedule(countStep{n: 1}, 0)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestTimerSchedulerClose(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	dispatched := 0
	s := NewTimerScheduler(func(ctx context.Context, step Step) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	})

	s.Close()
	s.Schedule(countStep{n: 1}, 0)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, dispatched)
}
