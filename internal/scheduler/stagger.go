package scheduler

import (
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

// staggerSchedule fires once at a chosen initial instant, then every
// interval with a fresh bounded jitter per firing. Re-jittering each period
// keeps independently scheduled entities from drifting back into synchrony
// over time.
type staggerSchedule struct {
	interval  time.Duration
	jitterMax time.Duration
	first     time.Time
}

var _ cron.Schedule = (*staggerSchedule)(nil)

func (s *staggerSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return t.Add(s.interval + randomJitter(s.jitterMax))
}

// staggerOffsets spreads n entities evenly across one interval: entity i
// starts i*(interval/n) into the period.
func staggerOffsets(n int, interval time.Duration) []time.Duration {
	if n <= 0 {
		return nil
	}
	spacing := interval / time.Duration(n)
	if spacing < time.Second {
		spacing = time.Second
	}
	offsets := make([]time.Duration, n)
	for i := range offsets {
		offsets[i] = time.Duration(i) * spacing
	}
	return offsets
}

// randomOffset picks a uniformly random delay within one interval, used for
// entities joining between full re-staggers.
func randomOffset(interval time.Duration) time.Duration {
	if interval <= time.Second {
		return 0
	}
	return time.Duration(rand.Int63n(int64(interval)))
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
