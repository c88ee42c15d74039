package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaggerOffsetsEvenSpread(t *testing.T) {
	interval := time.Hour
	offsets := staggerOffsets(4, interval)
	require.Len(t, offsets, 4)

	assert.Equal(t, time.Duration(0), offsets[0])
	for i := 1; i < len(offsets); i++ {
		gap := offsets[i] - offsets[i-1]
		assert.Equal(t, 15*time.Minute, gap, "offset %d", i)
	}
	assert.Less(t, offsets[len(offsets)-1], interval)
}

func TestStaggerOffsetsMinimumSpacing(t *testing.T) {
	// 10 entities over 5 seconds would collide without a floor.
	offsets := staggerOffsets(10, 5*time.Second)
	for i := 1; i < len(offsets); i++ {
		assert.GreaterOrEqual(t, offsets[i]-offsets[i-1], time.Second)
	}
}

func TestStaggerOffsetsEmpty(t *testing.T) {
	assert.Empty(t, staggerOffsets(0, time.Hour))
}

func TestStaggerScheduleFirstFiring(t *testing.T) {
	first := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	sched := &staggerSchedule{interval: time.Hour, jitterMax: 0, first: first}

	next := sched.Next(first.Add(-30 * time.Minute))
	assert.Equal(t, first, next)
}

func TestStaggerScheduleSteadyState(t *testing.T) {
	first := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	jitter := time.Minute
	sched := &staggerSchedule{interval: time.Hour, jitterMax: jitter, first: first}

	at := first
	for i := 0; i < 20; i++ {
		next := sched.Next(at)
		require.True(t, next.After(at))
		gap := next.Sub(at)
		assert.GreaterOrEqual(t, gap, time.Hour)
		assert.LessOrEqual(t, gap, time.Hour+jitter)
		at = next
	}
}

func TestRandomOffsetWithinInterval(t *testing.T) {
	interval := time.Hour
	for i := 0; i < 100; i++ {
		off := randomOffset(interval)
		assert.GreaterOrEqual(t, off, time.Duration(0))
		assert.Less(t, off, interval)
	}
}

func TestRandomJitterBounds(t *testing.T) {
	assert.Equal(t, time.Duration(0), randomJitter(0))
	for i := 0; i < 100; i++ {
		j := randomJitter(time.Minute)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.LessOrEqual(t, j, time.Minute)
	}
}
