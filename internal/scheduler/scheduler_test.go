package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCleanupService(st *fakeStore, clk *fakeClock, eventDays, notifDays int) *Service {
	return New(st, nil, nil, clk, Options{
		EventRetentionDays:        eventDays,
		NotificationRetentionDays: notifDays,
		CleanupHour:               3,
		CleanupMinute:             30,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunCleanupCutoffs(t *testing.T) {
	// 10:00 on March 2nd; local midnight anchors the event cutoff.
	clk := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	st := &fakeStore{eventsDeleted: 4, logsDeleted: 9}

	svc := newCleanupService(st, clk, 90, 30)
	svc.runCleanup(context.Background())

	require.Equal(t, 1, st.cleanupCalls)

	// Events strictly older than today-90d go; a row dated exactly on the
	// cutoff survives the `date < cutoff` comparison.
	wantEventCutoff := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, wantEventCutoff, st.eventCutoff)
	assert.Equal(t, clk.Today().AddDate(0, 0, -90), st.eventCutoff)

	// Log rows age from the current instant, not from midnight.
	wantNotifCutoff := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, wantNotifCutoff, st.notifCutoff)
}

func TestRunCleanupShortRetention(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)}
	st := &fakeStore{}

	svc := newCleanupService(st, clk, 1, 1)
	svc.runCleanup(context.Background())

	require.Equal(t, 1, st.cleanupCalls)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), st.eventCutoff,
		"one-day retention keeps yesterday's events")
	assert.Equal(t, time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC), st.notifCutoff)
}

func TestRunCleanupStoreError(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)}
	st := &fakeStore{cleanupErr: errors.New("deadlock detected")}

	svc := newCleanupService(st, clk, 90, 30)
	svc.runCleanup(context.Background())

	// The sweep logs and returns; the next nightly firing retries.
	assert.Equal(t, 1, st.cleanupCalls)
}

func TestSnapshotEmptyService(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	svc := newCleanupService(&fakeStore{}, clk, 90, 30)

	snap := svc.Snapshot()
	assert.Empty(t, snap.Entities)
	assert.True(t, snap.LastScan.IsZero())
}
