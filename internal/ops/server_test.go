package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/militrik/MKRschedule-bot/internal/scheduler"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

type fakePinger struct {
	err error
}

func (f fakePinger) HealthCheck(ctx context.Context) error { return f.err }

type fakeStatus struct {
	snap scheduler.Snapshot
}

func (f fakeStatus) Snapshot() scheduler.Snapshot { return f.snap }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthzOK(t *testing.T) {
	srv := NewServer(":0", fakePinger{}, fakeStatus{}, nil, testLogger())
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthzUnhealthy(t *testing.T) {
	srv := NewServer(":0", fakePinger{err: errors.New("connection refused")}, fakeStatus{}, nil, testLogger())
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestStatusz(t *testing.T) {
	snap := scheduler.Snapshot{
		Entities: []scheduler.EntityStatus{
			{Kind: timetable.KindGroup, EntityID: 1021, NextRun: time.Now().Add(time.Hour)},
		},
		LastScan: time.Now(),
	}
	srv := NewServer(":0", fakePinger{}, fakeStatus{snap: snap}, nil, testLogger())
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entities []scheduler.EntityStatus `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entities, 1)
	assert.Equal(t, int64(1021), body.Entities[0].EntityID)
}
