// Package notify implements the reminder scanner: every cycle it computes a
// per-user sliding window shifted by the user's personal lead time, finds
// events whose start instant just entered that window, and performs
// deduplicated delivery with a persistent send log.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Store is the slice of the persistence layer the scanner consumes.
type Store interface {
	UsersWithEntity(ctx context.Context) ([]timetable.User, error)
	EventsForEntityRange(ctx context.Context, kind timetable.EntityKind, entityID int64, start, end time.Time) ([]timetable.Event, error)
	HasNotificationNear(ctx context.Context, userID, eventID int64, scheduledFor time.Time, tolerance time.Duration) (bool, error)
	InsertNotification(ctx context.Context, n timetable.NotificationLog) error
	ZoomForEvent(ctx context.Context, e *timetable.Event) (string, error)
}

// Delivery pushes one rendered message to a user. No implicit retry: a
// failed send is recorded and the dedup slot is consumed.
type Delivery interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Clock supplies local-zone time; satisfied by internal/clock.Clock.
type Clock interface {
	Now() time.Time
	Combine(date time.Time, hhmm string) (time.Time, error)
}

// Result is one sweep's outcome.
type Result struct {
	UsersChecked int
	Candidates   int
	Sent         int
	Failed       int
	Deduped      int
	Errors       []string
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf("users=%d candidates=%d sent=%d failed=%d deduped=%d",
		r.UsersChecked, r.Candidates, r.Sent, r.Failed, r.Deduped)
}

// Scanner holds the process-wide scan anchor. A sweep only advances the
// anchor after the whole user batch has been processed, so a paused process
// resumes without skipping events.
type Scanner struct {
	store         Store
	delivery      Delivery
	clock         Clock
	interval      time.Duration
	tolerance     time.Duration
	defaultOffset int
	logger        *slog.Logger

	mu       sync.Mutex
	lastScan time.Time
}

// NewScanner wires a scanner. interval is the scan cadence, tolerance the
// de-dup window around an event instant, defaultOffsetMin the lead time for
// users without a personal one.
func NewScanner(store Store, delivery Delivery, clk Clock, interval, tolerance time.Duration, defaultOffsetMin int, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		store:         store,
		delivery:      delivery,
		clock:         clk,
		interval:      interval,
		tolerance:     tolerance,
		defaultOffset: defaultOffsetMin,
		logger:        logger,
	}
}

// LastScan returns the current anchor, zero before the first sweep.
func (s *Scanner) LastScan() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

// Scan runs one sweep. A failure in one user's batch never aborts the
// siblings; per-user errors are collected in the result.
func (s *Scanner) Scan(ctx context.Context) Result {
	var res Result

	now := s.clock.Now()

	s.mu.Lock()
	last := s.lastScan
	if last.IsZero() {
		last = now.Add(-s.interval)
	}
	s.mu.Unlock()

	users, err := s.store.UsersWithEntity(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("load users: %v", err))
		return res
	}

	for i := range users {
		u := &users[i]
		kind, entityID, ok := u.Entity()
		if !ok {
			continue
		}
		res.UsersChecked++
		if err := s.scanUser(ctx, u, kind, entityID, last, now, &res); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("user %d: %v", u.ID, err))
		}
	}

	s.mu.Lock()
	s.lastScan = now
	s.mu.Unlock()

	return res
}

// scanUser processes one user's window: (last+offset, now+offset], half
// open so an event sitting exactly on the trailing edge fires exactly once.
func (s *Scanner) scanUser(ctx context.Context, u *timetable.User, kind timetable.EntityKind, entityID int64, last, now time.Time, res *Result) error {
	offsetMin := u.ClampedOffsetOr(s.defaultOffset)
	offset := time.Duration(offsetMin) * time.Minute
	windowStart := last.Add(offset)
	windowEnd := now.Add(offset)

	events, err := s.store.EventsForEntityRange(ctx, kind, entityID, dateOnly(windowStart), dateOnly(windowEnd))
	if err != nil {
		return err
	}

	for i := range events {
		e := &events[i]
		if e.TimeStart == "" {
			continue // cannot be scheduled precisely
		}
		instant, err := s.clock.Combine(e.Date, e.TimeStart)
		if err != nil {
			continue
		}
		if !instant.After(windowStart) || instant.After(windowEnd) {
			continue
		}
		res.Candidates++

		seen, err := s.store.HasNotificationNear(ctx, u.ID, e.ID, instant, s.tolerance)
		if err != nil {
			return err
		}
		if seen {
			res.Deduped++
			continue
		}

		s.notify(ctx, u, e, offsetMin, instant, now, res)
	}
	return nil
}

// notify renders, delivers and logs one reminder. Delivery failure writes a
// failed row so the attempt is not repeated forever against an unreachable
// recipient.
func (s *Scanner) notify(ctx context.Context, u *timetable.User, e *timetable.Event, offsetMin int, instant, now time.Time, res *Result) {
	zoomURL, err := s.store.ZoomForEvent(ctx, e)
	if err != nil {
		// A broken zoom lookup must not block the reminder itself.
		s.logger.Warn("zoom lookup failed", "user", u.ID, "event", e.ID, "error", err)
		zoomURL = ""
	}

	text := RenderReminder(u, e, zoomURL, offsetMin)

	rec := timetable.NotificationLog{
		UserID:       u.ID,
		GroupID:      e.GroupID,
		TeacherID:    e.TeacherID,
		EventID:      e.ID,
		ScheduledFor: instant,
	}

	if sendErr := s.delivery.Send(ctx, u.ID, text); sendErr != nil {
		rec.Status = timetable.StatusFailed
		rec.Error = sendErr.Error()
		res.Failed++
		s.logger.Warn("reminder delivery failed", "user", u.ID, "event", e.ID, "error", sendErr)
	} else {
		sentAt := now
		rec.SentAt = &sentAt
		rec.Status = timetable.StatusSent
		res.Sent++
	}

	if err := s.store.InsertNotification(ctx, rec); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("log notification user=%d event=%d: %v", u.ID, e.ID, err))
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
