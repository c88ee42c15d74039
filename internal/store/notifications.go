package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// HasNotificationNear reports whether a log row already exists for
// (user, event) with scheduled_for within ±tolerance of the given instant.
// This is the de-dup guard against double delivery when scan windows
// overlap across runs or process restarts.
func (s *Store) HasNotificationNear(ctx context.Context, userID, eventID int64, scheduledFor time.Time, tolerance time.Duration) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, "has_notification_near",
		userID, eventID, scheduledFor.Add(-tolerance), scheduledFor.Add(tolerance)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notification lookup: %w", err)
	}
	return true, nil
}

// InsertNotification records one delivery attempt. Rows are append-only.
func (s *Store) InsertNotification(ctx context.Context, n timetable.NotificationLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_log (
			user_id, group_id, teacher_id, event_id,
			scheduled_for, sent_at, status, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.UserID, nilZero(n.GroupID), nilZero(n.TeacherID), n.EventID,
		n.ScheduledFor, n.SentAt, n.Status, nilEmpty(n.Error),
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// CleanupOld enforces retention: events dated strictly before
// eventCutoff and log rows whose sent_at (or scheduled_for when never sent)
// is before notifCutoff. Log rows go first so nothing dangles; rows
// referencing deleted events fall with them via the FK cascade.
// Returns (events deleted, log rows deleted).
func (s *Store) CleanupOld(ctx context.Context, eventCutoff time.Time, notifCutoff time.Time) (int64, int64, error) {
	var nEvents, nLogs int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM notification_log
			WHERE (sent_at IS NULL AND scheduled_for < $1)
			   OR (sent_at IS NOT NULL AND sent_at < $1)`, notifCutoff)
		if err != nil {
			return fmt.Errorf("delete old notification logs: %w", err)
		}
		nLogs = tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`DELETE FROM timetable_events WHERE date < $1`, eventCutoff)
		if err != nil {
			return fmt.Errorf("delete old events: %w", err)
		}
		nEvents = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return nEvents, nLogs, nil
}
