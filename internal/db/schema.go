package db

import (
	"context"
	"fmt"
)

// Migrate creates the schema when missing. Statements are idempotent so the
// bot can run it unconditionally at startup.
func (p *Pool) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS faculties (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chairs (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id BIGINT PRIMARY KEY,
		faculty_id BIGINT REFERENCES faculties(id),
		course INT,
		title TEXT NOT NULL,
		last_checked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id BIGINT PRIMARY KEY,
		chair_id BIGINT REFERENCES chairs(id),
		full_name TEXT NOT NULL,
		short_name TEXT,
		last_checked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		role TEXT NOT NULL DEFAULT 'student',
		faculty_id BIGINT REFERENCES faculties(id),
		course INT,
		group_id BIGINT REFERENCES groups(id),
		chair_id BIGINT REFERENCES chairs(id),
		teacher_id BIGINT REFERENCES teachers(id),
		notify_offset_min INT NOT NULL DEFAULT 5
	)`,
	`CREATE TABLE IF NOT EXISTS timetable_events (
		id BIGSERIAL PRIMARY KEY,
		group_id BIGINT REFERENCES groups(id),
		teacher_id BIGINT REFERENCES teachers(id),
		date DATE NOT NULL,
		weekday INT,
		lesson_number INT,
		time_start TEXT,
		time_end TEXT,
		subject_code TEXT,
		subject_full TEXT,
		lesson_type TEXT,
		auditory TEXT,
		teacher_short TEXT,
		teacher_full TEXT,
		groups_text TEXT,
		source_added DATE,
		source_url TEXT,
		source_hash TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_events_group_day
		ON timetable_events (group_id, date, time_start, lesson_number)`,
	`CREATE INDEX IF NOT EXISTS ix_events_teacher_day
		ON timetable_events (teacher_id, date, time_start, lesson_number)`,
	`CREATE TABLE IF NOT EXISTS zoom_links (
		id BIGSERIAL PRIMARY KEY,
		teacher_id BIGINT REFERENCES teachers(id),
		teacher_name TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// ON DELETE CASCADE keeps retention ordering trivial: removing an event
	// removes its log rows in the same statement.
	`CREATE TABLE IF NOT EXISTS notification_log (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		group_id BIGINT,
		teacher_id BIGINT,
		event_id BIGINT NOT NULL REFERENCES timetable_events(id) ON DELETE CASCADE,
		scheduled_for TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS ix_notification_dedup
		ON notification_log (user_id, event_id, scheduled_for)`,
}
