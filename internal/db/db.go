// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/militrik/MKRschedule-bot/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the statements the scheduler and the
// notification scanner fire on every cycle. Prepared statements eliminate
// parse overhead on the per-scan hot path.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Subscriber registry
		"distinct_group_ids":   "SELECT DISTINCT group_id FROM users WHERE group_id IS NOT NULL",
		"distinct_teacher_ids": "SELECT DISTINCT teacher_id FROM users WHERE teacher_id IS NOT NULL AND role = 'teacher'",
		"group_by_id":          "SELECT id, faculty_id, course, title, last_checked_at FROM groups WHERE id = $1",
		"teacher_by_id":        "SELECT id, chair_id, full_name, short_name, last_checked_at FROM teachers WHERE id = $1",

		// Scanner: users with a bound entity
		"users_with_entity": `SELECT user_id, role, faculty_id, course, group_id, chair_id, teacher_id, notify_offset_min
			FROM users WHERE group_id IS NOT NULL OR teacher_id IS NOT NULL`,

		// Scanner & reconciler: event range queries per entity kind
		"events_for_group_range": `SELECT ` + eventColumns + `
			FROM timetable_events WHERE group_id = $1 AND date >= $2 AND date <= $3
			ORDER BY date, time_start, lesson_number`,
		"events_for_teacher_range": `SELECT ` + eventColumns + `
			FROM timetable_events WHERE teacher_id = $1 AND date >= $2 AND date <= $3
			ORDER BY date, time_start, lesson_number`,
		"events_for_group_since": `SELECT ` + eventColumns + `
			FROM timetable_events WHERE group_id = $1 AND date >= $2
			ORDER BY date, time_start, lesson_number`,
		"events_for_teacher_since": `SELECT ` + eventColumns + `
			FROM timetable_events WHERE teacher_id = $1 AND date >= $2
			ORDER BY date, time_start, lesson_number`,

		// Scanner: de-dup guard within a tolerance window around scheduled_for
		"has_notification_near": `SELECT 1 FROM notification_log
			WHERE user_id = $1 AND event_id = $2
			  AND scheduled_for BETWEEN $3 AND $4
			LIMIT 1`,

		// Zoom lookups: full name first, teacher id fallback
		"zoom_by_name":    "SELECT url FROM zoom_links WHERE teacher_name = $1",
		"zoom_by_teacher": "SELECT url FROM zoom_links WHERE teacher_id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

const eventColumns = `id, group_id, teacher_id, date, weekday, lesson_number,
	time_start, time_end, subject_code, subject_full, lesson_type, auditory,
	teacher_short, teacher_full, groups_text, source_added, source_url, source_hash, updated_at`

// EventColumns is the canonical select list shared with the store layer.
func EventColumns() string { return eventColumns }
