package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// SetZoomLink upserts the conference URL for a teacher keyed by full name,
// binding it to the teachers reference row when one matches.
func (s *Store) SetZoomLink(ctx context.Context, teacherName, url string) error {
	name := strings.TrimSpace(teacherName)
	if name == "" {
		return fmt.Errorf("set zoom link: empty teacher name")
	}

	var teacherID *int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM teachers WHERE full_name = $1`, name).Scan(&teacherID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("resolve teacher %q: %w", name, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO zoom_links (teacher_id, teacher_name, url, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (teacher_name) DO UPDATE SET
			teacher_id = COALESCE(EXCLUDED.teacher_id, zoom_links.teacher_id),
			url = EXCLUDED.url,
			updated_at = NOW()`,
		teacherID, name, url)
	if err != nil {
		return fmt.Errorf("upsert zoom link for %q: %w", name, err)
	}
	return nil
}

// ZoomForEvent resolves the conference URL for an event's teacher: the full
// display name first, the teacher reference second. Empty string when none.
func (s *Store) ZoomForEvent(ctx context.Context, e *timetable.Event) (string, error) {
	if name := strings.TrimSpace(e.TeacherFull); name != "" {
		var url string
		err := s.pool.QueryRow(ctx, "zoom_by_name", name).Scan(&url)
		if err == nil {
			return url, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("zoom by name %q: %w", name, err)
		}
	}
	if e.TeacherID != 0 {
		var url string
		err := s.pool.QueryRow(ctx, "zoom_by_teacher", e.TeacherID).Scan(&url)
		if err == nil {
			return url, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("zoom by teacher %d: %w", e.TeacherID, err)
		}
	}
	return "", nil
}

// ListZoomTeacherNames returns every distinct teacher full name seen in
// events or the reference list, for paging in the bot UI.
func (s *Store) ListZoomTeacherNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT name FROM (
			SELECT teacher_full AS name FROM timetable_events WHERE teacher_full IS NOT NULL
			UNION
			SELECT full_name AS name FROM teachers
		) names WHERE name <> '' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teacher names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan teacher name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
