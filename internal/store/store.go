// Package store is the pgx-backed persistence layer: reference-list
// upserts, subscriber registry queries, event range queries, transactional
// differential-sync application, the notification log and retention
// deletes.
//
// Statement names used with Query/QueryRow are prepared per connection in
// internal/db.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// Store wraps the connection pool with domain queries.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an established pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// Reference lists (owned by reference-data sync; upsert-only, never deleted)
// --------------------------------------------------------------------------

// UpsertFaculty inserts or renames a faculty.
func (s *Store) UpsertFaculty(ctx context.Context, f timetable.Faculty) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO faculties (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
		f.ID, f.Title)
	return err
}

// UpsertChair inserts or renames a chair.
func (s *Store) UpsertChair(ctx context.Context, c timetable.Chair) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chairs (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
		c.ID, c.Title)
	return err
}

// UpsertGroup inserts or updates a group's descriptive attributes.
func (s *Store) UpsertGroup(ctx context.Context, g timetable.Group) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, faculty_id, course, title) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			faculty_id = EXCLUDED.faculty_id,
			course = EXCLUDED.course,
			title = EXCLUDED.title`,
		g.ID, nilZero(g.FacultyID), g.Course, g.Title)
	return err
}

// UpsertTeacher inserts or updates a teacher, deriving the short name from
// the full name when not already set.
func (s *Store) UpsertTeacher(ctx context.Context, t timetable.Teacher) error {
	short := t.ShortName
	if short == "" {
		short = timetable.ShortName(t.FullName)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO teachers (id, chair_id, full_name, short_name) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			chair_id = EXCLUDED.chair_id,
			full_name = EXCLUDED.full_name,
			short_name = COALESCE(NULLIF(teachers.short_name, ''), EXCLUDED.short_name)`,
		t.ID, nilZero(t.ChairID), t.FullName, short)
	return err
}

// GroupByID returns one group or ErrNotFound.
func (s *Store) GroupByID(ctx context.Context, id int64) (*timetable.Group, error) {
	var g timetable.Group
	var facultyID *int64
	var course *int
	var checked *time.Time
	err := s.pool.QueryRow(ctx, "group_by_id", id).Scan(&g.ID, &facultyID, &course, &g.Title, &checked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	g.FacultyID = deref(facultyID)
	g.Course = derefInt(course)
	g.LastCheckedAt = derefTime(checked)
	return &g, nil
}

// TeacherByID returns one teacher or ErrNotFound.
func (s *Store) TeacherByID(ctx context.Context, id int64) (*timetable.Teacher, error) {
	var t timetable.Teacher
	var chairID *int64
	var short *string
	var checked *time.Time
	err := s.pool.QueryRow(ctx, "teacher_by_id", id).Scan(&t.ID, &chairID, &t.FullName, &short, &checked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("teacher %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher %d: %w", id, err)
	}
	t.ChairID = deref(chairID)
	t.ShortName = derefStr(short)
	t.LastCheckedAt = derefTime(checked)
	return &t, nil
}

// --------------------------------------------------------------------------
// Subscriber registry
// --------------------------------------------------------------------------

// DistinctEntityIDs returns every entity ID of the given kind bound to at
// least one user.
func (s *Store) DistinctEntityIDs(ctx context.Context, kind timetable.EntityKind) ([]int64, error) {
	stmt := "distinct_group_ids"
	if kind == timetable.KindTeacher {
		stmt = "distinct_teacher_ids"
	}
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("distinct %s ids: %w", kind, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UsersWithEntity returns every user bound to a group or teacher.
func (s *Store) UsersWithEntity(ctx context.Context) ([]timetable.User, error) {
	rows, err := s.pool.Query(ctx, "users_with_entity")
	if err != nil {
		return nil, fmt.Errorf("users with entity: %w", err)
	}
	defer rows.Close()

	var users []timetable.User
	for rows.Next() {
		var u timetable.User
		var facultyID, groupID, chairID, teacherID *int64
		var course *int
		if err := rows.Scan(&u.ID, &u.Role, &facultyID, &course, &groupID, &chairID, &teacherID, &u.NotifyOffsetMin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.FacultyID = deref(facultyID)
		u.Course = derefInt(course)
		u.GroupID = deref(groupID)
		u.ChairID = deref(chairID)
		u.TeacherID = deref(teacherID)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --------------------------------------------------------------------------
// Null helpers
// --------------------------------------------------------------------------

func nilZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nilEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefTime(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return *p
}
