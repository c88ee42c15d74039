package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/militrik/MKRschedule-bot/internal/reconcile"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// EventsForEntitySince returns the stored events for one entity with
// date >= cutoff, the reconciler's working set.
func (s *Store) EventsForEntitySince(ctx context.Context, kind timetable.EntityKind, entityID int64, cutoff time.Time) ([]timetable.Event, error) {
	stmt := "events_for_group_since"
	if kind == timetable.KindTeacher {
		stmt = "events_for_teacher_since"
	}
	rows, err := s.pool.Query(ctx, stmt, entityID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("events since for %s %d: %w", kind, entityID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForEntityRange returns the stored events for one entity within the
// inclusive date range [start, end].
func (s *Store) EventsForEntityRange(ctx context.Context, kind timetable.EntityKind, entityID int64, start, end time.Time) ([]timetable.Event, error) {
	stmt := "events_for_group_range"
	if kind == timetable.KindTeacher {
		stmt = "events_for_teacher_range"
	}
	rows, err := s.pool.Query(ctx, stmt, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("events range for %s %d: %w", kind, entityID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ApplySync commits one entity's reconciliation as a single transaction:
// deletes, inserts, in-place updates, then the last-checked stamp on the
// subscriber row. Any failure rolls the whole unit of work back.
func (s *Store) ApplySync(ctx context.Context, kind timetable.EntityKind, entityID int64, ch reconcile.Changes) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if len(ch.Delete) > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM timetable_events WHERE id = ANY($1)`, ch.Delete); err != nil {
				return fmt.Errorf("delete events: %w", err)
			}
		}

		for _, e := range ch.Insert {
			if _, err := tx.Exec(ctx, `
				INSERT INTO timetable_events (
					group_id, teacher_id, date, weekday, lesson_number,
					time_start, time_end, subject_code, subject_full, lesson_type,
					auditory, teacher_short, teacher_full, groups_text,
					source_added, source_url, source_hash
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
				nilZero(e.GroupID), nilZero(e.TeacherID), e.Date, e.Weekday, e.LessonNumber,
				nilEmpty(e.TimeStart), nilEmpty(e.TimeEnd), nilEmpty(e.SubjectCode),
				nilEmpty(e.SubjectFull), nilEmpty(e.LessonType), nilEmpty(e.Auditory),
				nilEmpty(e.TeacherShort), nilEmpty(e.TeacherFull), nilEmpty(e.GroupsText),
				nilTime(e.SourceAdded), nilEmpty(e.SourceURL), nilEmpty(e.SourceHash),
			); err != nil {
				return fmt.Errorf("insert event %s: %w", e.Key(), err)
			}
		}

		for _, e := range ch.Update {
			if _, err := tx.Exec(ctx, `
				UPDATE timetable_events SET
					weekday = $2, lesson_number = $3, time_start = $4, time_end = $5,
					subject_code = $6, subject_full = $7, lesson_type = $8, auditory = $9,
					teacher_short = $10, teacher_full = $11, groups_text = $12,
					source_added = $13, source_url = $14, source_hash = $15,
					updated_at = NOW()
				WHERE id = $1`,
				e.ID, e.Weekday, e.LessonNumber, nilEmpty(e.TimeStart), nilEmpty(e.TimeEnd),
				nilEmpty(e.SubjectCode), nilEmpty(e.SubjectFull), nilEmpty(e.LessonType),
				nilEmpty(e.Auditory), nilEmpty(e.TeacherShort), nilEmpty(e.TeacherFull),
				nilEmpty(e.GroupsText), nilTime(e.SourceAdded), nilEmpty(e.SourceURL),
				nilEmpty(e.SourceHash),
			); err != nil {
				return fmt.Errorf("update event %d: %w", e.ID, err)
			}
		}

		table := "groups"
		if kind == timetable.KindTeacher {
			table = "teachers"
		}
		if _, err := tx.Exec(ctx,
			`UPDATE `+table+` SET last_checked_at = NOW() WHERE id = $1`, entityID); err != nil {
			return fmt.Errorf("stamp %s %d: %w", kind, entityID, err)
		}
		return nil
	})
}

func scanEvents(rows pgx.Rows) ([]timetable.Event, error) {
	var events []timetable.Event
	for rows.Next() {
		var e timetable.Event
		var groupID, teacherID *int64
		var weekday, lessonNumber *int
		var timeStart, timeEnd, subjCode, subjFull, lessonType, auditory *string
		var teacherShort, teacherFull, groupsText, sourceURL, sourceHash *string
		var sourceAdded *time.Time
		if err := rows.Scan(
			&e.ID, &groupID, &teacherID, &e.Date, &weekday, &lessonNumber,
			&timeStart, &timeEnd, &subjCode, &subjFull, &lessonType, &auditory,
			&teacherShort, &teacherFull, &groupsText, &sourceAdded, &sourceURL,
			&sourceHash, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.GroupID = deref(groupID)
		e.TeacherID = deref(teacherID)
		e.Weekday = derefInt(weekday)
		e.LessonNumber = derefInt(lessonNumber)
		e.TimeStart = derefStr(timeStart)
		e.TimeEnd = derefStr(timeEnd)
		e.SubjectCode = derefStr(subjCode)
		e.SubjectFull = derefStr(subjFull)
		e.LessonType = derefStr(lessonType)
		e.Auditory = derefStr(auditory)
		e.TeacherShort = derefStr(teacherShort)
		e.TeacherFull = derefStr(teacherFull)
		e.GroupsText = derefStr(groupsText)
		e.SourceAdded = derefTime(sourceAdded)
		e.SourceURL = derefStr(sourceURL)
		e.SourceHash = derefStr(sourceHash)
		events = append(events, e)
	}
	return events, rows.Err()
}

func nilTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
