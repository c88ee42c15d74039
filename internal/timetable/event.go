package timetable

import (
	"strconv"
	"strings"
	"time"
)

// Event is the atomic schedulable unit: one lesson slot on one date, owned
// by exactly one subscriber entity (GroupID xor TeacherID).
//
// TimeStart/TimeEnd are local wall-clock "HH:MM" strings without a date;
// empty means the source did not report a time. LessonNumber is the pair
// number, zero when absent.
type Event struct {
	ID        int64
	GroupID   int64
	TeacherID int64

	Date         time.Time // calendar date, midnight UTC as scanned from a DATE column
	Weekday      int
	LessonNumber int
	TimeStart    string
	TimeEnd      string

	SubjectCode string
	SubjectFull string
	LessonType  string
	Auditory    string

	TeacherShort string
	TeacherFull  string

	// GroupsText is the free-text group list shown in the teacher view.
	GroupsText string

	SourceAdded time.Time
	SourceURL   string
	SourceHash  string
	UpdatedAt   time.Time
}

// DateKey returns the calendar date in ISO form, the date half of the
// natural key.
func (e *Event) DateKey() string {
	return e.Date.Format("2006-01-02")
}

// Key is the natural key matching events across refreshes: the date plus
// the lesson number, falling back to the start time, falling back to a
// subject-derived catch-all. The catch-all gives rows with neither a number
// nor a time no stable identity across refreshes; that is a limitation of
// the source, not something to repair here.
func (e *Event) Key() string {
	slot := ""
	switch {
	case e.LessonNumber != 0:
		slot = "n:" + strconv.Itoa(e.LessonNumber)
	case strings.TrimSpace(e.TimeStart) != "":
		slot = "t:" + strings.TrimSpace(e.TimeStart)
	default:
		slot = "s:" + strings.TrimSpace(e.SubjectCode) + "|" + strings.TrimSpace(e.SubjectFull)
	}
	return e.DateKey() + "/" + slot
}

// Fingerprint is the tuple of mutable descriptive fields, each trimmed,
// compared to decide whether a key-matched event needs an in-place update.
func (e *Event) Fingerprint() string {
	fields := []string{
		strings.TrimSpace(e.TimeStart),
		strings.TrimSpace(e.TimeEnd),
		strconv.Itoa(e.LessonNumber),
		strings.TrimSpace(e.SubjectCode),
		strings.TrimSpace(e.SubjectFull),
		strings.TrimSpace(e.LessonType),
		strings.TrimSpace(e.Auditory),
		strings.TrimSpace(e.TeacherFull),
		strings.TrimSpace(e.TeacherShort),
		strings.TrimSpace(e.GroupsText),
	}
	return strings.Join(fields, "\x1f")
}

// Owner returns the owning subscriber entity reference.
func (e *Event) Owner() (EntityKind, int64) {
	if e.TeacherID != 0 {
		return KindTeacher, e.TeacherID
	}
	return KindGroup, e.GroupID
}
