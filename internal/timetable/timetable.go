// Package timetable holds the domain model of the MKR schedule bot:
// subscriber entities (student groups and teachers), users, timetable
// events with their natural key and change fingerprint, zoom links, and
// the notification log.
package timetable

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Subscriber entities
// --------------------------------------------------------------------------

// EntityKind distinguishes the two subscriber entity flavours. Groups and
// teachers are fetched, reconciled and rendered differently but share the
// scheduling mechanics.
type EntityKind string

const (
	KindGroup   EntityKind = "group"
	KindTeacher EntityKind = "teacher"
)

// Faculty is a reference-list entry used to build group fetch requests.
type Faculty struct {
	ID    int64
	Title string
}

// Chair is a reference-list entry used to build teacher fetch requests.
type Chair struct {
	ID    int64
	Title string
}

// Group is a student-group subscriber entity.
type Group struct {
	ID            int64
	FacultyID     int64
	Course        int
	Title         string
	LastCheckedAt time.Time
}

// Teacher is a teacher subscriber entity.
type Teacher struct {
	ID            int64
	ChairID       int64
	FullName      string
	ShortName     string
	LastCheckedAt time.Time
}

// ShortName derives the abbreviated "Прізвище І.Б." form from a full name.
// Returns "" when the name has fewer than two words.
func ShortName(full string) string {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) < 2 {
		return ""
	}
	initial := func(s string) string {
		r := []rune(s)
		return string(r[0]) + "."
	}
	if len(parts) >= 3 {
		return parts[0] + " " + initial(parts[1]) + initial(parts[2])
	}
	return parts[0] + " " + initial(parts[1])
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

const (
	DefaultNotifyOffsetMin = 5
	MinNotifyOffsetMin     = 1
	MaxNotifyOffsetMin     = 120
)

// User is an end user of the bot. ID is the Telegram chat ID. A user is
// bound to at most one subscriber entity: GroupID for students, TeacherID
// for the teacher role. Zero means unbound.
type User struct {
	ID        int64
	Role      Role
	FacultyID int64
	Course    int
	GroupID   int64
	ChairID   int64
	TeacherID int64

	NotifyOffsetMin int
}

// Entity returns the subscriber entity this user follows, ok=false when the
// user is not bound to any entity yet.
func (u *User) Entity() (EntityKind, int64, bool) {
	if u.Role == RoleTeacher && u.TeacherID != 0 {
		return KindTeacher, u.TeacherID, true
	}
	if u.GroupID != 0 {
		return KindGroup, u.GroupID, true
	}
	return "", 0, false
}

// ClampedOffset returns the user's notification lead time in minutes,
// clamped to the allowed range with the standard default for the zero value.
func (u *User) ClampedOffset() int {
	return u.ClampedOffsetOr(DefaultNotifyOffsetMin)
}

// ClampedOffsetOr is ClampedOffset with a deployment-configured default for
// users who never set a personal lead time. A non-positive def falls back to
// the standard default; the result is always inside the allowed range.
func (u *User) ClampedOffsetOr(def int) int {
	if def <= 0 {
		def = DefaultNotifyOffsetMin
	}
	m := u.NotifyOffsetMin
	if m == 0 {
		m = def
	}
	if m < MinNotifyOffsetMin {
		m = MinNotifyOffsetMin
	}
	if m > MaxNotifyOffsetMin {
		m = MaxNotifyOffsetMin
	}
	return m
}

// --------------------------------------------------------------------------
// Zoom links & notification log
// --------------------------------------------------------------------------

// ZoomLink maps a teacher display name to a conference URL. TeacherName
// (full name) is the primary key for lookups; TeacherID is a best-effort
// binding to the reference list.
type ZoomLink struct {
	ID          int64
	TeacherID   int64
	TeacherName string
	URL         string
	UpdatedAt   time.Time
}

type NotificationStatus string

const (
	StatusSent   NotificationStatus = "sent"
	StatusFailed NotificationStatus = "failed"
)

// NotificationLog is one delivery attempt for (user, event, instant).
// Rows are never mutated after creation; retention removes them.
type NotificationLog struct {
	ID           int64
	UserID       int64
	GroupID      int64
	TeacherID    int64
	EventID      int64
	ScheduledFor time.Time
	SentAt       *time.Time
	Status       NotificationStatus
	Error        string
}
