package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
	cases := []struct {
		full string
		want string
	}{
		{"Коваленко Іван Петрович", "Коваленко І.П."},
		{"Шевченко Олена", "Шевченко О."},
		{"Коваленко", ""},
		{"  Коваленко   Іван   Петрович  ", "Коваленко І.П."},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ShortName(c.full), "full %q", c.full)
	}
}

func TestUserEntity(t *testing.T) {
	student := User{ID: 1, Role: RoleStudent, GroupID: 1021}
	kind, id, ok := student.Entity()
	assert.True(t, ok)
	assert.Equal(t, KindGroup, kind)
	assert.Equal(t, int64(1021), id)

	teacher := User{ID: 2, Role: RoleTeacher, TeacherID: 305}
	kind, id, ok = teacher.Entity()
	assert.True(t, ok)
	assert.Equal(t, KindTeacher, kind)
	assert.Equal(t, int64(305), id)

	// A teacher mid-onboarding without a bound teacher falls back to a
	// group subscription if one exists.
	partial := User{ID: 3, Role: RoleTeacher, GroupID: 1021}
	kind, id, ok = partial.Entity()
	assert.True(t, ok)
	assert.Equal(t, KindGroup, kind)
	assert.Equal(t, int64(1021), id)

	_, _, ok = (&User{ID: 4, Role: RoleStudent}).Entity()
	assert.False(t, ok)
}

func TestClampedOffset(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultNotifyOffsetMin},
		{1, 1},
		{120, 120},
		{-5, MinNotifyOffsetMin},
		{500, MaxNotifyOffsetMin},
		{15, 15},
	}
	for _, c := range cases {
		u := User{NotifyOffsetMin: c.in}
		assert.Equal(t, c.want, u.ClampedOffset(), "offset %d", c.in)
	}
}

func TestClampedOffsetOr(t *testing.T) {
	unset := User{}
	assert.Equal(t, 10, unset.ClampedOffsetOr(10), "configured default applies to unset users")
	assert.Equal(t, DefaultNotifyOffsetMin, unset.ClampedOffsetOr(0), "non-positive default falls back")
	assert.Equal(t, MaxNotifyOffsetMin, unset.ClampedOffsetOr(500), "default itself is clamped")

	personal := User{NotifyOffsetMin: 15}
	assert.Equal(t, 15, personal.ClampedOffsetOr(10), "personal choice beats the default")
}

func TestEventKeyPrecedence(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	byNumber := Event{Date: day, LessonNumber: 2, TimeStart: "09:50", SubjectCode: "MA"}
	assert.Equal(t, "2026-03-02/n:2", byNumber.Key())

	byTime := Event{Date: day, TimeStart: "09:50", SubjectCode: "MA"}
	assert.Equal(t, "2026-03-02/t:09:50", byTime.Key())

	bySubject := Event{Date: day, SubjectCode: "MA", SubjectFull: "Матаналіз"}
	assert.Equal(t, "2026-03-02/s:MA|Матаналіз", bySubject.Key())
}

func TestFingerprintIgnoresSurroundingWhitespace(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := Event{Date: day, LessonNumber: 1, SubjectFull: "Фізика", Auditory: "305"}
	b := a
	b.SubjectFull = "  Фізика "
	b.Auditory = "305  "
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := a
	c.Auditory = "306"
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestEventOwner(t *testing.T) {
	g := Event{GroupID: 1021}
	kind, id := g.Owner()
	assert.Equal(t, KindGroup, kind)
	assert.Equal(t, int64(1021), id)

	tt := Event{TeacherID: 305}
	kind, id = tt.Owner()
	assert.Equal(t, KindTeacher, kind)
	assert.Equal(t, int64(305), id)
}
