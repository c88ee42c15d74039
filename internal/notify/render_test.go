package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

func sampleEvent() *timetable.Event {
	return &timetable.Event{
		ID:           1,
		GroupID:      101,
		Date:         time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		LessonNumber: 3,
		TimeStart:    "11:10",
		SubjectCode:  "МАТ",
		SubjectFull:  "Математичний аналіз",
		LessonType:   "Лекція",
		Auditory:     "215",
		TeacherFull:  "Петренко Іван Богданович",
		TeacherShort: "Петренко І.Б.",
		GroupsText:   "КН-21, КН-22",
	}
}

func TestRenderReminderStudent(t *testing.T) {
	u := &timetable.User{ID: 7, Role: timetable.RoleStudent, GroupID: 101, NotifyOffsetMin: 5}

	text := RenderReminder(u, sampleEvent(), "https://example.zoom.us/j/1", u.ClampedOffset())

	assert.Contains(t, text, "За 5 хвилин")
	assert.Contains(t, text, "<b>МАТ Математичний аналіз</b>")
	assert.Contains(t, text, "о 11:10")
	assert.Contains(t, text, "ауд. 215")
	assert.Contains(t, text, "Викл.: Петренко Іван Богданович")
	assert.Contains(t, text, "Zoom: https://example.zoom.us/j/1")
	assert.Contains(t, text, "(Лекція)")
	assert.NotContains(t, text, "Групи:")
}

func TestRenderReminderTeacher(t *testing.T) {
	u := &timetable.User{ID: 8, Role: timetable.RoleTeacher, TeacherID: 42, NotifyOffsetMin: 10}

	text := RenderReminder(u, sampleEvent(), "", u.ClampedOffset())

	assert.Contains(t, text, "За 10 хвилин")
	assert.Contains(t, text, "Групи: КН-21, КН-22")
	assert.NotContains(t, text, "Викл.:")
	assert.NotContains(t, text, "Zoom:")
}

func TestRenderReminderEscapesHTML(t *testing.T) {
	u := &timetable.User{ID: 7, Role: timetable.RoleStudent, GroupID: 101, NotifyOffsetMin: 5}
	e := sampleEvent()
	e.SubjectFull = "Алгебра <і> логіка"

	text := RenderReminder(u, e, "", u.ClampedOffset())

	assert.Contains(t, text, "&lt;і&gt;")
}

func TestRenderReminderFallbacks(t *testing.T) {
	u := &timetable.User{ID: 7, Role: timetable.RoleStudent, GroupID: 101, NotifyOffsetMin: 5}
	e := &timetable.Event{LessonNumber: 4}

	text := RenderReminder(u, e, "", u.ClampedOffset())

	assert.Contains(t, text, "<b>Заняття</b>")
	assert.Contains(t, text, "пара №4")
}

func TestSubjectDisplay(t *testing.T) {
	tests := []struct {
		name string
		code string
		full string
		want string
	}{
		{"both", "МАТ", "Математика", "МАТ Математика"},
		{"full only", "", "Математика", "Математика"},
		{"code only", "МАТ", "", "МАТ"},
		{"neither", "", "", "Заняття"},
		{"padded", " МАТ ", " Математика ", "МАТ Математика"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &timetable.Event{SubjectCode: tt.code, SubjectFull: tt.full}
			assert.Equal(t, tt.want, SubjectDisplay(e))
		})
	}
}

func TestTeacherDisplayPrefersFullName(t *testing.T) {
	e := &timetable.Event{TeacherFull: "Петренко Іван", TeacherShort: "Петренко І."}
	assert.Equal(t, "Петренко Іван", TeacherDisplay(e))

	e = &timetable.Event{TeacherShort: "Петренко І."}
	assert.Equal(t, "Петренко І.", TeacherDisplay(e))

	assert.Equal(t, "", TeacherDisplay(&timetable.Event{}))
}
