package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func event(id int64, date string, lesson int, subject string) timetable.Event {
	return timetable.Event{
		ID:           id,
		GroupID:      101,
		Date:         day(date),
		LessonNumber: lesson,
		SubjectCode:  subject,
		TimeStart:    "11:10",
		TimeEnd:      "12:30",
	}
}

func TestDiffInsertUpdateDelete(t *testing.T) {
	existing := []timetable.Event{
		event(1, "2025-09-01", 3, "Math"),
	}
	fetched := []timetable.Event{
		event(0, "2025-09-01", 3, "Math II"),
		event(0, "2025-09-01", 4, "Physics"),
	}

	ch := Diff(existing, fetched)

	require.Len(t, ch.Update, 1)
	assert.Equal(t, int64(1), ch.Update[0].ID, "update must keep the stored row id")
	assert.Equal(t, "Math II", ch.Update[0].SubjectCode)
	require.Len(t, ch.Insert, 1)
	assert.Equal(t, "Physics", ch.Insert[0].SubjectCode)
	assert.Empty(t, ch.Delete)
}

func TestDiffIdempotent(t *testing.T) {
	fetched := []timetable.Event{
		event(0, "2025-09-01", 1, "Math"),
		event(0, "2025-09-01", 2, "Physics"),
	}

	first := Diff(nil, fetched)
	require.Len(t, first.Insert, 2)

	// Simulate the store after the first run: same rows with assigned ids.
	stored := make([]timetable.Event, len(first.Insert))
	copy(stored, first.Insert)
	for i := range stored {
		stored[i].ID = int64(i + 1)
	}

	second := Diff(stored, fetched)
	assert.True(t, second.Empty(), "second reconciliation must produce zero writes, got %s", second.Summary())
}

func TestDiffDeletesOnlyWithinFetchedSpan(t *testing.T) {
	existing := []timetable.Event{
		event(1, "2025-09-01", 1, "Math"),    // inside fetched span, gone from source
		event(2, "2025-09-08", 1, "History"), // outside fetched span, must survive
	}
	fetched := []timetable.Event{
		event(0, "2025-09-01", 2, "Physics"),
		event(0, "2025-09-03", 1, "Chemistry"),
	}

	ch := Diff(existing, fetched)

	assert.Equal(t, []int64{1}, ch.Delete)
}

func TestDiffEmptyFetchDeletesNothing(t *testing.T) {
	existing := []timetable.Event{
		event(1, "2025-09-01", 1, "Math"),
	}

	ch := Diff(existing, nil)

	assert.Empty(t, ch.Delete)
	assert.Empty(t, ch.Insert)
	assert.Empty(t, ch.Update)
}

func TestDiffIgnoresWhitespaceChanges(t *testing.T) {
	stored := event(1, "2025-09-01", 3, "Math")
	padded := event(0, "2025-09-01", 3, " Math ")
	padded.Auditory = stored.Auditory + " "

	ch := Diff([]timetable.Event{stored}, []timetable.Event{padded})

	assert.True(t, ch.Empty(), "trimmed-equal fields must not count as a change")
}

func TestNaturalKeyFallbacks(t *testing.T) {
	byNumber := event(0, "2025-09-01", 3, "Math")
	assert.Equal(t, "2025-09-01/n:3", byNumber.Key())

	byTime := event(0, "2025-09-01", 0, "Math")
	assert.Equal(t, "2025-09-01/t:11:10", byTime.Key())

	catchAll := timetable.Event{Date: day("2025-09-01"), SubjectCode: "M1", SubjectFull: "Math"}
	assert.Equal(t, "2025-09-01/s:M1|Math", catchAll.Key())
}

func TestDiffLastFetchedWinsOnDuplicateKey(t *testing.T) {
	a := event(0, "2025-09-01", 3, "Math")
	b := event(0, "2025-09-01", 3, "Math (online)")

	ch := Diff(nil, []timetable.Event{a, b})

	require.Len(t, ch.Insert, 1)
	assert.Equal(t, "Math (online)", ch.Insert[0].SubjectCode)
}

func TestAttachOwner(t *testing.T) {
	events := []timetable.Event{event(0, "2025-09-01", 1, "Math")}

	AttachOwner(events, timetable.KindTeacher, 42)

	assert.Equal(t, int64(42), events[0].TeacherID)
	assert.Zero(t, events[0].GroupID)
}
