package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// RenderReminder builds the Telegram HTML reminder text for one event.
// Students see the teacher line, teachers see the group list from the cell.
// offsetMin is the lead time the scanner resolved for this user.
func RenderReminder(u *timetable.User, e *timetable.Event, zoomURL string, offsetMin int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "За %d хвилин почнеться заняття з <b>%s</b> о %s",
		offsetMin, html.EscapeString(SubjectDisplay(e)), startDisplay(e))

	if room := strings.TrimSpace(e.Auditory); room != "" {
		fmt.Fprintf(&b, ", ауд. %s", html.EscapeString(room))
	}
	b.WriteString(".")

	if u.Role == timetable.RoleTeacher {
		if groups := strings.TrimSpace(e.GroupsText); groups != "" {
			fmt.Fprintf(&b, "\nГрупи: %s", html.EscapeString(groups))
		}
	} else if teacher := TeacherDisplay(e); teacher != "" {
		fmt.Fprintf(&b, "\nВикл.: %s", html.EscapeString(teacher))
	}

	if zoomURL != "" {
		fmt.Fprintf(&b, "\nZoom: %s", html.EscapeString(zoomURL))
	}

	if lt := strings.TrimSpace(e.LessonType); lt != "" {
		fmt.Fprintf(&b, " (%s)", html.EscapeString(lt))
	}

	return b.String()
}

// SubjectDisplay joins the subject code and full name, falling back to the
// generic word when both are empty.
func SubjectDisplay(e *timetable.Event) string {
	code := strings.TrimSpace(e.SubjectCode)
	full := strings.TrimSpace(e.SubjectFull)
	switch {
	case code != "" && full != "":
		return code + " " + full
	case full != "":
		return full
	case code != "":
		return code
	default:
		return "Заняття"
	}
}

// TeacherDisplay prefers the full name over the short form, "" when neither
// is known.
func TeacherDisplay(e *timetable.Event) string {
	if full := strings.TrimSpace(e.TeacherFull); full != "" {
		return full
	}
	return strings.TrimSpace(e.TeacherShort)
}

func startDisplay(e *timetable.Event) string {
	if e.TimeStart != "" {
		return e.TimeStart
	}
	return fmt.Sprintf("пара №%d", e.LessonNumber)
}
