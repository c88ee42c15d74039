package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/militrik/MKRschedule-bot/internal/config"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// eventRecord is the intermediate event representation the site-specific
// markup extractor emits. It is a flat JSON object per lesson slot.
type eventRecord struct {
	Date         string `json:"date"`
	LessonNumber int    `json:"lesson_number"`
	TimeStart    string `json:"time_start"`
	TimeEnd      string `json:"time_end"`
	SubjectCode  string `json:"subject_code"`
	SubjectFull  string `json:"subject_full"`
	LessonType   string `json:"lesson_type"`
	Auditory     string `json:"auditory"`
	TeacherShort string `json:"teacher_short"`
	TeacherFull  string `json:"teacher_full"`
	GroupsText   string `json:"groups_text"`
	SourceAdded  string `json:"source_added"`
	SourceHash   string `json:"source_hash"`
}

// IntermediateExtractor decodes the intermediate JSON representation into
// events, filling missing wall-clock times from the lesson-times table.
// The HTML-scraping extractor that produces this representation lives with
// the site collaborator, outside this module.
type IntermediateExtractor struct {
	LessonTimes map[int]config.LessonTime
}

// NewIntermediateExtractor uses the standard lesson-times table.
func NewIntermediateExtractor() *IntermediateExtractor {
	return &IntermediateExtractor{LessonTimes: config.LessonTimes}
}

// Extract implements Extractor.
func (x *IntermediateExtractor) Extract(payload []byte, ref Ref) ([]timetable.Event, error) {
	var records []eventRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode intermediate events: %w", err)
	}

	events := make([]timetable.Event, 0, len(records))
	for i, r := range records {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("record %d: parse date %q: %w", i, r.Date, err)
		}

		start, end := r.TimeStart, r.TimeEnd
		if start == "" && r.LessonNumber != 0 {
			if lt, ok := x.LessonTimes[r.LessonNumber]; ok {
				start, end = lt.Start, lt.End
			}
		}

		e := timetable.Event{
			Date:         date,
			Weekday:      int(date.Weekday()),
			LessonNumber: r.LessonNumber,
			TimeStart:    start,
			TimeEnd:      end,
			SubjectCode:  r.SubjectCode,
			SubjectFull:  r.SubjectFull,
			LessonType:   r.LessonType,
			Auditory:     r.Auditory,
			TeacherShort: r.TeacherShort,
			TeacherFull:  r.TeacherFull,
			GroupsText:   r.GroupsText,
			SourceHash:   r.SourceHash,
		}
		if r.SourceAdded != "" {
			if added, err := time.Parse("2006-01-02", r.SourceAdded); err == nil {
				e.SourceAdded = added
			}
		}
		switch ref.Kind {
		case timetable.KindTeacher:
			e.TeacherID = ref.ID
		default:
			e.GroupID = ref.ID
		}
		events = append(events, e)
	}
	return events, nil
}
