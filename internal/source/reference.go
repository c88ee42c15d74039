package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Reference is the decoded reference-data set: the faculties, chairs,
// groups and teachers offered by the site's filter form.
type Reference struct {
	Faculties []timetable.Faculty
	Chairs    []timetable.Chair
	Groups    []timetable.Group
	Teachers  []timetable.Teacher
}

// referenceDoc mirrors the intermediate JSON shape the site-specific
// extractor emits for reference data, a sibling of the event records.
type referenceDoc struct {
	Faculties []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"faculties"`
	Chairs []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"chairs"`
	Groups []struct {
		ID        int64  `json:"id"`
		FacultyID int64  `json:"faculty_id"`
		Course    int    `json:"course"`
		Title     string `json:"title"`
	} `json:"groups"`
	Teachers []struct {
		ID        int64  `json:"id"`
		ChairID   int64  `json:"chair_id"`
		FullName  string `json:"full_name"`
		ShortName string `json:"short_name"`
	} `json:"teachers"`
}

// DecodeReference parses an intermediate reference document. Teacher short
// names are derived from the full name when the source omits them.
func DecodeReference(payload []byte) (*Reference, error) {
	var doc referenceDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode reference data: %w", err)
	}

	ref := &Reference{}
	for _, f := range doc.Faculties {
		if f.ID == 0 {
			return nil, fmt.Errorf("faculty %q: missing id", f.Title)
		}
		ref.Faculties = append(ref.Faculties, timetable.Faculty{ID: f.ID, Title: strings.TrimSpace(f.Title)})
	}
	for _, c := range doc.Chairs {
		if c.ID == 0 {
			return nil, fmt.Errorf("chair %q: missing id", c.Title)
		}
		ref.Chairs = append(ref.Chairs, timetable.Chair{ID: c.ID, Title: strings.TrimSpace(c.Title)})
	}
	for _, g := range doc.Groups {
		if g.ID == 0 {
			return nil, fmt.Errorf("group %q: missing id", g.Title)
		}
		ref.Groups = append(ref.Groups, timetable.Group{
			ID:        g.ID,
			FacultyID: g.FacultyID,
			Course:    g.Course,
			Title:     strings.TrimSpace(g.Title),
		})
	}
	for _, t := range doc.Teachers {
		if t.ID == 0 {
			return nil, fmt.Errorf("teacher %q: missing id", t.FullName)
		}
		full := strings.TrimSpace(t.FullName)
		short := strings.TrimSpace(t.ShortName)
		if short == "" {
			short = timetable.ShortName(full)
		}
		ref.Teachers = append(ref.Teachers, timetable.Teacher{
			ID:        t.ID,
			ChairID:   t.ChairID,
			FullName:  full,
			ShortName: short,
		})
	}
	return ref, nil
}

// Counts returns the per-kind row counts for logging.
func (r *Reference) Counts() string {
	return fmt.Sprintf("faculties=%d chairs=%d groups=%d teachers=%d",
		len(r.Faculties), len(r.Chairs), len(r.Groups), len(r.Teachers))
}
