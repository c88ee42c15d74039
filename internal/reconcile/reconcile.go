// Package reconcile implements differential sync of timetable events: given
// the stored event set for one subscriber entity and a freshly fetched set,
// it computes the minimal insert/update/delete batch that makes the store
// match the fetch without disturbing stable row identifiers.
//
// Events are matched by natural key (date + lesson number, falling back to
// start time); matched rows are rewritten in place only when their trimmed
// field fingerprint differs. Reconciling twice with unchanged source data
// therefore produces zero writes the second time.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Changes is one entity's reconciliation batch. Update entries carry the
// stored row's ID with the fetched row's fields.
type Changes struct {
	Insert []timetable.Event
	Update []timetable.Event
	Delete []int64
}

// Empty reports whether the batch contains no mutations.
func (c Changes) Empty() bool {
	return len(c.Insert) == 0 && len(c.Update) == 0 && len(c.Delete) == 0
}

// Summary returns a human-readable summary.
func (c Changes) Summary() string {
	return fmt.Sprintf("inserted=%d updated=%d deleted=%d",
		len(c.Insert), len(c.Update), len(c.Delete))
}

// Diff reconciles fetched events against stored ones.
//
// existing must already be restricted to the reconciliation horizon
// (date >= today-1d); older rows are retention's business, never sync's.
// Deletions are further restricted to the date span actually covered by the
// fetch, so a fetch for one week cannot wipe another week's rows.
//
// When the fetch reports the same natural key twice the later row wins.
func Diff(existing, fetched []timetable.Event) Changes {
	var ch Changes

	newMap := make(map[string]timetable.Event, len(fetched))
	for _, e := range fetched {
		newMap[e.Key()] = e
	}

	minDate, maxDate := fetchedSpan(fetched)

	existingMap := make(map[string]timetable.Event, len(existing))
	for _, e := range existing {
		existingMap[e.Key()] = e
		if _, ok := newMap[e.Key()]; ok {
			continue
		}
		// The source no longer reports this slot (e.g. a cancelled lesson),
		// but only trust its absence inside the span the fetch covered.
		if d := e.DateKey(); d >= minDate && d <= maxDate {
			ch.Delete = append(ch.Delete, e.ID)
		}
	}

	// Deterministic order: keys sorted, matching the source's day layout.
	keys := make([]string, 0, len(newMap))
	for k := range newMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		ne := newMap[k]
		old, ok := existingMap[k]
		if !ok {
			ch.Insert = append(ch.Insert, ne)
			continue
		}
		if old.Fingerprint() == ne.Fingerprint() {
			continue
		}
		ne.ID = old.ID
		ch.Update = append(ch.Update, ne)
	}

	return ch
}

// fetchedSpan returns the inclusive ISO date span covered by the fetch.
// An empty fetch spans nothing, so nothing is eligible for deletion.
func fetchedSpan(fetched []timetable.Event) (string, string) {
	if len(fetched) == 0 {
		return "9999-12-31", "0000-01-01"
	}
	minD, maxD := fetched[0].DateKey(), fetched[0].DateKey()
	for _, e := range fetched[1:] {
		d := e.DateKey()
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
	}
	return minD, maxD
}

// AttachOwner stamps the owning entity reference on every fetched event
// before diffing, clearing the opposite reference.
func AttachOwner(events []timetable.Event, kind timetable.EntityKind, entityID int64) {
	for i := range events {
		switch kind {
		case timetable.KindTeacher:
			events[i].TeacherID = entityID
			events[i].GroupID = 0
		default:
			events[i].GroupID = entityID
			events[i].TeacherID = 0
		}
	}
}
