// Package clock provides wall-clock helpers pinned to the timetable
// source's local time zone. All notification windows and event instants are
// computed in that zone, not in the host zone.
package clock

import (
	"fmt"
	"time"
)

// Clock resolves "now", "today" and date+time combination in one location.
type Clock struct {
	loc *time.Location
}

// New loads the given IANA zone name (e.g. "Europe/Kyiv").
func New(tz string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Clock{loc: loc}, nil
}

// Location returns the source time zone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the source zone.
func (c *Clock) Now() time.Time { return time.Now().In(c.loc) }

// Today returns midnight of the current day in the source zone.
func (c *Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// Combine builds the local instant for a calendar date plus an "HH:MM"
// wall-clock string. The date's own zone is ignored; only its calendar day
// is used.
func (c *Clock) Combine(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time of day %q: %w", hhmm, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, c.loc), nil
}

// ToUTC converts a local instant to UTC.
func (c *Clock) ToUTC(t time.Time) time.Time { return t.UTC() }
