// CLAUDE:SUMMARY Civil calendar dates: tomorrow-in-zone, strict YYYY-MM-DD parsing, weekday and PDF filename derivation.
// Package civildate handles calendar dates without a time of day.
//
// The date used to resolve a puzzle and the date written into its filename
// both come from here.
package civildate

import (
	"fmt"
	"time"
)

// Layout is the wire and filename format of a Date.
const Layout = "2006-01-02"

// DefaultZone is the publisher's reference timezone.
const DefaultZone = "America/New_York"

// Date is a calendar date. The zero value is "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the calendar date of t, read in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Tomorrow returns the calendar day after now, as observed in loc.
// A nil loc means UTC.
func Tomorrow(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Of(now.In(loc)).AddDays(1)
}

// Parse reads a strict YYYY-MM-DD date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("civildate: parse %q: %w", s, err)
	}
	return Of(t), nil
}

// LoadZone loads an IANA zone, falling back to DefaultZone when name is empty.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("civildate: load zone %q: %w", name, err)
	}
	return loc, nil
}

// midnight anchors the date at 00:00 UTC. UTC has no DST, so day arithmetic
// and weekday lookups on it are exact.
func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.midnight().Format(Layout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Of(d.midnight().AddDate(0, 0, n))
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// WeekdayName returns the English name of d's weekday, e.g. "Friday".
func (d Date) WeekdayName() string {
	return d.Weekday().String()
}

// WeekdayIndex numbers weekdays Monday-first: Monday=0 … Sunday=6.
func WeekdayIndex(d Date) int {
	return (int(d.Weekday()) + 6) % 7
}

// Filename derives the stored document name for d:
// "2024-03-01 (Friday) Crossword.pdf".
func Filename(d Date, documentName string) string {
	return fmt.Sprintf("%s (%s) %s.pdf", d, d.WeekdayName(), documentName)
}
