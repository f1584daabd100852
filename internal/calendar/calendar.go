// Package calendar provides naive local-date arithmetic: day, week, month and
// year boundaries, YYYY-MM-DD parsing, and recurrence period keys.
//
// Every date is a local calendar date. Values returned by this package carry
// time.Local and are never shifted through UTC.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage format of anchor dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string as local midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return t, nil
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns local midnight of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar date.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CompareDay orders a and b by calendar date only: -1, 0 or +1.
func CompareDay(a, b time.Time) int {
	return StartOfDay(a).Compare(StartOfDay(b))
}

// StartOfWeek returns midnight of the most recent weekStart on or before t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return StartOfDay(AddDays(t, -offset))
}

// EndOfWeek returns the end of the sixth day after StartOfWeek.
func EndOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	return EndOfDay(AddDays(StartOfWeek(t, weekStart), 6))
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the end of the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return EndOfDay(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()))
}

// StartOfYear returns midnight of January 1 of t's year.
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// EndOfYear returns the end of December 31 of t's year.
func EndOfYear(t time.Time) time.Time {
	return EndOfDay(time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location()))
}

// DaysBetween lists every calendar date from start to end inclusive, each at
// local midnight.
func DaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	last := StartOfDay(end)
	for d := StartOfDay(start); !d.After(last); d = AddDays(d, 1) {
		days = append(days, d)
	}
	return days
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps an English day name (case-insensitive, 3-letter prefix
// accepted) to a time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for name, wd := range weekdays {
			if strings.HasPrefix(name, s) {
				return wd, nil
			}
		}
	}
	return time.Monday, fmt.Errorf("unknown weekday %q", s)
}
