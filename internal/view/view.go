// Package view selects and annotates the tasks shown for a calendar zoom
// level: the matrix/list path resolves status at the viewed date, the grid
// path resolves it per day.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// Granularity is the calendar zoom level.
type Granularity string

const (
	Day   Granularity = "Day"
	Week  Granularity = "Week"
	Month Granularity = "Month"
	Year  Granularity = "Year"
)

// Granularities lists the zoom levels from finest to coarsest.
var Granularities = []Granularity{Day, Week, Month, Year}

// ParseGranularity matches a zoom level case-insensitively. Empty input is Day.
func ParseGranularity(s string) (Granularity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day, nil
	}
	for _, g := range Granularities {
		if strings.EqualFold(s, string(g)) {
			return g, nil
		}
	}
	return Day, fmt.Errorf("unknown view %q (want day, week, month or year)", s)
}

func (g Granularity) rank() int {
	for i, v := range Granularities {
		if v == g {
			return i
		}
	}
	return -1
}

// Interval is a closed range of calendar time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t's calendar day falls in the interval.
func (iv Interval) Contains(t time.Time) bool {
	day := calendar.StartOfDay(t)
	return !day.Before(calendar.StartOfDay(iv.Start)) && !day.After(iv.End)
}

// Days enumerates each midnight in the interval.
func (iv Interval) Days() []time.Time {
	return calendar.DaysBetween(iv.Start, iv.End)
}

// IntervalFor returns the interval of granularity g that contains anchor.
func IntervalFor(g Granularity, anchor time.Time, weekStart time.Weekday) Interval {
	switch g {
	case Week:
		return Interval{Start: calendar.StartOfWeek(anchor, weekStart), End: calendar.EndOfWeek(anchor, weekStart)}
	case Month:
		return Interval{Start: calendar.StartOfMonth(anchor), End: calendar.EndOfMonth(anchor)}
	case Year:
		return Interval{Start: calendar.StartOfYear(anchor), End: calendar.EndOfYear(anchor)}
	default:
		return Interval{Start: calendar.StartOfDay(anchor), End: calendar.EndOfDay(anchor)}
	}
}

// ceiling is the coarsest granularity each cadence is shown in.
var ceiling = map[calendar.Frequency]Granularity{
	calendar.FrequencyDaily:   Day,
	calendar.FrequencyWeekly:  Week,
	calendar.FrequencyMonthly: Month,
	calendar.FrequencyYearly:  Year,
	calendar.FrequencyNone:    Year,
}

// VisibleIn reports whether tasks of frequency f are shown at granularity g.
func VisibleIn(f calendar.Frequency, g Granularity) bool {
	c, ok := ceiling[f]
	if !ok {
		c = Year
	}
	return g.rank() <= c.rank()
}

// Matches reports whether task passes the cadence ceiling and has at least
// one occurrence in iv.
func Matches(task *tasks.Task, g Granularity, iv Interval) bool {
	if !VisibleIn(task.Frequency, g) {
		return false
	}
	anchor, err := task.Anchor()
	if err != nil {
		return false
	}
	if !task.IsRecurring() {
		return iv.Contains(anchor)
	}
	if anchor.After(iv.End) {
		return false
	}
	for _, d := range iv.Days() {
		if tasks.IsActiveOn(task, d) {
			return true
		}
	}
	return false
}
