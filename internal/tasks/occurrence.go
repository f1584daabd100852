package tasks

import (
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/scheduler"
)

// Anchor parses the task's anchor date at local midnight.
func (t *Task) Anchor() (time.Time, error) {
	return calendar.ParseDate(t.Date)
}

// IsActiveOn reports whether the task has an occurrence on date's calendar day.
// A task whose anchor date does not parse has no occurrences.
func IsActiveOn(t *Task, date time.Time) bool {
	day := calendar.StartOfDay(date)

	if t.RecurrenceEndedAt != nil && day.After(calendar.StartOfDay(t.RecurrenceEndedAt.In(day.Location()))) {
		return false
	}

	anchor, err := t.Anchor()
	if err != nil {
		return false
	}
	anchor = anchor.In(day.Location())
	if day.Before(anchor) {
		return false
	}

	switch t.Frequency {
	case calendar.FrequencyDaily:
		return true
	case calendar.FrequencyWeekly:
		return day.Weekday() == anchor.Weekday()
	case calendar.FrequencyMonthly:
		return day.Day() == anchor.Day()
	case calendar.FrequencyYearly:
		return day.Day() == anchor.Day() && day.Month() == anchor.Month()
	default:
		return calendar.SameDay(day, anchor)
	}
}

// StatusOn resolves the status of the occurrence on date. One-off tasks return
// their stored status regardless of date; a recurring occurrence without a
// ledger entry is TODO.
func StatusOn(t *Task, date time.Time) Status {
	if !t.IsRecurring() {
		return t.Status
	}
	if st, ok := t.CompletionHistory[calendar.PeriodKey(date, t.Frequency)]; ok {
		return st
	}
	return StatusTodo
}

// NextOccurrence returns the first date strictly after the calendar day of
// after on which the task is active. ok is false when no such date exists:
// a one-off task already past, or a series ended before it fires again.
func NextOccurrence(t *Task, after time.Time) (next time.Time, ok bool) {
	anchor, err := t.Anchor()
	if err != nil {
		return time.Time{}, false
	}
	from := calendar.StartOfDay(after)

	if !t.IsRecurring() {
		if anchor.After(from) && IsActiveOn(t, anchor) {
			return anchor, true
		}
		return time.Time{}, false
	}

	// Occurrences never precede the anchor, so start the search the day before it.
	if from.Before(anchor) {
		from = calendar.AddDays(anchor, -1)
	}

	expr, err := scheduler.ForFrequency(t.Frequency, anchor)
	if err != nil {
		return time.Time{}, false
	}
	next = calendar.StartOfDay(expr.Next(from))
	if next.IsZero() || !IsActiveOn(t, next) {
		return time.Time{}, false
	}
	return next, true
}
