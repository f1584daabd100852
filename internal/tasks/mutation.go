package tasks

import (
	"fmt"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

// NewTask builds a task from p, filling defaults for every unsupplied field.
// The anchor date defaults to contextDate.
func NewTask(p Patch, contextDate, now time.Time) (Task, error) {
	if err := p.Validate(); err != nil {
		return Task{}, err
	}
	t := Task{
		ID:                GenerateTaskID(),
		Title:             DefaultTitle,
		Urgency:           LevelLow,
		Importance:        LevelLow,
		Status:            StatusTodo,
		Date:              calendar.FormatDate(contextDate),
		Frequency:         calendar.FrequencyNone,
		CreatedAt:         now,
		UpdatedAt:         now,
		History:           []HistoryEntry{},
		CompletionHistory: map[string]Status{},
	}
	if p.Title != nil && *p.Title != "" {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Urgency != nil {
		t.Urgency = *p.Urgency
	}
	if p.Importance != nil {
		t.Importance = *p.Importance
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Frequency != nil {
		t.Frequency = *p.Frequency
	}
	if t.Status == StatusDone && !t.IsRecurring() {
		t.CompletedAt = &now
	}
	return t, nil
}

// ApplyPatch returns t updated by p. Every supplied field that differs from
// the stored value appends one history entry. An empty title becomes
// DefaultTitle. Ended series reject edits.
func ApplyPatch(t Task, p Patch, opts SaveOptions, now time.Time, actor string) (Task, error) {
	if t.IsEnded() {
		return t, fmt.Errorf("update %s: %w", t.ID, ErrSeriesEnded)
	}
	if err := p.Validate(); err != nil {
		return t, err
	}
	if p.Title != nil && *p.Title == "" {
		p.Title = Ptr(DefaultTitle)
	}

	out := t.Clone()
	prevStatus := out.Status
	appendHistory(&out, now, actor, diffPatch(&out, p)...)

	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Urgency != nil {
		out.Urgency = *p.Urgency
	}
	if p.Importance != nil {
		out.Importance = *p.Importance
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Frequency != nil {
		out.Frequency = *p.Frequency
	}

	if !out.IsRecurring() {
		switch {
		case out.Status == StatusDone && prevStatus != StatusDone:
			out.CompletedAt = &now
		case out.Status != StatusDone:
			out.CompletedAt = nil
		}
	} else if opts.RecordCompletion && p.Status != nil {
		ctx := opts.ContextDate
		if ctx.IsZero() {
			ctx = now
		}
		out.CompletionHistory[calendar.PeriodKey(ctx, out.Frequency)] = *p.Status
	}

	out.UpdatedAt = now
	return out, nil
}

// Relocate moves t to another matrix quadrant. changed is false when both
// levels already match.
func Relocate(t Task, urgency, importance Level, now time.Time, actor string) (out Task, changed bool, err error) {
	if !urgency.Valid() || !importance.Valid() {
		return t, false, fmt.Errorf("%w: matrix position %q", ErrInvalid, matrixPosition(urgency, importance))
	}
	if t.Urgency == urgency && t.Importance == importance {
		return t, false, nil
	}
	if t.IsEnded() {
		return t, false, fmt.Errorf("move %s: %w", t.ID, ErrSeriesEnded)
	}

	out = t.Clone()
	appendHistory(&out, now, actor, fieldChange{
		field:    FieldMatrixPosition,
		oldValue: matrixPosition(t.Urgency, t.Importance),
		newValue: matrixPosition(urgency, importance),
	})
	out.Urgency = urgency
	out.Importance = importance
	out.UpdatedAt = now
	return out, true, nil
}

// EndSeries closes a recurring series at now and marks the occurrence of
// contextDate as done.
func EndSeries(t Task, contextDate, now time.Time, actor string) (Task, error) {
	if !t.IsRecurring() {
		return t, fmt.Errorf("end %s: %w", t.ID, ErrNotRecurring)
	}
	if t.IsEnded() {
		return t, fmt.Errorf("end %s: %w", t.ID, ErrSeriesEnded)
	}
	if contextDate.IsZero() {
		contextDate = now
	}

	out := t.Clone()
	changes := []fieldChange{{field: FieldRecurrenceEnded, oldValue: "", newValue: formatInstant(&now)}}
	if out.Status != StatusDone {
		changes = append(changes, fieldChange{field: FieldStatus, oldValue: string(out.Status), newValue: string(StatusDone)})
	}
	appendHistory(&out, now, actor, changes...)

	out.RecurrenceEndedAt = &now
	out.Status = StatusDone
	out.CompletionHistory[calendar.PeriodKey(contextDate, out.Frequency)] = StatusDone
	out.UpdatedAt = now
	return out, nil
}

// ResumeSeries reopens an ended series. changed is false when the series was
// not ended.
func ResumeSeries(t Task, now time.Time, actor string) (out Task, changed bool) {
	if !t.IsEnded() {
		return t, false
	}

	out = t.Clone()
	changes := []fieldChange{{field: FieldRecurrenceEnded, oldValue: formatInstant(t.RecurrenceEndedAt), newValue: ""}}
	if out.Status != StatusTodo {
		changes = append(changes, fieldChange{field: FieldStatus, oldValue: string(out.Status), newValue: string(StatusTodo)})
	}
	appendHistory(&out, now, actor, changes...)

	out.RecurrenceEndedAt = nil
	out.Status = StatusTodo
	out.UpdatedAt = now
	return out, true
}

// ProposeAnchor is the editor's anchor adjustment when the frequency field
// changes: Weekly moves the anchor to the end of its week, Monthly to the end
// of its month, anything else keeps it. An unset or unparsable current date
// starts from now.
func ProposeAnchor(current, next calendar.Frequency, date string, now time.Time, weekStart time.Weekday) string {
	if next == current || !next.IsRecurring() {
		return date
	}
	base, err := calendar.ParseDate(date)
	if err != nil {
		base = calendar.StartOfDay(now)
	}
	switch next {
	case calendar.FrequencyWeekly:
		return calendar.FormatDate(calendar.EndOfWeek(base, weekStart))
	case calendar.FrequencyMonthly:
		return calendar.FormatDate(calendar.EndOfMonth(base))
	default:
		if date == "" {
			return calendar.FormatDate(base)
		}
		return date
	}
}
