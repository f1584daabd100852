package tasks

import (
	"testing"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func taskOn(date string, freq calendar.Frequency) *Task {
	t := &Task{ID: "task_test", Title: "t", Date: date, Frequency: freq, Status: StatusTodo}
	Normalize(t)
	return t
}

func TestIsActiveOn_OneOff(t *testing.T) {
	task := taskOn("2024-03-15", calendar.FrequencyNone)

	if !IsActiveOn(task, mustDate(t, "2024-03-15")) {
		t.Error("expected active on anchor date")
	}
	if !IsActiveOn(task, mustDate(t, "2024-03-15").Add(23*time.Hour)) {
		t.Error("expected active later the same day")
	}
	for _, d := range []string{"2024-03-14", "2024-03-16", "2025-03-15"} {
		if IsActiveOn(task, mustDate(t, d)) {
			t.Errorf("expected inactive on %s", d)
		}
	}
}

func TestIsActiveOn_WeeklyWednesday(t *testing.T) {
	task := taskOn("2024-01-03", calendar.FrequencyWeekly)

	if !IsActiveOn(task, mustDate(t, "2024-01-10")) {
		t.Error("2024-01-10 should be active")
	}
	if IsActiveOn(task, mustDate(t, "2024-01-09")) {
		t.Error("2024-01-09 should not be active")
	}
	if IsActiveOn(task, mustDate(t, "2023-12-27")) {
		t.Error("Wednesday before the anchor should not be active")
	}

	start := mustDate(t, "2024-01-01")
	for i := 0; i < 120; i++ {
		d := calendar.AddDays(start, i)
		want := d.Weekday() == time.Wednesday && !d.Before(mustDate(t, "2024-01-03"))
		if got := IsActiveOn(task, d); got != want {
			t.Errorf("%s (%s): got %v, want %v", calendar.FormatDate(d), d.Weekday(), got, want)
		}
	}
}

func TestIsActiveOn_Daily(t *testing.T) {
	task := taskOn("2024-02-27", calendar.FrequencyDaily)

	if IsActiveOn(task, mustDate(t, "2024-02-26")) {
		t.Error("day before anchor should not be active")
	}
	for _, d := range []string{"2024-02-27", "2024-02-29", "2024-03-01", "2030-01-01"} {
		if !IsActiveOn(task, mustDate(t, d)) {
			t.Errorf("expected active on %s", d)
		}
	}
}

func TestIsActiveOn_MonthlyDay31NoClamp(t *testing.T) {
	task := taskOn("2024-01-31", calendar.FrequencyMonthly)

	count := func(month string) int {
		start := mustDate(t, month+"-01")
		n := 0
		for d := start; d.Month() == start.Month(); d = calendar.AddDays(d, 1) {
			if IsActiveOn(task, d) {
				n++
			}
		}
		return n
	}

	if got := count("2024-04"); got != 0 {
		t.Errorf("April (30 days): got %d occurrences, want 0", got)
	}
	if got := count("2024-02"); got != 0 {
		t.Errorf("February: got %d occurrences, want 0", got)
	}
	if got := count("2024-03"); got != 1 {
		t.Errorf("March: got %d occurrences, want 1", got)
	}
	if IsActiveOn(task, mustDate(t, "2024-04-30")) {
		t.Error("day 31 must not clamp to 30")
	}
}

func TestIsActiveOn_Yearly(t *testing.T) {
	task := taskOn("2024-02-29", calendar.FrequencyYearly)

	if !IsActiveOn(task, mustDate(t, "2028-02-29")) {
		t.Error("expected active on next leap day")
	}
	if IsActiveOn(task, mustDate(t, "2025-02-28")) {
		t.Error("leap-day series must not clamp in common years")
	}

	task = taskOn("2024-07-04", calendar.FrequencyYearly)
	if !IsActiveOn(task, mustDate(t, "2026-07-04")) {
		t.Error("expected active on anniversary")
	}
	if IsActiveOn(task, mustDate(t, "2026-08-04")) {
		t.Error("same day, different month should be inactive")
	}
}

func TestIsActiveOn_UnparsableAnchor(t *testing.T) {
	task := taskOn("not-a-date", calendar.FrequencyDaily)
	if IsActiveOn(task, mustDate(t, "2024-01-01")) {
		t.Error("task with bad anchor should have no occurrences")
	}
}

func TestIsActiveOn_EndedSeries(t *testing.T) {
	task := taskOn("2024-01-01", calendar.FrequencyDaily)
	ended := mustDate(t, "2024-01-10").Add(15 * time.Hour)
	task.RecurrenceEndedAt = &ended

	if !IsActiveOn(task, mustDate(t, "2024-01-10")) {
		t.Error("the end day itself is still active")
	}
	if IsActiveOn(task, mustDate(t, "2024-01-11")) {
		t.Error("days after the end are closed")
	}
}

func TestStatusOn(t *testing.T) {
	oneOff := taskOn("2024-01-01", calendar.FrequencyNone)
	oneOff.Status = StatusInProgress
	if got := StatusOn(oneOff, mustDate(t, "2030-05-05")); got != StatusInProgress {
		t.Errorf("one-off: got %s, want stored status", got)
	}

	weekly := taskOn("2024-01-03", calendar.FrequencyWeekly)
	weekly.Status = StatusDone
	weekly.CompletionHistory["2024-W2"] = StatusDone

	if got := StatusOn(weekly, mustDate(t, "2024-01-10")); got != StatusDone {
		t.Errorf("recorded week: got %s, want DONE", got)
	}
	if got := StatusOn(weekly, mustDate(t, "2024-01-12")); got != StatusDone {
		t.Errorf("same ISO week: got %s, want DONE", got)
	}
	if got := StatusOn(weekly, mustDate(t, "2024-01-17")); got != StatusTodo {
		t.Errorf("absent ledger entry: got %s, want TODO", got)
	}
}

func TestStatusOn_NilLedgerDefaultsTodo(t *testing.T) {
	task := &Task{Date: "2024-01-01", Frequency: calendar.FrequencyMonthly}
	if got := StatusOn(task, mustDate(t, "2024-02-01")); got != StatusTodo {
		t.Errorf("got %s, want TODO", got)
	}
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		freq   calendar.Frequency
		after  string
		want   string
		wantOK bool
	}{
		{"weekly from anchor", "2024-01-03", calendar.FrequencyWeekly, "2024-01-03", "2024-01-10", true},
		{"weekly before anchor", "2024-01-03", calendar.FrequencyWeekly, "2023-12-01", "2024-01-03", true},
		{"daily", "2024-01-01", calendar.FrequencyDaily, "2024-02-28", "2024-02-29", true},
		{"monthly skips short months", "2024-01-31", calendar.FrequencyMonthly, "2024-01-31", "2024-03-31", true},
		{"yearly", "2024-07-04", calendar.FrequencyYearly, "2024-07-04", "2025-07-04", true},
		{"one-off ahead", "2024-05-01", calendar.FrequencyNone, "2024-04-30", "2024-05-01", true},
		{"one-off past", "2024-05-01", calendar.FrequencyNone, "2024-05-01", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := taskOn(tt.date, tt.freq)
			got, ok := NextOccurrence(task, mustDate(t, tt.after))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if calendar.FormatDate(got) != tt.want {
				t.Errorf("got %s, want %s", calendar.FormatDate(got), tt.want)
			}
			if !IsActiveOn(task, got) {
				t.Errorf("next occurrence %s is not active", calendar.FormatDate(got))
			}
		})
	}
}

func TestNextOccurrence_EndedSeries(t *testing.T) {
	task := taskOn("2024-01-03", calendar.FrequencyWeekly)
	ended := mustDate(t, "2024-01-12")
	task.RecurrenceEndedAt = &ended

	if _, ok := NextOccurrence(task, mustDate(t, "2024-01-10")); ok {
		t.Error("ended series should have no next occurrence past its end")
	}
	got, ok := NextOccurrence(task, mustDate(t, "2024-01-04"))
	if !ok || calendar.FormatDate(got) != "2024-01-10" {
		t.Errorf("got %s ok=%v, want 2024-01-10", calendar.FormatDate(got), ok)
	}
}
