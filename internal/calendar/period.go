package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the cadence of a task.
type Frequency string

const (
	FrequencyNone    Frequency = "None"
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

// Frequencies lists every cadence, finest first after None.
var Frequencies = []Frequency{FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

// IsRecurring reports whether f repeats.
func (f Frequency) IsRecurring() bool {
	return f != FrequencyNone && f != ""
}

// Valid reports whether f is one of the known cadences.
func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFrequency matches s case-insensitively. Empty input is None.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FrequencyNone, nil
	}
	for _, f := range Frequencies {
		if strings.EqualFold(string(f), s) {
			return f, nil
		}
	}
	return FrequencyNone, fmt.Errorf("unknown frequency %q", s)
}

// PeriodKey identifies the recurring instance t belongs to:
//
//	Daily   → 2024-01-10
//	Weekly  → 2024-W2 (ISO-8601 week-numbering year and week)
//	Monthly → 2024-01
//	Yearly  → 2024
//
// None yields "".
func PeriodKey(t time.Time, f Frequency) string {
	switch f {
	case FrequencyDaily:
		return FormatDate(t)
	case FrequencyWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%d", year, week)
	case FrequencyMonthly:
		return t.Format("2006-01")
	case FrequencyYearly:
		return t.Format("2006")
	default:
		return ""
	}
}
