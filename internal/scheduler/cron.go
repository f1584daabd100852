// Package scheduler projects a task cadence onto a cron schedule so the next
// occurrence of a series can be computed without walking the calendar day
// by day.
package scheduler

import (
	"fmt"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

// CronExpr wraps a parsed cron schedule.
type CronExpr struct {
	schedule cron.Schedule
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron parses a standard 5-field cron expression.
func ParseCron(expr string) (*CronExpr, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronExpr{schedule: schedule}, nil
}

// SpecFor returns the midnight cron spec of a cadence anchored on anchor.
// Monthly and yearly specs pin the anchor's day-of-month, so months that lack
// that day never fire.
func SpecFor(freq calendar.Frequency, anchor time.Time) (string, error) {
	switch freq {
	case calendar.FrequencyDaily:
		return "0 0 * * *", nil
	case calendar.FrequencyWeekly:
		return fmt.Sprintf("0 0 * * %d", int(anchor.Weekday())), nil
	case calendar.FrequencyMonthly:
		return fmt.Sprintf("0 0 %d * *", anchor.Day()), nil
	case calendar.FrequencyYearly:
		return fmt.Sprintf("0 0 %d %d *", anchor.Day(), int(anchor.Month())), nil
	default:
		return "", fmt.Errorf("frequency %q has no cron projection", freq)
	}
}

// ForFrequency parses the cron spec of a cadence.
func ForFrequency(freq calendar.Frequency, anchor time.Time) (*CronExpr, error) {
	spec, err := SpecFor(freq, anchor)
	if err != nil {
		return nil, err
	}
	return ParseCron(spec)
}

// Next returns the next activation strictly after t, or the zero time if the
// schedule never fires again.
func (c *CronExpr) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}
