package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

var (
	// ErrNoCandidates means an import produced nothing to review. It is
	// informational, not a failure.
	ErrNoCandidates = errors.New("no records to import")
	// ErrConfirmationRequired guards operations that discard the collection.
	ErrConfirmationRequired = errors.New("confirmation required: this replaces every existing task")
)

// Mode selects how reviewed candidates are committed.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// ParseMode accepts merge or replace. Empty input is merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return ModeMerge, fmt.Errorf("unknown import mode %q (want merge or replace)", s)
}

// Materialize turns reviewed candidates into tasks: each gets a fresh id, an
// empty history and ledger, and now for any creation/update time the source
// did not carry. A candidate without a date is anchored on now.
func Materialize(selected []Candidate, now time.Time) []tasks.Task {
	out := make([]tasks.Task, 0, len(selected))
	for _, c := range selected {
		t := tasks.Task{
			ID:                tasks.GenerateTaskID(),
			Title:             c.Title,
			Description:       c.Description,
			Urgency:           c.Urgency,
			Importance:        c.Importance,
			Status:            c.Status,
			Date:              c.Date,
			Frequency:         c.Frequency,
			CreatedAt:         now,
			UpdatedAt:         now,
			CompletedAt:       copyTime(c.CompletedAt),
			RecurrenceEndedAt: copyTime(c.RecurrenceEndedAt),
			History:           []tasks.HistoryEntry{},
			CompletionHistory: map[string]tasks.Status{},
		}
		if c.CreatedAt != nil {
			t.CreatedAt = *c.CreatedAt
		}
		if c.UpdatedAt != nil {
			t.UpdatedAt = *c.UpdatedAt
		}
		if t.Title == "" {
			t.Title = tasks.DefaultTitle
		}
		if t.Date == "" {
			t.Date = calendar.FormatDate(now)
		}
		if !t.IsRecurring() {
			t.RecurrenceEndedAt = nil
		}
		tasks.Normalize(&t)
		out = append(out, t)
	}
	return out
}

// Commit applies reviewed candidates to the engine. Merge appends them;
// Replace discards the collection first and only proceeds when confirm is set.
func Commit(ctx context.Context, e *tasks.Engine, mode Mode, selected []Candidate, confirm bool) (tasks.Snapshot, error) {
	if len(selected) == 0 {
		return tasks.Snapshot{}, ErrNoCandidates
	}
	prepared := Materialize(selected, e.Now())

	switch mode {
	case ModeReplace:
		if !confirm {
			return tasks.Snapshot{}, ErrConfirmationRequired
		}
		return e.ReplaceAll(ctx, prepared)
	case ModeMerge, "":
		return e.Append(ctx, prepared)
	default:
		return tasks.Snapshot{}, fmt.Errorf("unknown import mode %q", mode)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
