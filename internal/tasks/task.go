// Package tasks holds the task model, the occurrence evaluator that projects a
// stored definition onto calendar dates, and the mutation engine that records
// field-level history.
package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/priomatrix/internal/calendar"
)

// Status is the progress state of a one-off task or of one occurrence.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// ParseStatus accepts TODO, IN_PROGRESS and DONE in any case, with '-' or ' '
// standing in for '_'.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return StatusTodo, fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Level is the urgency or importance rating of a task.
type Level string

const (
	LevelHigh Level = "High"
	LevelLow  Level = "Low"
)

// Valid reports whether l is High or Low.
func (l Level) Valid() bool {
	return l == LevelHigh || l == LevelLow
}

// ParseLevel matches High or Low case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch {
	case strings.EqualFold(strings.TrimSpace(s), string(LevelHigh)):
		return LevelHigh, nil
	case strings.EqualFold(strings.TrimSpace(s), string(LevelLow)):
		return LevelLow, nil
	}
	return LevelLow, fmt.Errorf("unknown level %q (want High or Low)", s)
}

// HistoryEntry is one immutable audit record of a field change.
type HistoryEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Field     string    `json:"field" yaml:"field"`
	OldValue  string    `json:"oldValue" yaml:"old_value"`
	NewValue  string    `json:"newValue" yaml:"new_value"`
	Actor     string    `json:"user" yaml:"actor"`
}

// Task is the stored definition of a one-off work item or a recurring series.
//
// Status and CompletedAt only apply when Frequency is None. RecurrenceEndedAt
// and CompletionHistory only apply to recurring tasks.
type Task struct {
	ID                string             `json:"id" yaml:"id"`
	Title             string             `json:"title" yaml:"title"`
	Description       string             `json:"description" yaml:"description"`
	Urgency           Level              `json:"urgency" yaml:"urgency"`
	Importance        Level              `json:"importance" yaml:"importance"`
	Status            Status             `json:"status" yaml:"status"`
	Date              string             `json:"date" yaml:"date"`
	Frequency         calendar.Frequency `json:"frequency" yaml:"frequency"`
	CreatedAt         time.Time          `json:"createdAt" yaml:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" yaml:"updated_at"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	RecurrenceEndedAt *time.Time         `json:"recurrenceEndedAt,omitempty" yaml:"recurrence_ended_at,omitempty"`
	History           []HistoryEntry     `json:"history" yaml:"history"`
	CompletionHistory map[string]Status  `json:"completionHistory" yaml:"completion_history"`
}

// IsRecurring reports whether the task is a series.
func (t *Task) IsRecurring() bool {
	return t.Frequency.IsRecurring()
}

// IsEnded reports whether a recurring series has been closed.
func (t *Task) IsEnded() bool {
	return t.RecurrenceEndedAt != nil
}

// Clone returns a deep copy so callers can mutate without touching the
// collection's snapshot.
func (t Task) Clone() Task {
	out := t
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.RecurrenceEndedAt != nil {
		v := *t.RecurrenceEndedAt
		out.RecurrenceEndedAt = &v
	}
	out.History = append([]HistoryEntry{}, t.History...)
	out.CompletionHistory = make(map[string]Status, len(t.CompletionHistory))
	for k, v := range t.CompletionHistory {
		out.CompletionHistory[k] = v
	}
	return out
}

// Normalize repairs records written by older versions: missing history,
// frequency and completion ledger default to empty, None and empty. An empty
// title becomes DefaultTitle.
func Normalize(t *Task) {
	if t.Title == "" {
		t.Title = DefaultTitle
	}
	if t.History == nil {
		t.History = []HistoryEntry{}
	}
	if t.Frequency == "" {
		t.Frequency = calendar.FrequencyNone
	}
	if t.CompletionHistory == nil {
		t.CompletionHistory = map[string]Status{}
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Urgency == "" {
		t.Urgency = LevelLow
	}
	if t.Importance == "" {
		t.Importance = LevelLow
	}
}

// GenerateTaskID creates a unique task identifier carrying a full random
// UUID, so ids minted by separate imports do not collide.
func GenerateTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateHistoryID creates a unique history entry identifier.
func GenerateHistoryID() string {
	u := uuid.New().String()
	return "hist_" + strings.ReplaceAll(u[:8], "-", "")
}

// UnmarshalJSON accepts timestamps either as RFC 3339 strings or as epoch
// milliseconds, the format of collections exported by the browser build.
func (t *Task) UnmarshalJSON(data []byte) error {
	type Alias Task
	aux := &struct {
		CreatedAt         json.RawMessage `json:"createdAt"`
		UpdatedAt         json.RawMessage `json:"updatedAt"`
		CompletedAt       json.RawMessage `json:"completedAt"`
		RecurrenceEndedAt json.RawMessage `json:"recurrenceEndedAt"`
		*Alias
	}{Alias: (*Alias)(t)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var err error
	if t.CompletedAt, err = decodeInstant(aux.CompletedAt); err != nil {
		return fmt.Errorf("completedAt: %w", err)
	}
	if t.RecurrenceEndedAt, err = decodeInstant(aux.RecurrenceEndedAt); err != nil {
		return fmt.Errorf("recurrenceEndedAt: %w", err)
	}
	created, err := decodeInstant(aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	if created != nil {
		t.CreatedAt = *created
	}
	updated, err := decodeInstant(aux.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updatedAt: %w", err)
	}
	if updated != nil {
		t.UpdatedAt = *updated
	}
	return nil
}

// UnmarshalJSON accepts the same timestamp encodings as Task.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	type Alias HistoryEntry
	aux := &struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*Alias
	}{Alias: (*Alias)(h)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	ts, err := decodeInstant(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if ts != nil {
		h.Timestamp = *ts
	}
	return nil
}

func decodeInstant(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return &ts, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, err
	}
	ts := time.UnixMilli(int64(ms))
	return &ts, nil
}
