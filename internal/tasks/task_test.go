package tasks

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"TODO", StatusTodo, false},
		{"done", StatusDone, false},
		{"in-progress", StatusInProgress, false},
		{"In Progress", StatusInProgress, false},
		{"blocked", StatusTodo, true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("high"); err != nil || l != LevelHigh {
		t.Errorf("ParseLevel(high) = %q, %v", l, err)
	}
	if l, err := ParseLevel(" LOW "); err != nil || l != LevelLow {
		t.Errorf("ParseLevel(LOW) = %q, %v", l, err)
	}
	if _, err := ParseLevel("medium"); err == nil {
		t.Error("expected error for medium")
	}
}

func TestGenerateIDs(t *testing.T) {
	id := GenerateTaskID()
	if !strings.HasPrefix(id, "task_") || len(id) != 37 {
		t.Errorf("task id %q", id)
	}
	h := GenerateHistoryID()
	if !strings.HasPrefix(h, "hist_") || len(h) != 13 {
		t.Errorf("history id %q", h)
	}
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		id := GenerateTaskID()
		if seen[id] {
			t.Fatalf("duplicate task id %q after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestTaskJSON_RoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	task, _ := NewTask(Patch{Title: Ptr("Draft")}, now, now)
	task, _ = ApplyPatch(task, Patch{Title: Ptr("Final")}, SaveOptions{}, now, "User")

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"createdAt"`, `"completionHistory"`, `"oldValue"`, `"user":"User"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded task missing %s: %s", key, data)
		}
	}

	var got Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Title != "Final" || !got.CreatedAt.Equal(now) || len(got.History) != 1 || !got.History[0].Timestamp.Equal(now) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestTaskJSON_EpochMillis(t *testing.T) {
	raw := `{"id":"x","createdAt":1704879000000,"updatedAt":1704879000000,"completedAt":null,
		"recurrenceEndedAt":1704965400000,"history":[{"id":"h","timestamp":1704879000000,"field":"Title"}]}`

	var got Task
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.CreatedAt.UnixMilli() != 1704879000000 {
		t.Errorf("createdAt = %v", got.CreatedAt)
	}
	if got.CompletedAt != nil {
		t.Error("null completedAt should stay nil")
	}
	if got.RecurrenceEndedAt == nil || got.RecurrenceEndedAt.UnixMilli() != 1704965400000 {
		t.Errorf("recurrenceEndedAt = %v", got.RecurrenceEndedAt)
	}
	if got.History[0].Timestamp.UnixMilli() != 1704879000000 {
		t.Errorf("history timestamp = %v", got.History[0].Timestamp)
	}
}

func TestTaskJSON_BadTimestamp(t *testing.T) {
	var got Task
	if err := json.Unmarshal([]byte(`{"createdAt":"yesterday"}`), &got); err == nil {
		t.Error("expected error for unparsable timestamp")
	}
}

func TestClone_DeepCopy(t *testing.T) {
	now := time.Now()
	orig := Task{
		CompletedAt:       &now,
		History:           []HistoryEntry{{ID: "a"}},
		CompletionHistory: map[string]Status{"2024": StatusDone},
	}
	c := orig.Clone()
	c.History[0].ID = "b"
	c.CompletionHistory["2024"] = StatusTodo
	*c.CompletedAt = now.Add(time.Hour)

	if orig.History[0].ID != "a" || orig.CompletionHistory["2024"] != StatusDone || !orig.CompletedAt.Equal(now) {
		t.Error("clone shares state with the original")
	}
}
