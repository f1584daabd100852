package tasks

import (
	"time"
)

// Human-readable field names recorded in history entries.
const (
	FieldTitle           = "Title"
	FieldDescription     = "Description"
	FieldUrgency         = "Urgency"
	FieldImportance      = "Importance"
	FieldStatus          = "Status"
	FieldDate            = "Date"
	FieldFrequency       = "Frequency"
	FieldMatrixPosition  = "Matrix Position"
	FieldRecurrenceEnded = "Recurrence Ended"
)

type fieldChange struct {
	field    string
	oldValue string
	newValue string
}

// diffPatch lists the supplied fields of p whose value differs from t, in
// declaration order.
func diffPatch(t *Task, p Patch) []fieldChange {
	var changes []fieldChange
	add := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, fieldChange{field: field, oldValue: oldValue, newValue: newValue})
		}
	}
	if p.Title != nil {
		add(FieldTitle, t.Title, *p.Title)
	}
	if p.Description != nil {
		add(FieldDescription, t.Description, *p.Description)
	}
	if p.Urgency != nil {
		add(FieldUrgency, string(t.Urgency), string(*p.Urgency))
	}
	if p.Importance != nil {
		add(FieldImportance, string(t.Importance), string(*p.Importance))
	}
	if p.Status != nil {
		add(FieldStatus, string(t.Status), string(*p.Status))
	}
	if p.Date != nil {
		add(FieldDate, t.Date, *p.Date)
	}
	if p.Frequency != nil {
		add(FieldFrequency, string(t.Frequency), string(*p.Frequency))
	}
	return changes
}

func appendHistory(t *Task, now time.Time, actor string, changes ...fieldChange) {
	for _, c := range changes {
		t.History = append(t.History, HistoryEntry{
			ID:        GenerateHistoryID(),
			Timestamp: now,
			Field:     c.field,
			OldValue:  c.oldValue,
			NewValue:  c.newValue,
			Actor:     actor,
		})
	}
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func matrixPosition(urgency, importance Level) string {
	return string(urgency) + " / " + string(importance)
}
