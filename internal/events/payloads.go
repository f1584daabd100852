package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TASK EVENTS
// =============================================================================

// FieldChange mirrors one history entry produced by a save.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

type TaskCreatedPayload struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Frequency string `json:"frequency"`
	Date      string `json:"date"`
	Version   int64  `json:"version"`
}

func (TaskCreatedPayload) EventType() EventType { return EventTaskCreated }

type TaskUpdatedPayload struct {
	TaskID  string        `json:"task_id"`
	Changes []FieldChange `json:"changes,omitempty"`
	Period  string        `json:"period,omitempty"`
	Version int64         `json:"version"`
}

func (TaskUpdatedPayload) EventType() EventType { return EventTaskUpdated }

type TaskMovedPayload struct {
	TaskID  string `json:"task_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Version int64  `json:"version"`
}

func (TaskMovedPayload) EventType() EventType { return EventTaskMoved }

type TaskDeletedPayload struct {
	TaskID  string `json:"task_id"`
	Title   string `json:"title"`
	Version int64  `json:"version"`
}

func (TaskDeletedPayload) EventType() EventType { return EventTaskDeleted }

// =============================================================================
// SERIES EVENTS
// =============================================================================

type SeriesEndedPayload struct {
	TaskID  string    `json:"task_id"`
	EndedAt time.Time `json:"ended_at"`
	Period  string    `json:"period"`
	Version int64     `json:"version"`
}

func (SeriesEndedPayload) EventType() EventType { return EventSeriesEnded }

type SeriesResumedPayload struct {
	TaskID  string `json:"task_id"`
	Version int64  `json:"version"`
}

func (SeriesResumedPayload) EventType() EventType { return EventSeriesResumed }

// =============================================================================
// COLLECTION EVENTS
// =============================================================================

type CollectionReplacedPayload struct {
	Previous int   `json:"previous"`
	Count    int   `json:"count"`
	Version  int64 `json:"version"`
}

func (CollectionReplacedPayload) EventType() EventType { return EventCollectionReplaced }

type CollectionMergedPayload struct {
	Added   int   `json:"added"`
	Count   int   `json:"count"`
	Version int64 `json:"version"`
}

func (CollectionMergedPayload) EventType() EventType { return EventCollectionMerged }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

// NewTaskEvent creates a typed event routed to one task's audit trail.
func NewTaskEvent(source EventSource, payload EventPayload, taskID, actor string) Event {
	e := NewTypedEvent(source, payload)
	e.TaskID = taskID
	e.Actor = actor
	return e
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	if e.Type != result.EventType() {
		return result, false
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
