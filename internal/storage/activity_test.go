package storage

import (
	"testing"

	"github.com/dohr-michael/priomatrix/internal/events"
)

func TestActivityTracker_Accumulation(t *testing.T) {
	bus := events.NewBus(64)

	at := NewActivityTracker(bus)
	defer at.Close()

	bus.Publish(events.NewTaskEvent(events.SourceCLI, events.TaskCreatedPayload{TaskID: "task_a", Version: 1}, "task_a", "alice"))
	bus.Publish(events.NewTaskEvent(events.SourceCLI, events.TaskUpdatedPayload{TaskID: "task_a", Version: 2}, "task_a", "alice"))
	bus.Publish(events.NewTaskEvent(events.SourceGateway, events.TaskMovedPayload{TaskID: "task_a", Version: 3}, "task_a", "bob"))
	bus.Close()

	r := at.Report()
	if r.Total != 3 {
		t.Errorf("total: got %d, want 3", r.Total)
	}
	if r.ByType[events.EventTaskCreated] != 1 || r.ByType[events.EventTaskMoved] != 1 {
		t.Errorf("by type: %v", r.ByType)
	}
	if r.ByActor["alice"] != 2 || r.ByActor["bob"] != 1 {
		t.Errorf("by actor: %v", r.ByActor)
	}
	if len(r.Actors) != 2 || r.Actors[0] != "alice" {
		t.Errorf("actors: %v", r.Actors)
	}
	if r.LastVersion != 3 {
		t.Errorf("last version: got %d, want 3", r.LastVersion)
	}
}

func TestActivityTracker_ReportIsCopy(t *testing.T) {
	bus := events.NewBus(8)

	at := NewActivityTracker(bus)
	defer at.Close()

	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.CollectionMergedPayload{Added: 2, Count: 2, Version: 1}))
	bus.Close()

	r := at.Report()
	r.ByType[events.EventCollectionMerged] = 99

	if got := at.Report().ByType[events.EventCollectionMerged]; got != 1 {
		t.Errorf("tracker mutated through report: got %d", got)
	}
}
