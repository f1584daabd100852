package storage

import (
	"sort"
	"sync"

	"github.com/dohr-michael/priomatrix/internal/events"
)

// ActivityTracker subscribes to mutation events and accumulates counts per
// event type and per actor for the running process.
type ActivityTracker struct {
	mu          sync.Mutex
	byType      map[events.EventType]int
	byActor     map[string]int
	lastVersion int64
	unsubscribe func()
}

// ActivityReport is a point-in-time copy of the counters.
type ActivityReport struct {
	Total       int                      `json:"total"`
	ByType      map[events.EventType]int `json:"by_type"`
	ByActor     map[string]int           `json:"by_actor"`
	Actors      []string                 `json:"actors"`
	LastVersion int64                    `json:"last_version"`
}

// NewActivityTracker starts counting events published on bus.
func NewActivityTracker(bus *events.Bus) *ActivityTracker {
	at := &ActivityTracker{
		byType:  make(map[events.EventType]int),
		byActor: make(map[string]int),
	}
	at.unsubscribe = bus.Subscribe(at.handleEvent)
	return at
}

// Close unsubscribes the tracker from the event bus.
func (at *ActivityTracker) Close() {
	if at.unsubscribe != nil {
		at.unsubscribe()
	}
}

func (at *ActivityTracker) handleEvent(e events.Event) {
	at.mu.Lock()
	defer at.mu.Unlock()

	at.byType[e.Type]++
	if e.Actor != "" {
		at.byActor[e.Actor]++
	}
	if v, ok := e.Payload["version"].(float64); ok && int64(v) > at.lastVersion {
		at.lastVersion = int64(v)
	}
}

// Report returns a copy of the counters.
func (at *ActivityTracker) Report() ActivityReport {
	at.mu.Lock()
	defer at.mu.Unlock()

	r := ActivityReport{
		ByType:      make(map[events.EventType]int, len(at.byType)),
		ByActor:     make(map[string]int, len(at.byActor)),
		LastVersion: at.lastVersion,
	}
	for k, v := range at.byType {
		r.ByType[k] = v
		r.Total += v
	}
	for k, v := range at.byActor {
		r.ByActor[k] = v
		r.Actors = append(r.Actors, k)
	}
	sort.Strings(r.Actors)
	return r
}
