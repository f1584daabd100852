package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/events"
)

// DefaultActor labels history entries when no actor is configured.
const DefaultActor = "User"

// Persister writes the whole collection in one unit.
type Persister interface {
	Persist(ctx context.Context, tasks []Task) error
}

// Snapshot is the collection at one version. Callers own the returned slice.
type Snapshot struct {
	Version int64
	Tasks   []Task
}

// Find returns the task with id.
func (s Snapshot) Find(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Engine owns the task collection. Each mutation persists the full collection
// before the new version becomes visible; a failed write leaves it unchanged.
type Engine struct {
	mu      sync.Mutex
	version int64
	tasks   []Task

	persist Persister
	bus     *events.Bus
	actor   string
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus publishes a typed event after every mutation.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithActor sets the default history actor label.
func WithActor(actor string) Option {
	return func(e *Engine) {
		if actor != "" {
			e.actor = actor
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wraps an already loaded collection. persist may be nil for an
// in-memory engine.
func NewEngine(initial []Task, persist Persister, opts ...Option) *Engine {
	e := &Engine{
		persist: persist,
		actor:   DefaultActor,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tasks = make([]Task, 0, len(initial))
	for _, t := range initial {
		t = t.Clone()
		Normalize(&t)
		e.tasks = append(e.tasks, t)
	}
	return e
}

// Snapshot returns a copy of the current collection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Get returns one task by id.
func (e *Engine) Get(id string) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Task{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e.tasks[i].Clone(), nil
}

// Save creates a task when id is empty, otherwise applies p to the existing task.
func (e *Engine) Save(ctx context.Context, id string, p Patch, opts SaveOptions) (Task, Snapshot, error) {
	if id == "" {
		return e.Create(ctx, p, opts.ContextDate)
	}
	return e.Update(ctx, id, p, opts)
}

// Create adds a new task. contextDate seeds the anchor date when p has none.
func (e *Engine) Create(ctx context.Context, p Patch, contextDate time.Time) (Task, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	if contextDate.IsZero() {
		contextDate = now
	}
	t, err := NewTask(p, contextDate, now)
	if err != nil {
		return Task{}, Snapshot{}, fmt.Errorf("create task: %w", err)
	}

	next := append(e.cloneLocked(), t)
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Task{}, Snapshot{}, err
	}
	e.publish(ctx, t.ID, events.TaskCreatedPayload{
		TaskID: t.ID, Title: t.Title, Frequency: string(t.Frequency), Date: t.Date, Version: snap.Version,
	})
	return t.Clone(), snap, nil
}

// Update applies p to the task with id.
func (e *Engine) Update(ctx context.Context, id string, p Patch, opts SaveOptions) (Task, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Task{}, Snapshot{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	prev := e.tasks[i]
	updated, err := ApplyPatch(prev, p, opts, e.clock(), e.actorFor(ctx))
	if err != nil {
		return Task{}, Snapshot{}, err
	}

	next := e.cloneLocked()
	next[i] = updated
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Task{}, Snapshot{}, err
	}

	payload := events.TaskUpdatedPayload{TaskID: id, Version: snap.Version}
	for _, h := range updated.History[len(prev.History):] {
		payload.Changes = append(payload.Changes, events.FieldChange{Field: h.Field, OldValue: h.OldValue, NewValue: h.NewValue})
	}
	if updated.IsRecurring() && opts.RecordCompletion && p.Status != nil {
		ctxDate := opts.ContextDate
		if ctxDate.IsZero() {
			ctxDate = updated.UpdatedAt
		}
		payload.Period = calendar.PeriodKey(ctxDate, updated.Frequency)
	}
	e.publish(ctx, id, payload)
	return updated.Clone(), snap, nil
}

// Relocate moves a task to another urgency/importance quadrant. Moving to the
// quadrant it already occupies is a no-op that returns the current snapshot.
func (e *Engine) Relocate(ctx context.Context, id string, urgency, importance Level) (Task, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Task{}, Snapshot{}, fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	prev := e.tasks[i]
	moved, changed, err := Relocate(prev, urgency, importance, e.clock(), e.actorFor(ctx))
	if err != nil {
		return Task{}, Snapshot{}, err
	}
	if !changed {
		return prev.Clone(), e.snapshotLocked(), nil
	}

	next := e.cloneLocked()
	next[i] = moved
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Task{}, Snapshot{}, err
	}
	e.publish(ctx, id, events.TaskMovedPayload{
		TaskID:  id,
		From:    matrixPosition(prev.Urgency, prev.Importance),
		To:      matrixPosition(urgency, importance),
		Version: snap.Version,
	})
	return moved.Clone(), snap, nil
}

// Delete removes a task. No tombstone is kept.
func (e *Engine) Delete(ctx context.Context, id string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Snapshot{}, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	removed := e.tasks[i]

	next := make([]Task, 0, len(e.tasks)-1)
	for j, t := range e.tasks {
		if j != i {
			next = append(next, t.Clone())
		}
	}
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Snapshot{}, err
	}
	e.publish(ctx, id, events.TaskDeletedPayload{TaskID: id, Title: removed.Title, Version: snap.Version})
	return snap, nil
}

// EndSeries closes a recurring series, marking the occurrence of contextDate done.
func (e *Engine) EndSeries(ctx context.Context, id string, contextDate time.Time) (Task, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Task{}, Snapshot{}, fmt.Errorf("end %s: %w", id, ErrNotFound)
	}
	now := e.clock()
	if contextDate.IsZero() {
		contextDate = now
	}
	ended, err := EndSeries(e.tasks[i], contextDate, now, e.actorFor(ctx))
	if err != nil {
		return Task{}, Snapshot{}, err
	}

	next := e.cloneLocked()
	next[i] = ended
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Task{}, Snapshot{}, err
	}
	e.publish(ctx, id, events.SeriesEndedPayload{
		TaskID: id, EndedAt: now, Period: calendar.PeriodKey(contextDate, ended.Frequency), Version: snap.Version,
	})
	return ended.Clone(), snap, nil
}

// ResumeSeries reopens an ended series. Resuming an open series is a no-op.
func (e *Engine) ResumeSeries(ctx context.Context, id string) (Task, Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return Task{}, Snapshot{}, fmt.Errorf("resume %s: %w", id, ErrNotFound)
	}
	resumed, changed := ResumeSeries(e.tasks[i], e.clock(), e.actorFor(ctx))
	if !changed {
		return resumed.Clone(), e.snapshotLocked(), nil
	}

	next := e.cloneLocked()
	next[i] = resumed
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Task{}, Snapshot{}, err
	}
	e.publish(ctx, id, events.SeriesResumedPayload{TaskID: id, Version: snap.Version})
	return resumed.Clone(), snap, nil
}

// Append adds already normalized tasks to the end of the collection.
func (e *Engine) Append(ctx context.Context, added []Task) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cloneLocked()
	for _, t := range added {
		t = t.Clone()
		Normalize(&t)
		next = append(next, t)
	}
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Snapshot{}, err
	}
	e.publish(ctx, "", events.CollectionMergedPayload{Added: len(added), Count: len(snap.Tasks), Version: snap.Version})
	return snap, nil
}

// ReplaceAll discards the collection and substitutes replacement.
func (e *Engine) ReplaceAll(ctx context.Context, replacement []Task) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := len(e.tasks)
	next := make([]Task, 0, len(replacement))
	for _, t := range replacement {
		t = t.Clone()
		Normalize(&t)
		next = append(next, t)
	}
	snap, err := e.commitLocked(ctx, next)
	if err != nil {
		return Snapshot{}, err
	}
	e.publish(ctx, "", events.CollectionReplacedPayload{Previous: previous, Count: len(snap.Tasks), Version: snap.Version})
	return snap, nil
}

// Reset empties the collection.
func (e *Engine) Reset(ctx context.Context) (Snapshot, error) {
	return e.ReplaceAll(ctx, nil)
}

// Actor returns the actor label that ctx resolves to.
func (e *Engine) Actor(ctx context.Context) string {
	return e.actorFor(ctx)
}

// Now returns the engine clock truncated to millisecond precision.
func (e *Engine) Now() time.Time {
	return e.clock()
}

func (e *Engine) clock() time.Time {
	return e.now().Round(0).Truncate(time.Millisecond)
}

func (e *Engine) actorFor(ctx context.Context) string {
	if a := events.ActorFromContext(ctx); a != "" {
		return a
	}
	return e.actor
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.tasks {
		if e.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) cloneLocked() []Task {
	out := make([]Task, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{Version: e.version, Tasks: e.cloneLocked()}
}

func (e *Engine) commitLocked(ctx context.Context, next []Task) (Snapshot, error) {
	if e.persist != nil {
		if err := e.persist.Persist(ctx, next); err != nil {
			return Snapshot{}, fmt.Errorf("persist tasks: %w", err)
		}
	}
	e.tasks = next
	e.version++
	slog.Debug("task collection committed", "version", e.version, "count", len(next))
	return e.snapshotLocked(), nil
}

func (e *Engine) publish(ctx context.Context, taskID string, payload events.EventPayload) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.NewTaskEvent(events.SourceFromContext(ctx), payload, taskID, e.actorFor(ctx)))
}
