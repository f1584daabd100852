package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/events"
)

type recordingPersister struct {
	mu    sync.Mutex
	saves [][]Task
	fail  error
}

func (p *recordingPersister) Persist(_ context.Context, tasks []Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saves = append(p.saves, tasks)
	return nil
}

func (p *recordingPersister) last() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *recordingPersister) {
	t.Helper()
	p := &recordingPersister{}
	clock := fixedNow
	opts = append([]Option{WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})}, opts...)
	return NewEngine(nil, p, opts...), p
}

func TestEngine_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)

	task, snap, err := e.Create(ctx, Patch{Title: Ptr("Draft")}, mustDate(t, "2024-01-12"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Version != 1 || len(snap.Tasks) != 1 {
		t.Fatalf("snapshot = v%d/%d tasks", snap.Version, len(snap.Tasks))
	}
	if task.Date != "2024-01-12" {
		t.Errorf("Date = %q, want context date", task.Date)
	}
	if len(p.last()) != 1 {
		t.Error("create was not persisted")
	}

	updated, snap, err := e.Save(ctx, task.ID, Patch{Title: Ptr("Final")}, SaveOptions{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snap.Version != 2 || updated.Title != "Final" || len(updated.History) != 1 {
		t.Errorf("update: v%d title=%q history=%d", snap.Version, updated.Title, len(updated.History))
	}
	if e.actor != DefaultActor || updated.History[0].Actor != DefaultActor {
		t.Errorf("actor = %q", updated.History[0].Actor)
	}

	snap, err = e.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(snap.Tasks) != 0 || snap.Version != 3 {
		t.Errorf("after delete: v%d/%d tasks", snap.Version, len(snap.Tasks))
	}
	if len(p.last()) != 0 {
		t.Error("delete was not persisted")
	}

	if _, err := e.Delete(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
	if _, err := e.Get(task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v", err)
	}
}

func TestEngine_SaveWithoutIDCreates(t *testing.T) {
	e, _ := newTestEngine(t)
	task, snap, err := e.Save(context.Background(), "", Patch{Urgency: Ptr(LevelHigh)}, SaveOptions{ContextDate: mustDate(t, "2024-02-02")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(snap.Tasks) != 1 || task.Urgency != LevelHigh || task.Date != "2024-02-02" {
		t.Errorf("task = %+v", task)
	}
}

func TestEngine_PersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)

	task, _, err := e.Create(ctx, Patch{Title: Ptr("keep")}, time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p.fail = errors.New("disk full")

	if _, _, err := e.Update(ctx, task.ID, Patch{Title: Ptr("lost")}, SaveOptions{}); err == nil {
		t.Fatal("expected persist error")
	}
	if _, err := e.Delete(ctx, task.ID); err == nil {
		t.Fatal("expected persist error")
	}
	if _, _, err := e.Create(ctx, Patch{}, time.Time{}); err == nil {
		t.Fatal("expected persist error")
	}

	snap := e.Snapshot()
	if snap.Version != 1 || len(snap.Tasks) != 1 || snap.Tasks[0].Title != "keep" || len(snap.Tasks[0].History) != 0 {
		t.Errorf("state changed after failed writes: %+v", snap)
	}
}

func TestEngine_Relocate(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	task, _, _ := e.Create(ctx, Patch{}, time.Time{})

	moved, snap, err := e.Relocate(ctx, task.ID, LevelHigh, LevelHigh)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if snap.Version != 2 || moved.History[0].Field != FieldMatrixPosition {
		t.Errorf("v%d history=%+v", snap.Version, moved.History)
	}

	saves := len(p.saves)
	_, snap, err = e.Relocate(ctx, task.ID, LevelHigh, LevelHigh)
	if err != nil {
		t.Fatalf("Relocate no-op: %v", err)
	}
	if snap.Version != 2 || len(p.saves) != saves {
		t.Error("no-op relocate bumped the version or persisted")
	}
}

func TestEngine_EndedSeriesGuard(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	task, _, _ := e.Create(ctx, Patch{Frequency: Ptr(calendar.FrequencyWeekly), Date: Ptr("2024-01-03")}, time.Time{})

	d := mustDate(t, "2024-01-10")
	ended, _, err := e.EndSeries(ctx, task.ID, d)
	if err != nil {
		t.Fatalf("EndSeries: %v", err)
	}
	if ended.CompletionHistory["2024-W2"] != StatusDone {
		t.Errorf("ledger = %v", ended.CompletionHistory)
	}

	if _, _, err := e.Update(ctx, task.ID, Patch{Title: Ptr("x")}, SaveOptions{}); !errors.Is(err, ErrSeriesEnded) {
		t.Errorf("update ended: err = %v", err)
	}
	if _, _, err := e.Relocate(ctx, task.ID, LevelHigh, LevelLow); !errors.Is(err, ErrSeriesEnded) {
		t.Errorf("relocate ended: err = %v", err)
	}

	resumed, _, err := e.ResumeSeries(ctx, task.ID)
	if err != nil {
		t.Fatalf("ResumeSeries: %v", err)
	}
	if resumed.IsEnded() || resumed.Status != StatusTodo {
		t.Error("series not reopened")
	}
	if _, _, err := e.Update(ctx, task.ID, Patch{Title: Ptr("x")}, SaveOptions{}); err != nil {
		t.Errorf("update after resume: %v", err)
	}
}

func TestEngine_ReplaceAndAppend(t *testing.T) {
	ctx := context.Background()
	e, p := newTestEngine(t)
	e.Create(ctx, Patch{Title: Ptr("old")}, time.Time{})

	snap, err := e.Append(ctx, []Task{{ID: "task_new", Title: "new", Date: "2024-01-01"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(snap.Tasks) != 2 || snap.Tasks[1].Frequency != calendar.FrequencyNone {
		t.Errorf("append: %+v", snap.Tasks)
	}

	snap, err = e.ReplaceAll(ctx, []Task{{ID: "task_only", Title: "only", Date: "2024-01-01"}})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "task_only" {
		t.Errorf("replace: %+v", snap.Tasks)
	}

	snap, err = e.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(snap.Tasks) != 0 || len(p.last()) != 0 {
		t.Error("reset did not empty the collection")
	}
}

func TestEngine_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	task, _, _ := e.Create(ctx, Patch{Title: Ptr("orig")}, time.Time{})

	snap := e.Snapshot()
	snap.Tasks[0].Title = "hacked"
	snap.Tasks[0].CompletionHistory["x"] = StatusDone

	got, err := e.Get(task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "orig" || len(got.CompletionHistory) != 0 {
		t.Error("snapshot shares state with the engine")
	}
}

func TestEngine_PublishesEvents(t *testing.T) {
	bus := events.NewBus(16)
	ch, unsub := bus.SubscribeChan(16)
	defer unsub()

	e, _ := newTestEngine(t, WithBus(bus), WithActor("ops"))
	ctx := events.ContextWithSource(context.Background(), events.SourceCLI)

	task, _, err := e.Create(ctx, Patch{Title: Ptr("Draft")}, time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := e.Update(events.ContextWithActor(ctx, "alice"), task.ID, Patch{Title: Ptr("Final")}, SaveOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var got []events.Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %d events, want 2", len(got))
		}
	}

	byType := map[events.EventType]events.Event{}
	for _, ev := range got {
		byType[ev.Type] = ev
	}
	created, ok := byType[events.EventTaskCreated]
	if !ok || created.TaskID != task.ID || created.Source != events.SourceCLI || created.Actor != "ops" {
		t.Errorf("created event = %+v", created)
	}
	updated, ok := events.ExtractPayload[events.TaskUpdatedPayload](byType[events.EventTaskUpdated])
	if !ok {
		t.Fatal("missing task.updated payload")
	}
	if len(updated.Changes) != 1 || updated.Changes[0].NewValue != "Final" || updated.Version != 2 {
		t.Errorf("updated payload = %+v", updated)
	}
	if byType[events.EventTaskUpdated].Actor != "alice" {
		t.Errorf("actor = %q, want alice", byType[events.EventTaskUpdated].Actor)
	}
}

func TestEngine_ClockTruncatedToMillis(t *testing.T) {
	e := NewEngine(nil, nil, WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)
	}))
	if got := e.Now().Nanosecond(); got != 123000000 {
		t.Errorf("nanos = %d, want 123000000", got)
	}
}

func TestNewEngine_NormalizesInitial(t *testing.T) {
	e := NewEngine([]Task{{ID: "task_legacy", Title: "legacy", Date: "2024-01-01"}}, nil)
	got, err := e.Get("task_legacy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.History == nil || got.CompletionHistory == nil || got.Frequency != calendar.FrequencyNone {
		t.Errorf("legacy record not repaired: %+v", got)
	}
}
