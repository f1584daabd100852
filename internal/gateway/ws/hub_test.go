package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

func newTestHub(t *testing.T) (*Hub, *tasks.Engine, *websocket.Conn, context.Context) {
	t.Helper()
	bus := events.NewBus(64)
	engine := tasks.NewEngine(nil, nil, tasks.WithBus(bus))
	hub := NewHub(bus, engine)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		bus.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	// Wait until the hub has registered the client so broadcasts reach it.
	for i := 0; hub.Clients() == 0; i++ {
		if i > 500 {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return hub, engine, conn, ctx
}

func request(t *testing.T, ctx context.Context, conn *websocket.Conn, id string, method Method, params any) {
	t.Helper()
	f := Frame{Type: FrameTypeRequest, ID: id, Method: string(method)}
	if params != nil {
		data, _ := json.Marshal(params)
		f.Params = data
	}
	data, _ := MarshalFrame(f)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil returns the first frame matching pred.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, pred func(Frame) bool) Frame {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		f, err := UnmarshalFrame(data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if pred(f) {
			return f
		}
	}
}

func responseTo(id string) func(Frame) bool {
	return func(f Frame) bool { return f.Type == FrameTypeResponse && f.ID == id }
}

func TestHub_Ping(t *testing.T) {
	_, _, conn, ctx := newTestHub(t)

	request(t, ctx, conn, "1", MethodPing, nil)
	f := readUntil(t, ctx, conn, responseTo("1"))
	if f.OK == nil || !*f.OK {
		t.Fatalf("ping failed: %+v", f)
	}
}

func TestHub_RelocateBroadcastsEvent(t *testing.T) {
	_, engine, conn, ctx := newTestHub(t)

	task, _, err := engine.Create(context.Background(), tasks.Patch{Title: tasks.Ptr("drag me")}, time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	request(t, ctx, conn, "mv", MethodRelocate, RelocateParams{ID: task.ID, Urgency: "high", Importance: "high"})
	resp := readUntil(t, ctx, conn, responseTo("mv"))
	if resp.OK == nil || !*resp.OK {
		t.Fatalf("relocate failed: %s", resp.Error)
	}

	ev := readUntil(t, ctx, conn, func(f Frame) bool {
		return f.Type == FrameTypeEvent && f.Event == string(events.EventTaskMoved)
	})
	if ev.TaskID != task.ID {
		t.Errorf("event task = %q, want %q", ev.TaskID, task.ID)
	}
	var e events.Event
	if err := json.Unmarshal(ev.Payload, &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if e.Source != events.SourceGateway {
		t.Errorf("source = %q, want gateway", e.Source)
	}

	got, _ := engine.Get(task.ID)
	if got.Urgency != tasks.LevelHigh || got.Importance != tasks.LevelHigh {
		t.Errorf("task not moved: %s / %s", got.Urgency, got.Importance)
	}
}

func TestHub_RelocateErrors(t *testing.T) {
	_, _, conn, ctx := newTestHub(t)

	request(t, ctx, conn, "bad-level", MethodRelocate, RelocateParams{ID: "x", Urgency: "medium", Importance: "low"})
	if f := readUntil(t, ctx, conn, responseTo("bad-level")); f.OK == nil || *f.OK {
		t.Error("expected failure for invalid level")
	}

	request(t, ctx, conn, "missing", MethodRelocate, RelocateParams{ID: "task_none", Urgency: "high", Importance: "low"})
	f := readUntil(t, ctx, conn, responseTo("missing"))
	if f.OK == nil || *f.OK || !strings.Contains(f.Error, "not found") {
		t.Errorf("got %+v", f)
	}

	request(t, ctx, conn, "unknown", Method("explode"), nil)
	if f := readUntil(t, ctx, conn, responseTo("unknown")); f.OK == nil || *f.OK {
		t.Error("expected failure for unknown method")
	}
}

func TestHub_Snapshot(t *testing.T) {
	_, engine, conn, ctx := newTestHub(t)
	engine.Create(context.Background(), tasks.Patch{Title: tasks.Ptr("one")}, time.Time{})

	request(t, ctx, conn, "snap", MethodSnapshot, nil)
	f := readUntil(t, ctx, conn, responseTo("snap"))

	var body struct {
		Version int64        `json:"version"`
		Tasks   []tasks.Task `json:"tasks"`
	}
	if err := json.Unmarshal(f.Payload, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Version != 1 || len(body.Tasks) != 1 || body.Tasks[0].Title != "one" {
		t.Errorf("snapshot = %+v", body)
	}
}

func TestHub_OriginCheck(t *testing.T) {
	bus := events.NewBus(8)
	engine := tasks.NewEngine(nil, nil, tasks.WithBus(bus))
	hub := NewHub(bus, engine, WithOriginPatterns("localhost:5173"))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		bus.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same host", srv.URL, true},
		{"allowed pattern", "http://localhost:5173", true},
		{"foreign site", "https://evil.example", false},
		{"foreign port", "http://localhost:8080", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.CloseNow()
				return
			}
			if err == nil {
				conn.CloseNow()
				t.Fatal("expected the handshake to be rejected")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %+v, want 403", resp)
			}
		})
	}
}
