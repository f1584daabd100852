package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// Collection is the part of the task engine the hub drives.
type Collection interface {
	Snapshot() tasks.Snapshot
	Relocate(ctx context.Context, id string, urgency, importance tasks.Level) (tasks.Task, tasks.Snapshot, error)
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	tasks          Collection
	originPatterns []string
	unsubscribe    func()
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOriginPatterns admits browser origins besides the gateway's own host.
// Patterns use path.Match syntax against the origin host, e.g. "localhost:*".
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.originPatterns = append(h.originPatterns, patterns...) }
}

// NewHub creates a hub that broadcasts every bus event to its clients.
// Browser connections are only accepted from the gateway's own origin unless
// WithOriginPatterns widens it; clients sending no Origin are always accepted.
func NewHub(bus *events.Bus, collection Collection, opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		tasks:   collection,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e.TaskID, e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends data to all connected clients.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("ws accept", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.register(client)

	ctx := events.ContextWithSource(r.Context(), events.SourceGateway)
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws unknown frame type", "type", frame.Type)
			continue
		}
		c.handleRequest(ctx, frame)
	}
}

func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch Method(frame.Method) {
	case MethodPing:
		c.reply(frame.ID, true, map[string]string{"status": "pong"}, "")

	case MethodSnapshot:
		snap := c.hub.tasks.Snapshot()
		c.reply(frame.ID, true, map[string]any{"version": snap.Version, "tasks": snap.Tasks}, "")

	case MethodRelocate:
		var params RelocateParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.reply(frame.ID, false, nil, "invalid params")
			return
		}
		urgency, err := tasks.ParseLevel(params.Urgency)
		if err != nil {
			c.reply(frame.ID, false, nil, err.Error())
			return
		}
		importance, err := tasks.ParseLevel(params.Importance)
		if err != nil {
			c.reply(frame.ID, false, nil, err.Error())
			return
		}
		task, snap, err := c.hub.tasks.Relocate(ctx, params.ID, urgency, importance)
		if err != nil {
			c.reply(frame.ID, false, nil, err.Error())
			return
		}
		c.reply(frame.ID, true, map[string]any{"version": snap.Version, "task": task}, "")

	default:
		c.reply(frame.ID, false, nil, "unknown method: "+frame.Method)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) reply(id string, ok bool, payload any, errMsg string) {
	f, err := NewResponseFrame(id, ok, payload, errMsg)
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, live := c.hub.clients[c]; !live {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
		close(c.send)
	}
}
