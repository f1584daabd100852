// Package storage persists the mutation audit trail.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/priomatrix/internal/events"
)

const globalTrail = "_global"

// AuditLogger persists bus events to JSONL files, one per task. Events not
// tied to a task go to _global.jsonl.
type AuditLogger struct {
	mu          sync.Mutex
	dir         string
	unsubscribe func()
}

// NewAuditLogger subscribes to every bus event and appends each to dir.
func NewAuditLogger(dir string, bus *events.Bus) *AuditLogger {
	al := &AuditLogger{dir: dir}
	al.unsubscribe = bus.Subscribe(al.handleEvent)
	return al
}

// Close unsubscribes the logger from the event bus.
func (al *AuditLogger) Close() {
	if al.unsubscribe != nil {
		al.unsubscribe()
	}
}

func (al *AuditLogger) handleEvent(e events.Event) {
	if err := al.writeEvent(e); err != nil {
		slog.Warn("audit write failed", "event", e.Type, "task", e.TaskID, "error", err)
	}
}

func (al *AuditLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	al.mu.Lock()
	defer al.mu.Unlock()

	path := al.trailPath(e.TaskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Trail reads back the events recorded for taskID, oldest first. An empty
// taskID reads the global trail. A task that was never logged has no events.
func (al *AuditLogger) Trail(taskID string) ([]events.Event, error) {
	return ReadTrail(al.dir, taskID)
}

// ReadTrail reads an audit trail from dir without subscribing to a bus.
func ReadTrail(dir, taskID string) ([]events.Event, error) {
	f, err := os.Open(trailPath(dir, taskID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	defer f.Close()

	var out []events.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		var e events.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return out, fmt.Errorf("audit trail line %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

func (al *AuditLogger) trailPath(taskID string) string {
	return trailPath(al.dir, taskID)
}

func trailPath(dir, taskID string) string {
	if taskID == "" {
		taskID = globalTrail
	}
	return filepath.Join(dir, filepath.Base(taskID)+".jsonl")
}
