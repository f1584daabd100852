package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dohr-michael/priomatrix/internal/storage/blobstore"
)

// DefaultStorageKey is the blob key holding the serialized collection.
const DefaultStorageKey = "priomatrix.tasks"

// Repository loads and persists the collection as one JSON array under a
// single blob key.
type Repository struct {
	store blobstore.Store
	key   string
}

// NewRepository wraps store. An empty key uses DefaultStorageKey.
func NewRepository(store blobstore.Store, key string) *Repository {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Repository{store: store, key: key}
}

// Load reads the collection. A missing key yields an empty collection; so does
// an unreadable one, which is logged and left in place until the next save
// overwrites it. Records from older versions are repaired.
func (r *Repository) Load(ctx context.Context) ([]Task, error) {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return []Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	var loaded []Task
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Error("stored task collection is malformed, starting empty", "key", r.key, "error", err)
		return []Task{}, nil
	}

	out := make([]Task, 0, len(loaded))
	for _, t := range loaded {
		if t.ID == "" {
			t.ID = GenerateTaskID()
		}
		Normalize(&t)
		out = append(out, t)
	}
	slog.Debug("task collection loaded", "key", r.key, "count", len(out))
	return out, nil
}

// Persist writes the whole collection under the repository key.
func (r *Repository) Persist(ctx context.Context, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if err := r.store.Put(ctx, r.key, data); err != nil {
		return err
	}
	return nil
}
