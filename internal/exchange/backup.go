package exchange

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// BackupFormatVersion is bumped when the YAML layout changes incompatibly.
const BackupFormatVersion = 1

// Backup is the YAML document written by WriteBackup. Unlike CSV it carries
// every field, history and the completion ledger included.
type Backup struct {
	Format     int          `yaml:"format"`
	ExportedAt time.Time    `yaml:"exported_at"`
	Version    int64        `yaml:"collection_version"`
	Tasks      []tasks.Task `yaml:"tasks"`
}

// WriteBackup writes snap as YAML.
func WriteBackup(w io.Writer, snap tasks.Snapshot, now time.Time) error {
	doc := Backup{
		Format:     BackupFormatVersion,
		ExportedAt: now,
		Version:    snap.Version,
		Tasks:      snap.Tasks,
	}
	if doc.Tasks == nil {
		doc.Tasks = []tasks.Task{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return enc.Close()
}

// ReadBackup parses a YAML backup and repairs each record the same way a
// stored collection is repaired on load.
func ReadBackup(r io.Reader) (Backup, error) {
	var doc Backup
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Backup{}, fmt.Errorf("decode backup: %w", err)
	}
	if doc.Format > BackupFormatVersion {
		return Backup{}, fmt.Errorf("backup format %d is newer than supported (%d)", doc.Format, BackupFormatVersion)
	}
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == "" {
			doc.Tasks[i].ID = tasks.GenerateTaskID()
		}
		tasks.Normalize(&doc.Tasks[i])
	}
	return doc, nil
}

// Restore replaces the collection with the backup read from r. It requires
// confirm, as any full replacement does.
func Restore(ctx context.Context, e *tasks.Engine, r io.Reader, confirm bool) (tasks.Snapshot, error) {
	if !confirm {
		return tasks.Snapshot{}, ErrConfirmationRequired
	}
	doc, err := ReadBackup(r)
	if err != nil {
		return tasks.Snapshot{}, err
	}
	return e.ReplaceAll(ctx, doc.Tasks)
}
