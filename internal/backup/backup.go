// package backup writes pre-rollback checkpoints to durable storage and hands
// back an opaque token (the object key or file path) for the audit trail.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is the artifact captured before a rollback mutates anything:
// enough state to reconstruct what was about to change and how to redo it.
type Checkpoint struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	TargetMigration string    `json:"targetMigration"`
	Applied         []string  `json:"applied"`
	ReversalScript  string    `json:"reversalScript"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Checkpointer persists checkpoints. Implementations return an opaque token
// locating the stored artifact.
type Checkpointer interface {
	Store(ctx context.Context, cp *Checkpoint) (token string, err error)
}

// NewCheckpoint stamps identity and time onto a checkpoint.
func NewCheckpoint(domain, target string, applied []string, script string) *Checkpoint {
	return &Checkpoint{
		ID:              uuid.New().String(),
		Domain:          domain,
		TargetMigration: target,
		Applied:         append([]string(nil), applied...),
		ReversalScript:  script,
		CreatedAt:       time.Now().UTC(),
	}
}

// DirCheckpointer writes checkpoints as JSON files under a local directory.
// Used for dev and tests.
type DirCheckpointer struct {
	dir string
}

func NewDirCheckpointer(dir string) *DirCheckpointer {
	_ = os.MkdirAll(dir, 0o755)
	return &DirCheckpointer{dir: dir}
}

func (d *DirCheckpointer) Store(ctx context.Context, cp *Checkpoint) (string, error) {
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}
	dir := filepath.Join(d.dir, cp.Domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("checkpoint_%s.json", cp.ID))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return path, nil
}
