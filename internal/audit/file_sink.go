package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileSink is a simple file-backed sink for dev/testing. Each entry is
// archived as one JSON file under <dir>/<domain>/.
type FileSink struct {
	dir string
}

// NewFileSink returns a new FileSink and ensures the archive directory exists.
func NewFileSink(dir string) *FileSink {
	_ = os.MkdirAll(dir, 0o755)
	return &FileSink{dir: dir}
}

func (f *FileSink) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	dir := filepath.Join(f.dir, e.Domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("audit archive dir: %w", err)
	}
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", e.AppliedAt.UTC().Format("20060102T150405.000000000Z"), e.ID)
	return os.WriteFile(filepath.Join(dir, name), b, 0o644)
}

// History reads back every archived entry for a domain, oldest first.
// The timestamp prefix on the file names gives the ordering.
func (f *FileSink) History(ctx context.Context, domain string) ([]Entry, error) {
	dir := filepath.Join(f.dir, domain)
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit archive: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, fi := range files {
		if !fi.IsDir() && filepath.Ext(fi.Name()) == ".json" {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("read audit entry %s: %w", n, err)
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("parse audit entry %s: %w", n, err)
		}
		out = append(out, e)
	}
	return out, nil
}
