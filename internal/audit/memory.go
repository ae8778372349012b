package audit

import (
	"context"
	"sync"
	"time"
)

// MemorySink keeps entries in memory. Used by tests and dry runs.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MemorySink) History(ctx context.Context, domain string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if domain == "" || e.Domain == domain {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a copy of every recorded entry in append order.
func (m *MemorySink) All() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
