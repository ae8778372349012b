package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryProvider is an in-memory Provider for tests and dry runs. Migrations
// are registered per domain in application order; failure injection lets tests
// exercise the retry and halt paths.
type MemoryProvider struct {
	mu      sync.Mutex
	all     map[string][]string
	applied map[string][]string

	// ApplyErrs injects failures: the next ApplyPending for the domain pops
	// one error off the slice. An empty slice means success.
	ApplyErrs map[string][]error

	// RevertErrs injects failures per migration name during reversal.
	RevertErrs map[string]error

	// PingErr makes Ping fail when set.
	PingErr error

	applyCalls map[string]int
	applyOrder []string
}

// NewMemoryProvider builds an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		all:        map[string][]string{},
		applied:    map[string][]string{},
		ApplyErrs:  map[string][]error{},
		RevertErrs: map[string]error{},
		applyCalls: map[string]int{},
	}
}

// Register declares a domain's full migration list in application order.
func (m *MemoryProvider) Register(domain string, migrations ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all[domain] = append([]string(nil), migrations...)
}

// MarkApplied records migrations as already applied, in the given order.
func (m *MemoryProvider) MarkApplied(domain string, migrations ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[domain] = append(m.applied[domain], migrations...)
}

func (m *MemoryProvider) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

func (m *MemoryProvider) ListAllMigrations(ctx context.Context, domain string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.all[domain]...), nil
}

func (m *MemoryProvider) ListAppliedMigrations(ctx context.Context, domain string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applied[domain]...), nil
}

func (m *MemoryProvider) ApplyPending(ctx context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls[domain]++
	if errs := m.ApplyErrs[domain]; len(errs) > 0 {
		err := errs[0]
		m.ApplyErrs[domain] = errs[1:]
		if err != nil {
			return err
		}
	}
	appliedSet := map[string]bool{}
	for _, a := range m.applied[domain] {
		appliedSet[a] = true
	}
	for _, name := range m.all[domain] {
		if !appliedSet[name] {
			m.applied[domain] = append(m.applied[domain], name)
		}
	}
	m.applyOrder = append(m.applyOrder, domain)
	return nil
}

func (m *MemoryProvider) GenerateReversalScript(ctx context.Context, domain, fromMigration, toMigration string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.all[domain]
	fromIdx := indexOf(all, fromMigration)
	if fromIdx < 0 {
		return "", fmt.Errorf("%s/%s: %w", domain, fromMigration, ErrUnknownMigration)
	}
	toIdx := -1
	if toMigration != "" {
		toIdx = indexOf(all, toMigration)
		if toIdx < 0 {
			return "", fmt.Errorf("%s/%s: %w", domain, toMigration, ErrUnknownMigration)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "-- reversal script for domain %s\n", domain)
	for i := fromIdx; i > toIdx; i-- {
		fmt.Fprintf(&b, "-- revert %s\n", all[i])
	}
	return b.String(), nil
}

// BeginReversal implements Reverser. The staged reversals only mutate the
// applied list on Commit, mirroring transactional all-or-nothing semantics.
func (m *MemoryProvider) BeginReversal(ctx context.Context, domain string) (ReversalTx, error) {
	return &memoryReversalTx{p: m, domain: domain}, nil
}

// ApplyCalls reports how many times ApplyPending ran for a domain.
func (m *MemoryProvider) ApplyCalls(domain string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyCalls[domain]
}

// ApplyOrder reports the order in which domains were successfully applied.
func (m *MemoryProvider) ApplyOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applyOrder...)
}

type memoryReversalTx struct {
	p      *MemoryProvider
	domain string
	staged []string
	done   bool
}

func (t *memoryReversalTx) Revert(ctx context.Context, migration string) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if err := t.p.RevertErrs[migration]; err != nil {
		return err
	}
	t.staged = append(t.staged, migration)
	return nil
}

func (t *memoryReversalTx) Commit(ctx context.Context) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.done {
		return fmt.Errorf("reversal tx already finished")
	}
	t.done = true
	for _, name := range t.staged {
		applied := t.p.applied[t.domain]
		if i := indexOf(applied, name); i >= 0 {
			t.p.applied[t.domain] = append(applied[:i], applied[i+1:]...)
		}
	}
	return nil
}

func (t *memoryReversalTx) Rollback(ctx context.Context) error {
	t.done = true
	t.staged = nil
	return nil
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}
