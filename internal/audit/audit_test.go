package audit_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
)

func TestStateChecksum(t *testing.T) {
	a := audit.StateChecksum("news", []string{"m1", "m2"})
	b := audit.StateChecksum("news", []string{"m1", "m2"})
	assert.Equal(t, a, b, "checksum is deterministic")

	assert.NotEqual(t, a, audit.StateChecksum("news", []string{"m2", "m1"}),
		"order changes the checksum")
	assert.NotEqual(t, a, audit.StateChecksum("contacts", []string{"m1", "m2"}),
		"domain is part of the fingerprint")
	assert.NotEqual(t, a, audit.StateChecksum("news", []string{"m1"}))
}

func TestRollbackIdentifier(t *testing.T) {
	assert.Equal(t, "rollback:news:m2", audit.RollbackIdentifier("news", "m2"))
}

func TestMemorySinkStampsAndFilters(t *testing.T) {
	sink := audit.NewMemorySink()
	e := &audit.Entry{Domain: "news", Migration: "m1", Success: true}
	require.NoError(t, sink.Record(context.Background(), e))
	require.NoError(t, sink.Record(context.Background(), &audit.Entry{Domain: "contacts", Migration: "m1"}))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.AppliedAt.IsZero())

	got, err := sink.History(context.Background(), "news")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "news", got[0].Domain)

	all, err := sink.History(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileSinkRoundtrip(t *testing.T) {
	sink := audit.NewFileSink(t.TempDir())
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	// recorded newest-first to prove History re-sorts by timestamp
	require.NoError(t, sink.Record(context.Background(), &audit.Entry{
		Domain: "news", Migration: "m2", AppliedAt: base.Add(time.Hour), Success: true,
	}))
	require.NoError(t, sink.Record(context.Background(), &audit.Entry{
		Domain: "news", Migration: "m1", AppliedAt: base, Success: false, Error: "syntax error",
	}))

	got, err := sink.History(context.Background(), "news")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Migration)
	assert.Equal(t, "syntax error", got[0].Error)
	assert.Equal(t, "m2", got[1].Migration)
	assert.True(t, got[1].Success)

	empty, err := sink.History(context.Background(), "contacts")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type fakeProducer struct {
	mu     sync.Mutex
	keys   []string
	err    error
	closed bool
}

func newFakeProducer(err error) *fakeProducer {
	return &fakeProducer{err: err}
}

func (f *fakeProducer) ProduceJSON(ctx context.Context, key []byte, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, string(key))
	return f.err
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestStreamingSinkFansOut(t *testing.T) {
	primary := audit.NewMemorySink()
	prod := newFakeProducer(nil)
	sink := audit.NewStreamingSink(primary, prod, log.New(io.Discard, "", 0))

	require.NoError(t, sink.Record(context.Background(), &audit.Entry{Domain: "news", Migration: "m1"}))
	require.NoError(t, sink.Close())

	assert.Len(t, primary.All(), 1)
	assert.Equal(t, []string{"news"}, prod.keys)
	assert.True(t, prod.closed)
}

func TestStreamingSinkProduceFailureNeverFailsRecord(t *testing.T) {
	primary := audit.NewMemorySink()
	prod := newFakeProducer(errors.New("broker unavailable"))
	sink := audit.NewStreamingSink(primary, prod, log.New(io.Discard, "", 0))

	require.NoError(t, sink.Record(context.Background(), &audit.Entry{Domain: "news", Migration: "m1"}))
	require.NoError(t, sink.Close())
	assert.Len(t, primary.All(), 1, "primary write still durable")
}
