package rollback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/backup"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/rollback"
)

type fakeValidator struct {
	err    error
	tables []string
}

func (f *fakeValidator) ValidateTables(ctx context.Context, tables []string) error {
	f.tables = tables
	return f.err
}

type rollbackFixture struct {
	prov  *provider.MemoryProvider
	sink  *audit.MemorySink
	guard *locks.Guard
	val   *fakeValidator
	exec  *rollback.Executor
	plan  *rollback.Plan
}

func newRollbackFixture(t *testing.T) *rollbackFixture {
	t.Helper()
	reg := mustRegistry(t, registry.Domain{
		Name: "news", Enabled: true, Tables: []string{"articles"},
	})
	prov := provider.NewMemoryProvider()
	prov.Register("news", "m1", "m2", "m3")
	prov.MarkApplied("news", "m1", "m2", "m3")

	plan, err := rollback.NewPlanner(reg, quietLogger()).CreateRollbackPlan(context.Background(), "news", "m1", prov)
	require.NoError(t, err)

	f := &rollbackFixture{
		prov:  prov,
		sink:  audit.NewMemorySink(),
		guard: locks.NewGuard(),
		val:   &fakeValidator{},
		plan:  plan,
	}
	f.exec = rollback.NewExecutor(rollback.ExecutorConfig{
		Environment: "test",
		AppliedBy:   "tester",
		Logger:      quietLogger(),
	}, f.sink, f.guard, backup.NewDirCheckpointer(t.TempDir()), f.val)
	return f
}

func appliedNow(t *testing.T, prov *provider.MemoryProvider, domain string) []string {
	t.Helper()
	applied, err := prov.ListAppliedMigrations(context.Background(), domain)
	require.NoError(t, err)
	return applied
}

func TestExecuteRollbackSuccess(t *testing.T) {
	f := newRollbackFixture(t)

	require.NoError(t, f.exec.ExecuteRollback(context.Background(), f.plan, f.prov))

	assert.Equal(t, []string{"m1"}, appliedNow(t, f.prov, "news"))
	assert.Equal(t, []string{"articles"}, f.val.tables)

	entries := f.sink.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.True(t, e.Success)
	assert.Equal(t, audit.RollbackIdentifier("news", "m1"), e.Migration)
	assert.Equal(t, audit.StateChecksum("news", []string{"m1", "m2", "m3"}), e.ChecksumBefore)
	assert.Equal(t, audit.StateChecksum("news", []string{"m1"}), e.ChecksumAfter)
	assert.Equal(t, "tester", e.AppliedBy)
}

func TestExecuteRollbackPreconditions(t *testing.T) {
	t.Run("provider unreachable", func(t *testing.T) {
		f := newRollbackFixture(t)
		f.prov.PingErr = errors.New("connection refused")

		err := f.exec.ExecuteRollback(context.Background(), f.plan, f.prov)
		var pre *rollback.PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Empty(t, f.sink.All())
		assert.Equal(t, []string{"m1", "m2", "m3"}, appliedNow(t, f.prov, "news"))
	})

	t.Run("domain busy", func(t *testing.T) {
		f := newRollbackFixture(t)
		require.NoError(t, f.guard.Acquire("news", "plan-execution"))
		defer f.guard.Release("news")

		err := f.exec.ExecuteRollback(context.Background(), f.plan, f.prov)
		var pre *rollback.PreconditionError
		require.ErrorAs(t, err, &pre)
		var held *locks.ErrHeld
		assert.ErrorAs(t, err, &held)
		assert.Empty(t, f.sink.All())
	})

	t.Run("stale plan", func(t *testing.T) {
		f := newRollbackFixture(t)
		f.prov.Register("news", "m1", "m2", "m3", "m4")
		f.prov.MarkApplied("news", "m4")

		err := f.exec.ExecuteRollback(context.Background(), f.plan, f.prov)
		var pre *rollback.PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Contains(t, pre.Reason, "stale")
		assert.Empty(t, f.sink.All())
		assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, appliedNow(t, f.prov, "news"))
	})
}

func TestExecuteRollbackNothingToDo(t *testing.T) {
	f := newRollbackFixture(t)
	f.plan.TargetMigration = "m3"
	f.plan.MigrationsToRollback = nil

	require.NoError(t, f.exec.ExecuteRollback(context.Background(), f.plan, f.prov))
	assert.Empty(t, f.sink.All())
	assert.Equal(t, []string{"m1", "m2", "m3"}, appliedNow(t, f.prov, "news"))
}

func TestExecuteRollbackRevertFailureLeavesStateUnchanged(t *testing.T) {
	f := newRollbackFixture(t)
	f.prov.RevertErrs["m2"] = errors.New("down script missing")

	err := f.exec.ExecuteRollback(context.Background(), f.plan, f.prov)
	require.Error(t, err)
	var pre *rollback.PreconditionError
	assert.False(t, errors.As(err, &pre), "a revert failure is not a precondition failure")

	// tx rolled back, applied list intact
	assert.Equal(t, []string{"m1", "m2", "m3"}, appliedNow(t, f.prov, "news"))

	entries := f.sink.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.False(t, e.Success)
	assert.Equal(t, e.ChecksumBefore, e.ChecksumAfter)
	assert.Contains(t, e.Error, "down script missing")
}

func TestExecuteRollbackValidationFailureRecordedAgainstAfterState(t *testing.T) {
	f := newRollbackFixture(t)
	f.val.err = errors.New("table articles missing column id")

	err := f.exec.ExecuteRollback(context.Background(), f.plan, f.prov)
	require.ErrorContains(t, err, "post-rollback validation")

	// reversal committed before validation ran
	assert.Equal(t, []string{"m1"}, appliedNow(t, f.prov, "news"))

	entries := f.sink.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.False(t, e.Success)
	assert.Equal(t, audit.StateChecksum("news", []string{"m1"}), e.ChecksumAfter)
	assert.NotEqual(t, e.ChecksumBefore, e.ChecksumAfter)
}
