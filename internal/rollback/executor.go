package rollback

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/backup"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
)

// Validator checks basic structural sanity of tables after a committed rollback.
type Validator interface {
	ValidateTables(ctx context.Context, tables []string) error
}

// ExecutorConfig carries the audit stamp for rollback entries.
type ExecutorConfig struct {
	Environment string
	AppliedBy   string
	Logger      *log.Logger
}

// Executor runs rollback plans.
type Executor struct {
	cfg          ExecutorConfig
	sink         audit.Sink
	guard        *locks.Guard
	checkpointer backup.Checkpointer
	validator    Validator
	logger       *log.Logger
}

// NewExecutor wires the rollback executor. The guard is shared with plan
// execution so the two can never touch the same domain concurrently.
func NewExecutor(cfg ExecutorConfig, sink audit.Sink, guard *locks.Guard, cp backup.Checkpointer, v Validator) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[rollback] ", log.LstdFlags)
	}
	return &Executor{cfg: cfg, sink: sink, guard: guard, checkpointer: cp, validator: v, logger: logger}
}

// ExecuteRollback runs the plan: preconditions, backup checkpoint,
// all-or-nothing reversal, post-rollback validation, audit. Any failure
// before commit leaves the schema unchanged and is recorded with identical
// before/after checksums.
func (e *Executor) ExecuteRollback(ctx context.Context, plan *Plan, prov provider.Provider) error {
	// Preconditions, all before any mutation.
	if err := prov.Ping(ctx); err != nil {
		return &PreconditionError{Reason: "provider unreachable", Err: err}
	}
	rev, ok := prov.(provider.Reverser)
	if !ok {
		return &PreconditionError{Reason: "provider does not support transactional reversal"}
	}
	if err := e.guard.Acquire(plan.Domain, "rollback"); err != nil {
		return &PreconditionError{Reason: "domain busy", Err: err}
	}
	defer e.guard.Release(plan.Domain)

	applied, err := prov.ListAppliedMigrations(ctx, plan.Domain)
	if err != nil {
		return &PreconditionError{Reason: "list applied migrations", Err: err}
	}
	if err := checkFreshness(plan, applied); err != nil {
		return err
	}
	if len(plan.MigrationsToRollback) == 0 {
		e.logger.Printf("%s: already at %s, nothing to roll back", plan.Domain, plan.TargetMigration)
		return nil
	}
	for _, dep := range plan.DependentDomains {
		e.logger.Printf("WARNING: domain %s depends on %s and may assume its current schema", dep, plan.Domain)
	}

	before := audit.StateChecksum(plan.Domain, applied)
	start := time.Now()

	fail := func(stage string, cause error) error {
		wrapped := fmt.Errorf("%s: %w", stage, cause)
		e.record(ctx, &audit.Entry{
			Domain:         plan.Domain,
			Migration:      audit.RollbackIdentifier(plan.Domain, plan.TargetMigration),
			AppliedBy:      e.cfg.AppliedBy,
			Environment:    e.cfg.Environment,
			ChecksumBefore: before,
			ChecksumAfter:  before, // nothing changed
			Duration:       time.Since(start),
			Success:        false,
			Error:          wrapped.Error(),
		})
		return wrapped
	}

	// Backup checkpoint before mutating anything.
	script, err := prov.GenerateReversalScript(ctx, plan.Domain, applied[len(applied)-1], plan.TargetMigration)
	if err != nil {
		return fail("generate reversal script", err)
	}
	cp := backup.NewCheckpoint(plan.Domain, plan.TargetMigration, applied, script)
	token, err := e.checkpointer.Store(ctx, cp)
	if err != nil {
		return fail("store backup checkpoint", err)
	}
	e.logger.Printf("%s: backup checkpoint %s", plan.Domain, token)

	// All-or-nothing reversal, most recent first.
	tx, err := rev.BeginReversal(ctx, plan.Domain)
	if err != nil {
		return fail("begin reversal", err)
	}
	for i := len(plan.MigrationsToRollback) - 1; i >= 0; i-- {
		m := plan.MigrationsToRollback[i]
		if err := tx.Revert(ctx, m); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.logger.Printf("%s: reversal tx rollback failed: %v", plan.Domain, rbErr)
			}
			return fail(fmt.Sprintf("revert %s", m), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fail("commit reversal", err)
	}

	nowApplied, err := prov.ListAppliedMigrations(ctx, plan.Domain)
	if err != nil {
		e.logger.Printf("%s: post-rollback applied lookup failed: %v", plan.Domain, err)
		nowApplied = applied[:indexOf(applied, plan.TargetMigration)+1]
	}
	after := audit.StateChecksum(plan.Domain, nowApplied)
	elapsed := time.Since(start)

	entry := &audit.Entry{
		Domain:         plan.Domain,
		Migration:      audit.RollbackIdentifier(plan.Domain, plan.TargetMigration),
		AppliedBy:      e.cfg.AppliedBy,
		Environment:    e.cfg.Environment,
		ChecksumBefore: before,
		ChecksumAfter:  after,
		Duration:       elapsed,
	}

	if e.validator == nil {
		e.logger.Printf("%s: no validator configured, skipping post-rollback validation", plan.Domain)
		entry.Success = true
		e.record(ctx, entry)
		return nil
	}

	// Post-rollback integrity validation. The reversal is already committed,
	// so a validation failure is recorded against the real after-state.
	if err := e.validator.ValidateTables(ctx, plan.AffectedTables); err != nil {
		entry.Success = false
		entry.Error = fmt.Sprintf("post-rollback validation: %v", err)
		e.record(ctx, entry)
		return fmt.Errorf("post-rollback validation: %w", err)
	}

	entry.Success = true
	e.record(ctx, entry)
	e.logger.Printf("%s: rolled back %d migration(s) to %s in %s",
		plan.Domain, len(plan.MigrationsToRollback), plan.TargetMigration, elapsed)
	return nil
}

// checkFreshness rejects a plan whose rollback set no longer matches the
// provider's applied list.
func checkFreshness(plan *Plan, applied []string) error {
	targetIdx := indexOf(applied, plan.TargetMigration)
	if targetIdx < 0 {
		return &PreconditionError{Reason: fmt.Sprintf("target %q no longer in applied list", plan.TargetMigration)}
	}
	current := applied[targetIdx+1:]
	if strings.Join(current, "\n") != strings.Join(plan.MigrationsToRollback, "\n") {
		return &PreconditionError{Reason: "plan is stale: applied migrations changed since planning"}
	}
	return nil
}

// record appends the audit entry; a sink failure never masks the rollback outcome.
func (e *Executor) record(ctx context.Context, entry *audit.Entry) {
	if err := e.sink.Record(ctx, entry); err != nil {
		e.logger.Printf("COMPLIANCE: audit record for %s failed: %v", entry.Migration, err)
	}
}
