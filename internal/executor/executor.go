// package executor walks a migration plan in dependency order, applying each
// domain's pending migrations through the provider with retry/backoff, and
// records an audit entry for every outcome. A domain failure halts the run;
// completed domains stay applied (forward-only, no automatic compensation).
package executor

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/planner"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
)

// Config tunes execution. Zero values fall back to defaults.
type Config struct {
	// MaxRetryAttempts is the number of retries after the first failed
	// attempt. Defaults to 3.
	MaxRetryAttempts int

	// DomainTimeout bounds a single domain execution; exceeding it counts as
	// a failure for retry purposes. Defaults to 15m.
	DomainTimeout time.Duration

	// RetryBackoffUnit scales the 2^attempt backoff. Defaults to 1s.
	RetryBackoffUnit time.Duration

	// Parallel enables group-parallel execution; otherwise domains run
	// sequentially in sorted order.
	Parallel bool

	// DryRun logs what would run without touching the provider or the audit trail.
	DryRun bool

	Environment string
	AppliedBy   string

	Logger *log.Logger
}

// Result reports how far a run got. Completed lists domains in completion
// order; on a halt, FailedDomain and Err identify the failure and Skipped
// lists the domains never attempted.
type Result struct {
	PlanID       string        `json:"planId"`
	Completed    []string      `json:"completed"`
	FailedDomain string        `json:"failedDomain,omitempty"`
	Skipped      []string      `json:"skipped,omitempty"`
	Err          error         `json:"-"`
	DryRun       bool          `json:"dryRun,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
}

// Executor runs migration plans.
type Executor struct {
	cfg    Config
	sink   audit.Sink
	guard  *locks.Guard
	logger *log.Logger
}

// New constructs an Executor. The guard enforces per-domain mutual exclusion
// against concurrent rollbacks; sink receives one entry per executed domain.
func New(cfg Config, sink audit.Sink, guard *locks.Guard) *Executor {
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.DomainTimeout <= 0 {
		cfg.DomainTimeout = 15 * time.Minute
	}
	if cfg.RetryBackoffUnit <= 0 {
		cfg.RetryBackoffUnit = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[executor] ", log.LstdFlags)
	}
	return &Executor{cfg: cfg, sink: sink, guard: guard, logger: logger}
}

// Execute walks the plan. The returned Result is non-nil even on error so the
// caller always learns which domains completed.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, prov provider.Provider) (*Result, error) {
	res := &Result{PlanID: plan.ID, StartedAt: time.Now().UTC(), DryRun: e.cfg.DryRun}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	var err error
	if e.cfg.Parallel {
		err = e.executeGroups(ctx, plan, prov, res)
	} else {
		err = e.executeSequential(ctx, plan, prov, res)
	}
	res.Err = err
	res.Skipped = skippedOf(plan, res)
	return res, err
}

func (e *Executor) executeSequential(ctx context.Context, plan *planner.Plan, prov provider.Provider, res *Result) error {
	completed := make(map[string]bool, len(plan.Sorted))
	inPlan := inPlanSet(plan)

	for _, dm := range plan.Sorted {
		// Cancellation is honored at domain boundaries only.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := assertDependencies(dm, inPlan, completed, nil); err != nil {
			return err
		}
		if err := e.runDomain(ctx, dm, prov); err != nil {
			res.FailedDomain = dm.Domain
			return err
		}
		completed[dm.Domain] = true
		res.Completed = append(res.Completed, dm.Domain)
	}
	return nil
}

func (e *Executor) executeGroups(ctx context.Context, plan *planner.Plan, prov provider.Provider, res *Result) error {
	var mu sync.Mutex
	completed := make(map[string]bool, len(plan.Sorted))
	inPlan := inPlanSet(plan)

	for gi, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		var firstErr error
		var failedDomain string

		// The zero errgroup deliberately carries no cancellation: once a
		// domain starts it runs to completion or failure, and siblings in
		// the same group finish their work even if one fails.
		var g errgroup.Group
		g.SetLimit(plan.MaxParallel)

		for _, dm := range group {
			dm := dm
			g.Go(func() error {
				if err := assertDependencies(dm, inPlan, completed, &mu); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr, failedDomain = err, dm.Domain
					}
					mu.Unlock()
					return nil
				}
				if err := e.runDomain(ctx, dm, prov); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr, failedDomain = err, dm.Domain
					}
					mu.Unlock()
					return nil
				}
				mu.Lock()
				completed[dm.Domain] = true
				res.Completed = append(res.Completed, dm.Domain)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if firstErr != nil {
			e.logger.Printf("group %d failed on %s, halting run", gi, failedDomain)
			res.FailedDomain = failedDomain
			return firstErr
		}
	}
	return nil
}

// runDomain applies one domain's pending migrations with retry/backoff and
// records the audit entry for the outcome.
func (e *Executor) runDomain(ctx context.Context, dm planner.DomainMigration, prov provider.Provider) error {
	if len(dm.Pending) == 0 {
		e.logger.Printf("%s: no pending migrations, marking completed", dm.Domain)
		return nil
	}
	if e.cfg.DryRun {
		e.logger.Printf("%s: dry run, would apply %s", dm.Domain, strings.Join(dm.Pending, ", "))
		return nil
	}

	if e.guard != nil {
		if err := e.guard.Acquire(dm.Domain, "plan-execution"); err != nil {
			return &ExecutionError{Domain: dm.Domain, Attempts: 0, Err: err}
		}
		defer e.guard.Release(dm.Domain)
	}

	before, err := e.stateChecksum(ctx, prov, dm.Domain)
	if err != nil {
		return &ExecutionError{Domain: dm.Domain, Attempts: 0, Err: err}
	}

	start := time.Now()
	attempts := 0
	var lastErr error
retries:
	for attempt := 0; attempt <= e.cfg.MaxRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)) * e.cfg.RetryBackoffUnit
			e.logger.Printf("%s: attempt %d/%d failed (%v), retrying in %s",
				dm.Domain, attempt, e.cfg.MaxRetryAttempts, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retries
			}
		}
		attempts++

		// The in-flight apply is shielded from caller cancellation: partial
		// DDL application is unsafe, so only the per-domain timeout can cut
		// it short, and that counts as an ordinary failure.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.DomainTimeout)
		lastErr = prov.ApplyPending(actx, dm.Domain)
		cancel()
		if lastErr == nil {
			break
		}
	}

	elapsed := time.Since(start)
	entry := &audit.Entry{
		Domain:         dm.Domain,
		Migration:      strings.Join(dm.Pending, ","),
		AppliedBy:      e.cfg.AppliedBy,
		Environment:    e.cfg.Environment,
		ChecksumBefore: before,
		Duration:       elapsed,
	}

	if lastErr != nil {
		entry.Success = false
		entry.Error = lastErr.Error()
		entry.ChecksumAfter = before
		e.record(ctx, entry)
		return &ExecutionError{Domain: dm.Domain, Attempts: attempts, Err: lastErr}
	}

	after, err := e.stateChecksum(ctx, prov, dm.Domain)
	if err != nil {
		// The apply itself succeeded; surface the checksum failure in the
		// entry rather than failing the domain.
		e.logger.Printf("%s: post-apply checksum failed: %v", dm.Domain, err)
		after = before
	}
	entry.Success = true
	entry.ChecksumAfter = after
	e.record(ctx, entry)
	e.logger.Printf("%s: applied %d migration(s) in %s", dm.Domain, len(dm.Pending), elapsed)
	return nil
}

// record appends the audit entry. A sink failure is compliance-relevant but
// never masks the execution outcome.
func (e *Executor) record(ctx context.Context, entry *audit.Entry) {
	if err := e.sink.Record(ctx, entry); err != nil {
		e.logger.Printf("COMPLIANCE: audit record for %s/%s failed: %v", entry.Domain, entry.Migration, err)
	}
}

func (e *Executor) stateChecksum(ctx context.Context, prov provider.Provider, domain string) (string, error) {
	applied, err := prov.ListAppliedMigrations(ctx, domain)
	if err != nil {
		return "", err
	}
	return audit.StateChecksum(domain, applied), nil
}

func assertDependencies(dm planner.DomainMigration, inPlan, completed map[string]bool, mu *sync.Mutex) error {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	for _, dep := range dm.DependsOn {
		if inPlan[dep] && !completed[dep] {
			return &DependencyInvariantError{Domain: dm.Domain, Missing: dep}
		}
	}
	return nil
}

func inPlanSet(plan *planner.Plan) map[string]bool {
	set := make(map[string]bool, len(plan.Sorted))
	for _, dm := range plan.Sorted {
		set[dm.Domain] = true
	}
	return set
}

func skippedOf(plan *planner.Plan, res *Result) []string {
	done := make(map[string]bool, len(res.Completed))
	for _, d := range res.Completed {
		done[d] = true
	}
	var skipped []string
	for _, dm := range plan.Sorted {
		if !done[dm.Domain] && dm.Domain != res.FailedDomain {
			skipped = append(skipped, dm.Domain)
		}
	}
	if res.FailedDomain == "" && len(skipped) == 0 {
		return nil
	}
	return skipped
}
