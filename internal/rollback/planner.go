package rollback

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

// Duration model: a fixed base plus a per-migration and per-table cost.
const (
	baseDuration     = time.Minute
	perMigrationCost = 30 * time.Second
	perTableCost     = 15 * time.Second
)

// Planner computes rollback plans from registry and provider state.
type Planner struct {
	reg    *registry.Registry
	logger *log.Logger
}

func NewPlanner(reg *registry.Registry, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(os.Stdout, "[rollback] ", log.LstdFlags)
	}
	return &Planner{reg: reg, logger: logger}
}

// CreateRollbackPlan validates the request and computes the migrations to
// undo, the dependent domains, and the risk level. It fails closed: a
// *ConfigError means nothing was computed and nothing may be executed.
func (p *Planner) CreateRollbackPlan(ctx context.Context, domain, target string, prov provider.Provider) (*Plan, error) {
	d, err := p.reg.Get(domain)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown domain %q", domain)}
	}
	if !d.Enabled {
		return nil, &ConfigError{Reason: fmt.Sprintf("domain %q is disabled", domain)}
	}

	all, err := prov.ListAllMigrations(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list migrations for %s: %w", domain, err)
	}
	if !contains(all, target) {
		return nil, &ConfigError{Reason: fmt.Sprintf("migration %q is not known to domain %q", target, domain)}
	}

	applied, err := prov.ListAppliedMigrations(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list applied for %s: %w", domain, err)
	}
	targetIdx := indexOf(applied, target)
	if targetIdx < 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("migration %q was never applied to domain %q", target, domain)}
	}

	toRollback := append([]string(nil), applied[targetIdx+1:]...)
	dependents := p.reg.Dependents(domain)

	plan := &Plan{
		Domain:               domain,
		TargetMigration:      target,
		MigrationsToRollback: toRollback,
		AffectedTables:       append([]string(nil), d.Tables...),
		DependentDomains:     dependents,
		EstimatedDuration: baseDuration +
			time.Duration(len(toRollback))*perMigrationCost +
			time.Duration(len(d.Tables))*perTableCost,
		Risk:      riskOf(d, toRollback, dependents),
		CreatedAt: time.Now().UTC(),
	}
	p.logger.Printf("plan for %s -> %s: %d migration(s), risk %s", domain, target, len(toRollback), plan.Risk)
	return plan, nil
}

// riskOf classifies blast radius. Any dependent domain pushes the level to at
// least High (Critical when the domain is core); otherwise depth and the core
// flag decide.
func riskOf(d registry.Domain, toRollback, dependents []string) RiskLevel {
	switch {
	case len(dependents) > 0 && d.Core:
		return RiskCritical
	case len(dependents) > 0:
		return RiskHigh
	case len(toRollback) > 3 || d.Core:
		return RiskMedium
	default:
		return RiskLow
	}
}

func contains(list []string, v string) bool {
	return indexOf(list, v) >= 0
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}
