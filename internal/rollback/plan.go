// package rollback plans and executes risk-scored rollbacks of a single
// domain to an earlier migration, with pre-checks, a backup checkpoint,
// all-or-nothing reversal, and post-rollback validation.
package rollback

import (
	"fmt"
	"time"
)

// RiskLevel classifies a rollback's blast radius.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Plan describes one rollback: which migrations to undo and what it touches.
// Created on demand; the executor re-checks freshness before acting because
// the provider's applied list can move underneath a stale plan.
type Plan struct {
	Domain          string `json:"domain"`
	TargetMigration string `json:"targetMigration"`

	// MigrationsToRollback holds the applied migrations strictly after the
	// target, in their original applied order. They are undone in reverse.
	MigrationsToRollback []string `json:"migrationsToRollback"`

	AffectedTables   []string `json:"affectedTables,omitempty"`
	DependentDomains []string `json:"dependentDomains,omitempty"`

	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Risk              RiskLevel     `json:"risk"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// ConfigError rejects a rollback request before any mutation: unknown or
// disabled domain, unknown target, or a target never applied.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "rollback configuration: " + e.Reason
}

// PreconditionError rejects rollback execution before any mutation:
// connectivity, concurrent-access conflict, missing reversal capability, or a
// stale plan.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rollback precondition: %s: %v", e.Reason, e.Err)
	}
	return "rollback precondition: " + e.Reason
}

func (e *PreconditionError) Unwrap() error { return e.Err }
