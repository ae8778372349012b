// package provider defines the capability interface the orchestrator consumes
// to talk to a migration-capable storage backend, plus the Postgres and
// in-memory implementations. The orchestrator never manages connections or
// generates DDL itself; it only drives these capabilities.
package provider

import (
	"context"
	"errors"
)

// ErrUnknownMigration is returned when a named migration is not known to the
// provider for the given domain.
var ErrUnknownMigration = errors.New("unknown migration")

// Provider is what a migration technology can do, per domain.
type Provider interface {
	// ListAllMigrations returns every known migration for the domain in
	// application order.
	ListAllMigrations(ctx context.Context, domain string) ([]string, error)

	// ListAppliedMigrations returns the subset of migrations already applied,
	// in applied order.
	ListAppliedMigrations(ctx context.Context, domain string) ([]string, error)

	// ApplyPending applies every pending migration for the domain, strictly
	// in list order.
	ApplyPending(ctx context.Context, domain string) error

	// GenerateReversalScript produces the reversal DDL that undoes the
	// migrations strictly after toMigration up to and including fromMigration,
	// most recent first. An empty toMigration means "undo everything up to and
	// including fromMigration".
	GenerateReversalScript(ctx context.Context, domain, fromMigration, toMigration string) (string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// ReversalTx is an open all-or-nothing reversal transaction for one domain.
// Either every Revert call commits together or none of them take effect.
type ReversalTx interface {
	// Revert undoes a single migration inside the transaction.
	Revert(ctx context.Context, migration string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Reverser is the optional provider capability for transactional rollback.
// Providers that cannot offer transactional reversal simply do not implement
// it, and rollback execution is rejected during preconditions.
type Reverser interface {
	BeginReversal(ctx context.Context, domain string) (ReversalTx, error)
}
