package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PGProvider is the Postgres implementation of Provider backed by two
// bookkeeping tables:
//
//	CREATE TABLE migration_scripts (
//	    domain   TEXT NOT NULL,
//	    name     TEXT NOT NULL,
//	    ordinal  INT  NOT NULL,
//	    up_sql   TEXT NOT NULL,
//	    down_sql TEXT NOT NULL,
//	    PRIMARY KEY (domain, name)
//	);
//
//	CREATE TABLE schema_migrations (
//	    domain     TEXT NOT NULL,
//	    name       TEXT NOT NULL,
//	    ordinal    INT  NOT NULL,
//	    applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (domain, name)
//	);
//
// migration_scripts is the registered catalog (what exists); schema_migrations
// is what has been applied. Ordinal defines application order within a domain.
type PGProvider struct {
	db *sql.DB
}

// NewPGProvider constructs a Postgres-backed provider.
func NewPGProvider(db *sql.DB) *PGProvider {
	return &PGProvider{db: db}
}

func (p *PGProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PGProvider) ListAllMigrations(ctx context.Context, domain string) ([]string, error) {
	q := `SELECT name FROM migration_scripts WHERE domain = $1 ORDER BY ordinal ASC`
	return p.listNames(ctx, q, domain)
}

func (p *PGProvider) ListAppliedMigrations(ctx context.Context, domain string) ([]string, error) {
	q := `SELECT name FROM schema_migrations WHERE domain = $1 ORDER BY ordinal ASC`
	return p.listNames(ctx, q, domain)
}

func (p *PGProvider) listNames(ctx context.Context, q, domain string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, q, domain)
	if err != nil {
		return nil, fmt.Errorf("list migrations for %s: %w", domain, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return out, nil
}

// ApplyPending applies every registered-but-unapplied migration for the domain
// inside one transaction, strictly in ordinal order.
func (p *PGProvider) ApplyPending(ctx context.Context, domain string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	q := `
		SELECT s.name, s.ordinal, s.up_sql
		FROM migration_scripts s
		LEFT JOIN schema_migrations m ON m.domain = s.domain AND m.name = s.name
		WHERE s.domain = $1 AND m.name IS NULL
		ORDER BY s.ordinal ASC
	`
	rows, err := tx.QueryContext(ctx, q, domain)
	if err != nil {
		return fmt.Errorf("list pending for %s: %w", domain, err)
	}
	type pending struct {
		name    string
		ordinal int
		upSQL   string
	}
	var todo []pending
	for rows.Next() {
		var pd pending
		if err := rows.Scan(&pd.name, &pd.ordinal, &pd.upSQL); err != nil {
			rows.Close()
			return fmt.Errorf("scan pending migration: %w", err)
		}
		todo = append(todo, pd)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate pending migrations: %w", err)
	}
	rows.Close()

	for _, pd := range todo {
		if _, err := tx.ExecContext(ctx, pd.upSQL); err != nil {
			return fmt.Errorf("apply %s/%s: %w", domain, pd.name, err)
		}
		ins := `INSERT INTO schema_migrations (domain, name, ordinal, applied_at) VALUES ($1, $2, $3, now())`
		if _, err := tx.ExecContext(ctx, ins, domain, pd.name, pd.ordinal); err != nil {
			return fmt.Errorf("record %s/%s: %w", domain, pd.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

// GenerateReversalScript concatenates the down_sql of the migrations strictly
// after toMigration up to and including fromMigration, most recent first.
func (p *PGProvider) GenerateReversalScript(ctx context.Context, domain, fromMigration, toMigration string) (string, error) {
	fromOrd, err := p.ordinal(ctx, domain, fromMigration)
	if err != nil {
		return "", err
	}
	toOrd := -1
	if toMigration != "" {
		toOrd, err = p.ordinal(ctx, domain, toMigration)
		if err != nil {
			return "", err
		}
	}

	q := `
		SELECT name, down_sql
		FROM migration_scripts
		WHERE domain = $1 AND ordinal > $2 AND ordinal <= $3
		ORDER BY ordinal DESC
	`
	rows, err := p.db.QueryContext(ctx, q, domain, toOrd, fromOrd)
	if err != nil {
		return "", fmt.Errorf("list reversal scripts for %s: %w", domain, err)
	}
	defer rows.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "-- reversal script for domain %s (%s -> %s)\n", domain, fromMigration, displayTarget(toMigration))
	for rows.Next() {
		var name, downSQL string
		if err := rows.Scan(&name, &downSQL); err != nil {
			return "", fmt.Errorf("scan reversal script: %w", err)
		}
		fmt.Fprintf(&b, "\n-- revert %s\n%s\n", name, strings.TrimSpace(downSQL))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate reversal scripts: %w", err)
	}
	return b.String(), nil
}

func displayTarget(to string) string {
	if to == "" {
		return "<initial>"
	}
	return to
}

func (p *PGProvider) ordinal(ctx context.Context, domain, name string) (int, error) {
	var ord int
	q := `SELECT ordinal FROM migration_scripts WHERE domain = $1 AND name = $2`
	if err := p.db.QueryRowContext(ctx, q, domain, name).Scan(&ord); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%s/%s: %w", domain, name, ErrUnknownMigration)
		}
		return 0, fmt.Errorf("lookup ordinal %s/%s: %w", domain, name, err)
	}
	return ord, nil
}

// BeginReversal opens an all-or-nothing reversal transaction for one domain.
func (p *PGProvider) BeginReversal(ctx context.Context, domain string) (ReversalTx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reversal tx: %w", err)
	}
	return &pgReversalTx{tx: tx, domain: domain}, nil
}

type pgReversalTx struct {
	tx     *sql.Tx
	domain string
}

// Revert executes one migration's down_sql and removes its bookkeeping row.
func (r *pgReversalTx) Revert(ctx context.Context, migration string) error {
	var downSQL string
	q := `SELECT down_sql FROM migration_scripts WHERE domain = $1 AND name = $2`
	if err := r.tx.QueryRowContext(ctx, q, r.domain, migration).Scan(&downSQL); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s/%s: %w", r.domain, migration, ErrUnknownMigration)
		}
		return fmt.Errorf("lookup reversal %s/%s: %w", r.domain, migration, err)
	}
	if _, err := r.tx.ExecContext(ctx, downSQL); err != nil {
		return fmt.Errorf("revert %s/%s: %w", r.domain, migration, err)
	}
	del := `DELETE FROM schema_migrations WHERE domain = $1 AND name = $2`
	if _, err := r.tx.ExecContext(ctx, del, r.domain, migration); err != nil {
		return fmt.Errorf("unrecord %s/%s: %w", r.domain, migration, err)
	}
	return nil
}

func (r *pgReversalTx) Commit(ctx context.Context) error {
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("commit reversal tx: %w", err)
	}
	return nil
}

func (r *pgReversalTx) Rollback(ctx context.Context) error {
	return r.tx.Rollback()
}
