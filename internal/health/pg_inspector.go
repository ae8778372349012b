package health

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

// PGInspector reads actual schema structure from Postgres system catalogs.
// It also serves as the post-rollback table validator.
type PGInspector struct {
	db *sql.DB
}

func NewPGInspector(db *sql.DB) *PGInspector {
	return &PGInspector{db: db}
}

func (p *PGInspector) DescribeTable(ctx context.Context, table string) (TableSchema, error) {
	q := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := p.db.QueryContext(ctx, q, table)
	if err != nil {
		return TableSchema{}, fmt.Errorf("describe table %s: %w", table, err)
	}
	defer rows.Close()
	ts := TableSchema{Table: table}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return TableSchema{}, fmt.Errorf("scan column: %w", err)
		}
		ts.Columns = append(ts.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return TableSchema{}, fmt.Errorf("iterate columns: %w", err)
	}
	return ts, nil
}

func (p *PGInspector) TableExists(ctx context.Context, table string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	if err := p.db.QueryRowContext(ctx, q, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	return exists, nil
}

// OrphanCount counts child rows whose reference points at no parent row.
// Identifiers come from operator-controlled registry config, quoted anyway.
func (p *PGInspector) OrphanCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	q := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s c
		LEFT JOIN %s r ON c.%s = r.%s
		WHERE c.%s IS NOT NULL AND r.%s IS NULL
	`,
		pq.QuoteIdentifier(rule.Table),
		pq.QuoteIdentifier(rule.RefTable),
		pq.QuoteIdentifier(rule.Column),
		pq.QuoteIdentifier(rule.RefColumn),
		pq.QuoteIdentifier(rule.Column),
		pq.QuoteIdentifier(rule.RefColumn),
	)
	var n int
	if err := p.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("orphan count %s.%s: %w", rule.Table, rule.Column, err)
	}
	return n, nil
}

func (p *PGInspector) DuplicateCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	q := fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1
		) dup
	`,
		pq.QuoteIdentifier(rule.Column),
		pq.QuoteIdentifier(rule.Table),
		pq.QuoteIdentifier(rule.Column),
	)
	var n int
	if err := p.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("duplicate count %s.%s: %w", rule.Table, rule.Column, err)
	}
	return n, nil
}

func (p *PGInspector) HasIndex(ctx context.Context, table, column string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public' AND tablename = $1 AND indexdef LIKE '%' || $2 || '%'
		)
	`
	var exists bool
	if err := p.db.QueryRowContext(ctx, q, table, column).Scan(&exists); err != nil {
		return false, fmt.Errorf("index check %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// ValidateTables checks existence and basic structural sanity of tables.
// Satisfies the rollback executor's post-rollback validation hook.
func (p *PGInspector) ValidateTables(ctx context.Context, tables []string) error {
	for _, t := range tables {
		exists, err := p.TableExists(ctx, t)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("table %s does not exist", t)
		}
		ts, err := p.DescribeTable(ctx, t)
		if err != nil {
			return err
		}
		if len(ts.Columns) == 0 {
			return fmt.Errorf("table %s has no columns", t)
		}
	}
	return nil
}
