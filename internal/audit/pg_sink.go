package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PGSink persists audit entries into Postgres.
//
// Expected table:
//
//	CREATE TABLE migration_audit (
//	    id              UUID PRIMARY KEY,
//	    domain          TEXT NOT NULL,
//	    migration       TEXT NOT NULL,
//	    applied_at      TIMESTAMPTZ NOT NULL,
//	    applied_by      TEXT NOT NULL,
//	    environment     TEXT NOT NULL,
//	    checksum_before TEXT NOT NULL,
//	    checksum_after  TEXT NOT NULL,
//	    duration_ms     BIGINT NOT NULL,
//	    success         BOOLEAN NOT NULL,
//	    error           TEXT
//	);
type PGSink struct {
	db *sql.DB
}

// NewPGSink constructs a Postgres-backed sink.
func NewPGSink(db *sql.DB) *PGSink {
	return &PGSink{db: db}
}

// Ping verifies connectivity to Postgres.
func (p *PGSink) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PGSink) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	q := `
		INSERT INTO migration_audit
		  (id, domain, migration, applied_at, applied_by, environment,
		   checksum_before, checksum_after, duration_ms, success, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := p.db.ExecContext(ctx, q,
		e.ID,
		e.Domain,
		e.Migration,
		e.AppliedAt,
		e.AppliedBy,
		e.Environment,
		e.ChecksumBefore,
		e.ChecksumAfter,
		e.Duration.Milliseconds(),
		e.Success,
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History fetches every entry for a domain ordered oldest first.
func (p *PGSink) History(ctx context.Context, domain string) ([]Entry, error) {
	q := `
		SELECT id, domain, migration, applied_at, applied_by, environment,
		       checksum_before, checksum_after, duration_ms, success, error
		FROM migration_audit
		WHERE domain = $1
		ORDER BY applied_at ASC
	`
	rows, err := p.db.QueryContext(ctx, q, domain)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var errText sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Domain, &e.Migration, &e.AppliedAt, &e.AppliedBy, &e.Environment,
			&e.ChecksumBefore, &e.ChecksumAfter, &durationMS, &e.Success, &errText,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if errText.Valid {
			e.Error = errText.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit history: %w", err)
	}
	return out, nil
}
