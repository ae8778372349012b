// package audit contains the append-only audit trail models and sinks used by
// the migration orchestrator. Entries are never mutated or deleted once recorded.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is the canonical record of one migration or rollback attempt.
type Entry struct {
	ID     string `json:"id,omitempty"`
	Domain string `json:"domain"`

	// Migration is the migration name, or a synthetic rollback identifier
	// of the form "rollback:<domain>:<target>".
	Migration string `json:"migration"`

	AppliedAt   time.Time `json:"appliedAt"`
	AppliedBy   string    `json:"appliedBy"`
	Environment string    `json:"environment"`

	ChecksumBefore string `json:"checksumBefore"`
	ChecksumAfter  string `json:"checksumAfter"`

	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// Sink durably records audit entries, append-only.
type Sink interface {
	Record(ctx context.Context, e *Entry) error
}

// HistorySource exposes the read side of an audit trail for metrics.
// Entries are returned oldest first.
type HistorySource interface {
	History(ctx context.Context, domain string) ([]Entry, error)
}

// NewID returns a freshly-generated UUID string for an audit entry.
func NewID() string {
	return uuid.New().String()
}

// HashHex returns the hex-encoded SHA-256 of the input bytes.
func HashHex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// StateChecksum fingerprints a domain's schema state from its applied
// migration list. The list order matters: the same migrations applied in a
// different order produce a different checksum.
func StateChecksum(domain string, applied []string) string {
	return HashHex([]byte(domain + "\n" + strings.Join(applied, "\n")))
}

// RollbackIdentifier builds the synthetic migration name recorded for a rollback.
func RollbackIdentifier(domain, target string) string {
	return "rollback:" + domain + ":" + target
}
