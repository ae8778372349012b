// package config provides the environment-backed configuration loader used by
// the migrator binary.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime config values the orchestrator consumes.
type Config struct {
	DatabaseURL string // DATABASE_URL
	Environment string // MIGRATOR_ENV (default development)
	DomainsFile string // MIGRATOR_DOMAINS_FILE (default domains.yaml)

	MaxRetryAttempts   int           // MIGRATOR_MAX_RETRY_ATTEMPTS (default 3)
	MaxParallelDomains int           // MIGRATOR_MAX_PARALLEL_DOMAINS (default 4)
	DomainTimeout      time.Duration // MIGRATOR_DOMAIN_TIMEOUT_MINUTES (default 15)
	ParallelExecution  bool          // MIGRATOR_PARALLEL_EXECUTION (default false)
	EnabledDomains     []string      // MIGRATOR_ENABLED_DOMAINS (comma-separated; empty = use registry flags)

	AppliedBy string // MIGRATOR_APPLIED_BY (default migrator)

	AuditBackend string // MIGRATOR_AUDIT_BACKEND: postgres|file|memory (default postgres)
	AuditDir     string // MIGRATOR_AUDIT_DIR (default ./audit)

	KafkaBrokers []string // MIGRATOR_KAFKA_BROKERS (comma-separated; empty disables streaming)
	KafkaTopic   string   // MIGRATOR_KAFKA_TOPIC (default migration-audit)

	BackupBucket string // MIGRATOR_BACKUP_BUCKET (empty = local dir checkpoints)
	BackupPrefix string // MIGRATOR_BACKUP_PREFIX
	BackupDir    string // MIGRATOR_BACKUP_DIR (default ./backups)

	BaselineFile string // MIGRATOR_BASELINE_FILE (optional drift baselines)

	ListenAddr string // MIGRATOR_LISTEN_ADDR (default :8080)
}

// LoadFromEnv reads config values from environment variables with defaults.
func LoadFromEnv() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Environment:        envOr("MIGRATOR_ENV", "development"),
		DomainsFile:        envOr("MIGRATOR_DOMAINS_FILE", "domains.yaml"),
		MaxRetryAttempts:   envInt("MIGRATOR_MAX_RETRY_ATTEMPTS", 3),
		MaxParallelDomains: envInt("MIGRATOR_MAX_PARALLEL_DOMAINS", 4),
		DomainTimeout:      time.Duration(envInt("MIGRATOR_DOMAIN_TIMEOUT_MINUTES", 15)) * time.Minute,
		AppliedBy:          envOr("MIGRATOR_APPLIED_BY", "migrator"),
		AuditBackend:       envOr("MIGRATOR_AUDIT_BACKEND", "postgres"),
		AuditDir:           envOr("MIGRATOR_AUDIT_DIR", "./audit"),
		KafkaTopic:         envOr("MIGRATOR_KAFKA_TOPIC", "migration-audit"),
		BackupBucket:       os.Getenv("MIGRATOR_BACKUP_BUCKET"),
		BackupPrefix:       os.Getenv("MIGRATOR_BACKUP_PREFIX"),
		BackupDir:          envOr("MIGRATOR_BACKUP_DIR", "./backups"),
		BaselineFile:       os.Getenv("MIGRATOR_BASELINE_FILE"),
		ListenAddr:         envOr("MIGRATOR_LISTEN_ADDR", ":8080"),
	}

	// booleans parsed permissively; default false
	if v := os.Getenv("MIGRATOR_PARALLEL_EXECUTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ParallelExecution = b
		}
	}
	cfg.EnabledDomains = envList("MIGRATOR_ENABLED_DOMAINS")
	cfg.KafkaBrokers = envList("MIGRATOR_KAFKA_BROKERS")

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
