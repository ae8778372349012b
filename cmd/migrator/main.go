// migrator is the CLI wrapping the migration orchestration engine: it plans,
// applies, inspects, and rolls back schema migrations across domains.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/backup"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/config"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

var rootCmd = &cobra.Command{
	Use:           "migrator",
	Short:         "Multi-domain schema migration orchestrator",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired collaborators the commands share.
type app struct {
	cfg     *config.Config
	reg     *registry.Registry
	db      *sql.DB
	prov    provider.Provider
	sink    audit.Sink
	history audit.HistorySource
	closers []func() error
}

// newApp loads config and the domain registry, and when needDB is set, opens
// Postgres and wires the provider and audit sink.
func newApp(needDB bool) (*app, error) {
	cfg := config.LoadFromEnv()

	reg, err := registry.LoadFile(cfg.DomainsFile)
	if err != nil {
		return nil, fmt.Errorf("load domain registry: %w", err)
	}
	if len(cfg.EnabledDomains) > 0 {
		reg, err = reg.Restrict(cfg.EnabledDomains)
		if err != nil {
			return nil, fmt.Errorf("apply MIGRATOR_ENABLED_DOMAINS: %w", err)
		}
	}

	a := &app{cfg: cfg, reg: reg}
	if !needDB {
		return a, nil
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	a.db = db
	a.closers = append(a.closers, db.Close)

	a.prov = provider.NewPGProvider(db)

	sink, history, err := a.buildAuditSink(db)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sink, a.history = sink, history
	return a, nil
}

func (a *app) buildAuditSink(db *sql.DB) (audit.Sink, audit.HistorySource, error) {
	var sink audit.Sink
	var history audit.HistorySource
	switch a.cfg.AuditBackend {
	case "postgres":
		pg := audit.NewPGSink(db)
		sink, history = pg, pg
	case "file":
		fs := audit.NewFileSink(a.cfg.AuditDir)
		sink, history = fs, fs
	case "memory":
		ms := audit.NewMemorySink()
		sink, history = ms, ms
	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", a.cfg.AuditBackend)
	}

	if len(a.cfg.KafkaBrokers) > 0 {
		producer, err := audit.NewKafkaProducer(audit.KafkaProducerConfig{
			Brokers: a.cfg.KafkaBrokers,
			Topic:   a.cfg.KafkaTopic,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer init: %w", err)
		}
		streaming := audit.NewStreamingSink(sink, producer, nil)
		a.closers = append(a.closers, streaming.Close)
		sink = streaming
	}
	return sink, history, nil
}

// checkpointer picks S3 when a bucket is configured, local dir otherwise.
func (a *app) checkpointer(cmd *cobra.Command) (backup.Checkpointer, error) {
	if a.cfg.BackupBucket != "" {
		cp, err := backup.NewS3Checkpointer(cmd.Context(), a.cfg.BackupBucket, a.cfg.BackupPrefix)
		if err != nil {
			return nil, fmt.Errorf("s3 checkpointer init: %w", err)
		}
		return cp, nil
	}
	return backup.NewDirCheckpointer(a.cfg.BackupDir), nil
}

// monitor wires the health monitor when a database is open; baseline drift
// data is optional.
func (a *app) monitor() (*health.Monitor, error) {
	if a.db == nil {
		return nil, fmt.Errorf("health monitor requires a database")
	}
	var baseline health.BaselineSource = health.MapBaseline{}
	if a.cfg.BaselineFile != "" {
		m, err := health.LoadBaselineFile(a.cfg.BaselineFile)
		if err != nil {
			return nil, err
		}
		baseline = m
	}
	return health.NewMonitor(a.reg, health.NewPGInspector(a.db), baseline, nil, a.history, nil), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}
