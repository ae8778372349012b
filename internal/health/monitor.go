// package health watches schema health outside the apply/rollback hot path:
// drift against an expected baseline, integrity of declared rules, and
// migration performance derived from the audit trail.
package health

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

// TableSchema is the structural snapshot compared during drift detection.
type TableSchema struct {
	Table   string   `json:"table" yaml:"table"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Inspector reads actual schema structure and runs integrity probes. The
// Postgres implementation lives in this package; tests use a memory one.
type Inspector interface {
	DescribeTable(ctx context.Context, table string) (TableSchema, error)
	TableExists(ctx context.Context, table string) (bool, error)
	OrphanCount(ctx context.Context, rule registry.IntegrityRule) (int, error)
	DuplicateCount(ctx context.Context, rule registry.IntegrityRule) (int, error)
	HasIndex(ctx context.Context, table, column string) (bool, error)
}

// BaselineSource supplies the expected structure per domain table.
type BaselineSource interface {
	ExpectedSchema(domain, table string) (TableSchema, bool)
}

// MapBaseline is a BaselineSource backed by a map keyed "domain/table".
type MapBaseline map[string]TableSchema

func (m MapBaseline) ExpectedSchema(domain, table string) (TableSchema, bool) {
	s, ok := m[domain+"/"+table]
	return s, ok
}

// BaselineComparer is the injectable comparison strategy: it returns one
// human-readable difference per divergence, empty when structures match.
type BaselineComparer interface {
	Compare(expected, actual TableSchema) []string
}

// ColumnSetComparer compares column name sets, ignoring order.
type ColumnSetComparer struct{}

func (ColumnSetComparer) Compare(expected, actual TableSchema) []string {
	have := map[string]bool{}
	for _, c := range actual.Columns {
		have[c] = true
	}
	want := map[string]bool{}
	for _, c := range expected.Columns {
		want[c] = true
	}
	var diffs []string
	for _, c := range expected.Columns {
		if !have[c] {
			diffs = append(diffs, fmt.Sprintf("missing column %s", c))
		}
	}
	extra := []string{}
	for _, c := range actual.Columns {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		diffs = append(diffs, fmt.Sprintf("unexpected column %s", c))
	}
	return diffs
}

// Severity grades drift and integrity findings.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// TableDrift is one drifted table and its differences from baseline.
type TableDrift struct {
	Table       string   `json:"table"`
	Differences []string `json:"differences"`
}

// SchemaDriftReport is a read-only snapshot; this package never persists it.
type SchemaDriftReport struct {
	Domain        string       `json:"domain"`
	DriftedTables []TableDrift `json:"driftedTables,omitempty"`
	Severity      Severity     `json:"severity"`
	CheckedAt     time.Time    `json:"checkedAt"`
}

// IntegrityIssue is one failed integrity rule with its finding count.
type IntegrityIssue struct {
	Rule        registry.IntegrityRule `json:"rule"`
	Count       int                    `json:"count"`
	Description string                 `json:"description"`
}

type IntegrityReport struct {
	Domain    string           `json:"domain"`
	Issues    []IntegrityIssue `json:"issues,omitempty"`
	Severity  Severity         `json:"severity"`
	CheckedAt time.Time        `json:"checkedAt"`
}

// PerformanceMetrics is derived purely from audit history.
type PerformanceMetrics struct {
	Domain      string        `json:"domain"`
	TotalRuns   int           `json:"totalRuns"`
	Successes   int           `json:"successes"`
	AvgDuration time.Duration `json:"avgDuration"`
	MinDuration time.Duration `json:"minDuration"`
	MaxDuration time.Duration `json:"maxDuration"`
	SuccessRate float64       `json:"successRate"`
	PerHour     float64       `json:"perHour"`
	Grade       string        `json:"grade"`
	ComputedAt  time.Time     `json:"computedAt"`
}

// Monitor runs the health checks for registered domains.
type Monitor struct {
	reg       *registry.Registry
	inspector Inspector
	baseline  BaselineSource
	comparer  BaselineComparer
	history   audit.HistorySource
	logger    *log.Logger
}

// NewMonitor wires a Monitor. comparer may be nil; ColumnSetComparer is the default.
func NewMonitor(reg *registry.Registry, insp Inspector, baseline BaselineSource, comparer BaselineComparer, history audit.HistorySource, logger *log.Logger) *Monitor {
	if comparer == nil {
		comparer = ColumnSetComparer{}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[health] ", log.LstdFlags)
	}
	return &Monitor{reg: reg, inspector: insp, baseline: baseline, comparer: comparer, history: history, logger: logger}
}

// DetectSchemaDrift compares every declared table against its baseline.
// Tables without a baseline are skipped. Core domains escalate to Critical at
// more than two drifted tables; ordinary domains reach High at four.
func (m *Monitor) DetectSchemaDrift(ctx context.Context, domain string) (*SchemaDriftReport, error) {
	d, err := m.reg.Get(domain)
	if err != nil {
		return nil, err
	}
	report := &SchemaDriftReport{Domain: domain, CheckedAt: time.Now().UTC()}
	for _, table := range d.Tables {
		expected, ok := m.baseline.ExpectedSchema(domain, table)
		if !ok {
			m.logger.Printf("%s: no baseline for table %s, skipping", domain, table)
			continue
		}
		actual, err := m.inspector.DescribeTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("describe %s.%s: %w", domain, table, err)
		}
		if diffs := m.comparer.Compare(expected, actual); len(diffs) > 0 {
			report.DriftedTables = append(report.DriftedTables, TableDrift{Table: table, Differences: diffs})
		}
	}
	report.Severity = driftSeverity(len(report.DriftedTables), d.Core)
	return report, nil
}

func driftSeverity(drifted int, core bool) Severity {
	switch {
	case drifted == 0:
		return SeverityNone
	case core && drifted > 2:
		return SeverityCritical
	case drifted >= 4:
		return SeverityHigh
	case drifted >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PerformIntegrityCheck runs the domain's declared rules. Any orphan-reference
// finding makes the report High regardless of total count.
func (m *Monitor) PerformIntegrityCheck(ctx context.Context, domain string) (*IntegrityReport, error) {
	d, err := m.reg.Get(domain)
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{Domain: domain, CheckedAt: time.Now().UTC()}
	orphans := false
	for _, rule := range d.IntegrityRules {
		switch rule.Kind {
		case registry.RuleOrphanReference:
			n, err := m.inspector.OrphanCount(ctx, rule)
			if err != nil {
				return nil, fmt.Errorf("orphan check %s.%s: %w", rule.Table, rule.Column, err)
			}
			if n > 0 {
				orphans = true
				report.Issues = append(report.Issues, IntegrityIssue{
					Rule: rule, Count: n,
					Description: fmt.Sprintf("%d row(s) in %s.%s reference missing %s.%s", n, rule.Table, rule.Column, rule.RefTable, rule.RefColumn),
				})
			}
		case registry.RuleDuplicateUniqueness:
			n, err := m.inspector.DuplicateCount(ctx, rule)
			if err != nil {
				return nil, fmt.Errorf("duplicate check %s.%s: %w", rule.Table, rule.Column, err)
			}
			if n > 0 {
				report.Issues = append(report.Issues, IntegrityIssue{
					Rule: rule, Count: n,
					Description: fmt.Sprintf("%d duplicated value(s) in %s.%s", n, rule.Table, rule.Column),
				})
			}
		case registry.RuleIndexPresence:
			ok, err := m.inspector.HasIndex(ctx, rule.Table, rule.Column)
			if err != nil {
				return nil, fmt.Errorf("index check %s.%s: %w", rule.Table, rule.Column, err)
			}
			if !ok {
				report.Issues = append(report.Issues, IntegrityIssue{
					Rule: rule, Count: 1,
					Description: fmt.Sprintf("no index covers %s.%s", rule.Table, rule.Column),
				})
			}
		default:
			return nil, fmt.Errorf("unknown integrity rule kind %q for domain %s", rule.Kind, domain)
		}
	}
	report.Severity = integritySeverity(len(report.Issues), orphans)
	return report, nil
}

func integritySeverity(issues int, orphans bool) Severity {
	switch {
	case orphans:
		return SeverityHigh
	case issues == 0:
		return SeverityNone
	case issues >= 4:
		return SeverityHigh
	case issues >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// GetPerformanceMetrics derives run statistics from the audit trail.
func (m *Monitor) GetPerformanceMetrics(ctx context.Context, domain string) (*PerformanceMetrics, error) {
	if _, err := m.reg.Get(domain); err != nil {
		return nil, err
	}
	entries, err := m.history.History(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("audit history for %s: %w", domain, err)
	}

	pm := &PerformanceMetrics{Domain: domain, TotalRuns: len(entries), ComputedAt: time.Now().UTC()}
	if len(entries) == 0 {
		pm.Grade = "N/A"
		return pm, nil
	}

	var sum time.Duration
	var firstAt, lastAt time.Time
	for _, e := range entries {
		if firstAt.IsZero() || e.AppliedAt.Before(firstAt) {
			firstAt = e.AppliedAt
		}
		if e.AppliedAt.After(lastAt) {
			lastAt = e.AppliedAt
		}
		if !e.Success {
			continue
		}
		pm.Successes++
		sum += e.Duration
		if pm.MinDuration == 0 || e.Duration < pm.MinDuration {
			pm.MinDuration = e.Duration
		}
		if e.Duration > pm.MaxDuration {
			pm.MaxDuration = e.Duration
		}
	}
	if pm.Successes > 0 {
		pm.AvgDuration = sum / time.Duration(pm.Successes)
	}
	pm.SuccessRate = float64(pm.Successes) / float64(pm.TotalRuns)

	hours := lastAt.Sub(firstAt).Hours()
	if hours <= 0 {
		hours = 1 // single burst: report the raw success count per hour
	}
	pm.PerHour = float64(pm.Successes) / hours
	pm.Grade = grade(pm.SuccessRate, pm.AvgDuration)
	return pm, nil
}

// grade maps success rate and average duration onto a letter grade, degrading
// stepwise from A.
func grade(rate float64, avg time.Duration) string {
	switch {
	case rate >= 0.98 && avg <= 5*time.Second:
		return "A"
	case rate >= 0.95 && avg <= 15*time.Second:
		return "B"
	case rate >= 0.90:
		return "C"
	case rate >= 0.75:
		return "D"
	default:
		return "F"
	}
}
