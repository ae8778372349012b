package health_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

// fakeInspector serves canned schema structure and integrity counts.
type fakeInspector struct {
	tables     map[string]health.TableSchema
	orphans    map[string]int  // keyed table.column
	duplicates map[string]int  // keyed table.column
	indexes    map[string]bool // keyed table.column
}

func (f *fakeInspector) DescribeTable(ctx context.Context, table string) (health.TableSchema, error) {
	return f.tables[table], nil
}

func (f *fakeInspector) TableExists(ctx context.Context, table string) (bool, error) {
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeInspector) OrphanCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	return f.orphans[rule.Table+"."+rule.Column], nil
}

func (f *fakeInspector) DuplicateCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	return f.duplicates[rule.Table+"."+rule.Column], nil
}

func (f *fakeInspector) HasIndex(ctx context.Context, table, column string) (bool, error) {
	return f.indexes[table+"."+column], nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func schema(table string, cols ...string) health.TableSchema {
	return health.TableSchema{Table: table, Columns: cols}
}

func newMonitor(t *testing.T, d registry.Domain, insp *fakeInspector, baseline health.MapBaseline, history audit.HistorySource) *health.Monitor {
	t.Helper()
	reg, err := registry.New([]registry.Domain{d})
	require.NoError(t, err)
	return health.NewMonitor(reg, insp, baseline, nil, history, quietLogger())
}

func TestDetectSchemaDriftClean(t *testing.T) {
	insp := &fakeInspector{tables: map[string]health.TableSchema{
		"articles": schema("articles", "id", "title"),
	}}
	baseline := health.MapBaseline{
		"news/articles": schema("articles", "id", "title"),
	}
	mon := newMonitor(t, registry.Domain{Name: "news", Enabled: true, Tables: []string{"articles"}}, insp, baseline, audit.NewMemorySink())

	report, err := mon.DetectSchemaDrift(context.Background(), "news")
	require.NoError(t, err)
	assert.Empty(t, report.DriftedTables)
	assert.Equal(t, health.SeverityNone, report.Severity)
}

func TestDetectSchemaDriftFindsDifferences(t *testing.T) {
	insp := &fakeInspector{tables: map[string]health.TableSchema{
		"articles":   schema("articles", "id", "title", "legacy_slug"),
		"categories": schema("categories", "id", "name"),
		"unbaselined": schema("unbaselined", "whatever"),
	}}
	baseline := health.MapBaseline{
		"news/articles":   schema("articles", "id", "title", "published_at"),
		"news/categories": schema("categories", "id", "name"),
	}
	mon := newMonitor(t, registry.Domain{
		Name: "news", Enabled: true,
		Tables: []string{"articles", "categories", "unbaselined"},
	}, insp, baseline, audit.NewMemorySink())

	report, err := mon.DetectSchemaDrift(context.Background(), "news")
	require.NoError(t, err)

	require.Len(t, report.DriftedTables, 1)
	drift := report.DriftedTables[0]
	assert.Equal(t, "articles", drift.Table)
	assert.Contains(t, drift.Differences, "missing column published_at")
	assert.Contains(t, drift.Differences, "unexpected column legacy_slug")
	assert.Equal(t, health.SeverityLow, report.Severity)
}

func TestDriftSeverityEscalation(t *testing.T) {
	tables := []string{"t1", "t2", "t3", "t4"}
	insp := &fakeInspector{tables: map[string]health.TableSchema{}}
	baseline := health.MapBaseline{}
	for _, tb := range tables {
		insp.tables[tb] = schema(tb, "id", "drifted")
		baseline["d/"+tb] = schema(tb, "id")
	}

	run := func(t *testing.T, core bool, n int) health.Severity {
		t.Helper()
		mon := newMonitor(t, registry.Domain{
			Name: "d", Enabled: true, Core: core, Tables: tables[:n],
		}, insp, baseline, audit.NewMemorySink())
		report, err := mon.DetectSchemaDrift(context.Background(), "d")
		require.NoError(t, err)
		return report.Severity
	}

	assert.Equal(t, health.SeverityLow, run(t, false, 1))
	assert.Equal(t, health.SeverityMedium, run(t, false, 2))
	assert.Equal(t, health.SeverityMedium, run(t, false, 3))
	assert.Equal(t, health.SeverityHigh, run(t, false, 4))
	assert.Equal(t, health.SeverityCritical, run(t, true, 3))
}

func TestPerformIntegrityCheck(t *testing.T) {
	rules := []registry.IntegrityRule{
		{Kind: registry.RuleOrphanReference, Table: "articles", Column: "category_id", RefTable: "categories", RefColumn: "id"},
		{Kind: registry.RuleDuplicateUniqueness, Table: "categories", Column: "slug"},
		{Kind: registry.RuleIndexPresence, Table: "articles", Column: "published_at"},
	}
	domain := registry.Domain{Name: "news", Enabled: true, IntegrityRules: rules}

	t.Run("clean", func(t *testing.T) {
		insp := &fakeInspector{
			orphans:    map[string]int{},
			duplicates: map[string]int{},
			indexes:    map[string]bool{"articles.published_at": true},
		}
		mon := newMonitor(t, domain, insp, health.MapBaseline{}, audit.NewMemorySink())
		report, err := mon.PerformIntegrityCheck(context.Background(), "news")
		require.NoError(t, err)
		assert.Empty(t, report.Issues)
		assert.Equal(t, health.SeverityNone, report.Severity)
	})

	t.Run("orphans force high", func(t *testing.T) {
		insp := &fakeInspector{
			orphans:    map[string]int{"articles.category_id": 7},
			duplicates: map[string]int{},
			indexes:    map[string]bool{"articles.published_at": true},
		}
		mon := newMonitor(t, domain, insp, health.MapBaseline{}, audit.NewMemorySink())
		report, err := mon.PerformIntegrityCheck(context.Background(), "news")
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, 7, report.Issues[0].Count)
		assert.Equal(t, health.SeverityHigh, report.Severity)
	})

	t.Run("duplicates and missing index", func(t *testing.T) {
		insp := &fakeInspector{
			orphans:    map[string]int{},
			duplicates: map[string]int{"categories.slug": 2},
			indexes:    map[string]bool{},
		}
		mon := newMonitor(t, domain, insp, health.MapBaseline{}, audit.NewMemorySink())
		report, err := mon.PerformIntegrityCheck(context.Background(), "news")
		require.NoError(t, err)
		assert.Len(t, report.Issues, 2)
		assert.Equal(t, health.SeverityMedium, report.Severity)
	})

	t.Run("unknown rule kind", func(t *testing.T) {
		bad := registry.Domain{Name: "news", Enabled: true, IntegrityRules: []registry.IntegrityRule{
			{Kind: "row-count-parity", Table: "articles", Column: "id"},
		}}
		mon := newMonitor(t, bad, &fakeInspector{}, health.MapBaseline{}, audit.NewMemorySink())
		_, err := mon.PerformIntegrityCheck(context.Background(), "news")
		assert.ErrorContains(t, err, "unknown integrity rule kind")
	})
}

func TestGetPerformanceMetrics(t *testing.T) {
	domain := registry.Domain{Name: "news", Enabled: true}

	t.Run("no history", func(t *testing.T) {
		mon := newMonitor(t, domain, &fakeInspector{}, health.MapBaseline{}, audit.NewMemorySink())
		pm, err := mon.GetPerformanceMetrics(context.Background(), "news")
		require.NoError(t, err)
		assert.Zero(t, pm.TotalRuns)
		assert.Equal(t, "N/A", pm.Grade)
	})

	t.Run("grades from history", func(t *testing.T) {
		sink := audit.NewMemorySink()
		base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
		record := func(offset time.Duration, took time.Duration, ok bool) {
			require.NoError(t, sink.Record(context.Background(), &audit.Entry{
				Domain:    "news",
				Migration: "m",
				AppliedAt: base.Add(offset),
				Duration:  took,
				Success:   ok,
			}))
		}
		record(0, 2*time.Second, true)
		record(30*time.Minute, 4*time.Second, true)
		record(time.Hour, 3*time.Second, true)

		mon := newMonitor(t, domain, &fakeInspector{}, health.MapBaseline{}, sink)
		pm, err := mon.GetPerformanceMetrics(context.Background(), "news")
		require.NoError(t, err)

		assert.Equal(t, 3, pm.TotalRuns)
		assert.Equal(t, 3, pm.Successes)
		assert.Equal(t, 3*time.Second, pm.AvgDuration)
		assert.Equal(t, 2*time.Second, pm.MinDuration)
		assert.Equal(t, 4*time.Second, pm.MaxDuration)
		assert.InDelta(t, 1.0, pm.SuccessRate, 1e-9)
		assert.InDelta(t, 3.0, pm.PerHour, 1e-9)
		assert.Equal(t, "A", pm.Grade)
	})

	t.Run("failures drag the grade down", func(t *testing.T) {
		sink := audit.NewMemorySink()
		at := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
		for i := 0; i < 10; i++ {
			require.NoError(t, sink.Record(context.Background(), &audit.Entry{
				Domain:    "news",
				Migration: "m",
				AppliedAt: at,
				Duration:  time.Second,
				Success:   i < 8, // 80% success
			}))
		}
		mon := newMonitor(t, domain, &fakeInspector{}, health.MapBaseline{}, sink)
		pm, err := mon.GetPerformanceMetrics(context.Background(), "news")
		require.NoError(t, err)
		assert.InDelta(t, 0.8, pm.SuccessRate, 1e-9)
		assert.Equal(t, "D", pm.Grade)
	})
}
