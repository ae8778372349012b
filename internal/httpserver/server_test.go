package httpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/audit"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/httpserver"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

type nilInspector struct{}

func (nilInspector) DescribeTable(ctx context.Context, table string) (health.TableSchema, error) {
	return health.TableSchema{}, nil
}
func (nilInspector) TableExists(ctx context.Context, table string) (bool, error) { return true, nil }
func (nilInspector) OrphanCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	return 0, nil
}
func (nilInspector) DuplicateCount(ctx context.Context, rule registry.IntegrityRule) (int, error) {
	return 0, nil
}
func (nilInspector) HasIndex(ctx context.Context, table, column string) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T, withMonitor bool) (*httptest.Server, *provider.MemoryProvider, *audit.MemorySink) {
	t.Helper()
	reg, err := registry.New([]registry.Domain{
		{Name: "news", Enabled: true, Priority: 1},
		{Name: "contacts", Enabled: true, Priority: 2},
	})
	require.NoError(t, err)

	prov := provider.NewMemoryProvider()
	prov.Register("news", "m1", "m2", "m3")
	prov.MarkApplied("news", "m1")

	sink := audit.NewMemorySink()
	var mon *health.Monitor
	if withMonitor {
		mon = health.NewMonitor(reg, nilInspector{}, health.MapBaseline{}, nil, sink, log.New(io.Discard, "", 0))
	}

	srv := httptest.NewServer(httpserver.New(reg, prov, mon).Router())
	t.Cleanup(srv.Close)
	return srv, prov, sink
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv, prov, _ := newTestServer(t, false)

	var body map[string]interface{}
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])

	prov.PingErr = context.DeadlineExceeded
	code = getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, body["ok"])
}

func TestDomainsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, false)

	var domains []registry.Domain
	code := getJSON(t, srv.URL+"/domains", &domains)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, domains, 2)
	assert.Equal(t, "news", domains[0].Name)
	assert.Equal(t, "contacts", domains[1].Name)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, false)

	var status struct {
		Domain  string   `json:"domain"`
		Applied int      `json:"applied"`
		Pending int      `json:"pending"`
		Next    []string `json:"next"`
	}
	code := getJSON(t, srv.URL+"/domains/news/status", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "news", status.Domain)
	assert.Equal(t, 1, status.Applied)
	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, []string{"m2", "m3"}, status.Next)

	code = getJSON(t, srv.URL+"/domains/ghost/status", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, sink := newTestServer(t, true)

	require.NoError(t, sink.Record(context.Background(), &audit.Entry{
		Domain: "news", Migration: "m1", Duration: 2 * time.Second, Success: true,
	}))

	var pm health.PerformanceMetrics
	code := getJSON(t, srv.URL+"/domains/news/metrics", &pm)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, pm.TotalRuns)
	assert.Equal(t, "A", pm.Grade)

	code = getJSON(t, srv.URL+"/domains/ghost/metrics", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpointUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	code := getJSON(t, srv.URL+"/domains/news/metrics", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
