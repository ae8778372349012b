package health_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
)

func TestLoadBaselineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	data := `
baselines:
  - domain: news
    table: articles
    columns: [id, title, published_at]
  - domain: news
    table: categories
    columns: [id, name]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	m, err := health.LoadBaselineFile(path)
	require.NoError(t, err)

	s, ok := m.ExpectedSchema("news", "articles")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "title", "published_at"}, s.Columns)

	_, ok = m.ExpectedSchema("news", "missing")
	assert.False(t, ok)

	_, err = health.LoadBaselineFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
