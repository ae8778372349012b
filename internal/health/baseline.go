package health

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// baselineFile is the on-disk shape of expected schemas:
//
//	baselines:
//	  - domain: services
//	    table: services
//	    columns: [id, name, category_id, created_at]
type baselineFile struct {
	Baselines []struct {
		Domain  string   `yaml:"domain"`
		Table   string   `yaml:"table"`
		Columns []string `yaml:"columns"`
	} `yaml:"baselines"`
}

// LoadBaselineFile reads expected table schemas from YAML into a MapBaseline.
func LoadBaselineFile(path string) (MapBaseline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline file: %w", err)
	}
	var f baselineFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse baseline file %s: %w", path, err)
	}
	m := MapBaseline{}
	for _, e := range f.Baselines {
		m[e.Domain+"/"+e.Table] = TableSchema{Table: e.Table, Columns: e.Columns}
	}
	return m, nil
}
