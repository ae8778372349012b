package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the on-disk shape of the domain registry.
type file struct {
	Domains []Domain `yaml:"domains"`
}

// LoadFile reads a YAML domain registry, e.g.
//
//	domains:
//	  - name: services
//	    priority: 1
//	    enabled: true
//	    core: true
//	    tables: [services, service_categories]
//	  - name: news
//	    dependsOn: [services]
//	    priority: 2
//	    enabled: true
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse domains file %s: %w", path, err)
	}
	if len(f.Domains) == 0 {
		return nil, fmt.Errorf("domains file %s declares no domains", path)
	}
	return New(f.Domains)
}
