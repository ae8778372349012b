// package registry holds the static description of every schema domain the
// orchestrator manages: its dependencies, priority, tables, and integrity rules.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a requested domain is not registered.
var ErrNotFound = errors.New("domain not registered")

// IntegrityRule declares one structural check the health monitor runs for a domain.
type IntegrityRule struct {
	// Kind is one of "orphan_reference", "duplicate_uniqueness", "index_presence".
	Kind string `yaml:"kind" json:"kind"`

	Table  string `yaml:"table" json:"table"`
	Column string `yaml:"column" json:"column"`

	// RefTable/RefColumn apply to orphan_reference rules only.
	RefTable  string `yaml:"refTable,omitempty" json:"refTable,omitempty"`
	RefColumn string `yaml:"refColumn,omitempty" json:"refColumn,omitempty"`
}

const (
	RuleOrphanReference     = "orphan_reference"
	RuleDuplicateUniqueness = "duplicate_uniqueness"
	RuleIndexPresence       = "index_presence"
)

// Domain describes one independently versioned schema unit.
type Domain struct {
	Name      string   `yaml:"name" json:"name"`
	DependsOn []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`

	// Priority breaks ties among domains with equal topological eligibility.
	// Lower sorts earlier.
	Priority int  `yaml:"priority" json:"priority"`
	Enabled  bool `yaml:"enabled" json:"enabled"`

	// Core marks domains whose rollback/drift classifications escalate earlier.
	Core bool `yaml:"core,omitempty" json:"core,omitempty"`

	// Tables lists the tables/collections this domain owns.
	Tables []string `yaml:"tables,omitempty" json:"tables,omitempty"`

	IntegrityRules []IntegrityRule `yaml:"integrityRules,omitempty" json:"integrityRules,omitempty"`
}

// Registry is an immutable view over the configured domain set.
type Registry struct {
	byName map[string]Domain
	names  []string // sorted for deterministic iteration
}

// New validates the domain set and builds a Registry. Validation rejects
// duplicate names, self-dependencies, and dependencies on unregistered domains.
func New(domains []Domain) (*Registry, error) {
	byName := make(map[string]Domain, len(domains))
	for _, d := range domains {
		if d.Name == "" {
			return nil, fmt.Errorf("registry: domain with empty name")
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate domain %q", d.Name)
		}
		byName[d.Name] = d
	}
	for _, d := range domains {
		for _, dep := range d.DependsOn {
			if dep == d.Name {
				return nil, fmt.Errorf("registry: domain %q depends on itself", d.Name)
			}
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("registry: domain %q depends on unregistered domain %q", d.Name, dep)
			}
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Registry{byName: byName, names: names}, nil
}

// Get returns the named domain or ErrNotFound.
func (r *Registry) Get(name string) (Domain, error) {
	d, ok := r.byName[name]
	if !ok {
		return Domain{}, fmt.Errorf("registry: %q: %w", name, ErrNotFound)
	}
	return d, nil
}

// Names returns all registered domain names in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Enabled returns every enabled domain ordered by (priority, name).
func (r *Registry) Enabled() []Domain {
	var out []Domain
	for _, n := range r.names {
		if d := r.byName[n]; d.Enabled {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Dependents returns the names of domains whose declared dependency set
// includes the given domain (reverse-dependency lookup), in lexical order.
func (r *Registry) Dependents(name string) []string {
	var out []string
	for _, n := range r.names {
		for _, dep := range r.byName[n].DependsOn {
			if dep == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Restrict returns a registry containing only the named domains; domains
// outside the set are marked disabled but stay registered so dependency
// validation keeps working. Unknown names are an error.
func (r *Registry) Restrict(enabled []string) (*Registry, error) {
	want := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("registry: %q: %w", n, ErrNotFound)
		}
		want[n] = true
	}
	domains := make([]Domain, 0, len(r.names))
	for _, n := range r.names {
		d := r.byName[n]
		d.Enabled = d.Enabled && want[n]
		domains = append(domains, d)
	}
	return New(domains)
}
