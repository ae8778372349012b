// package planner turns the domain registry plus provider state into an
// ordered, parallel-group-annotated migration plan.
package planner

import (
	"fmt"
	"strings"
	"time"
)

// DomainMigration is one domain's slice of a plan: the pending migrations and
// the dependency/priority data the executor needs. Created per planning run;
// never mutated afterwards.
type DomainMigration struct {
	Domain            string        `json:"domain"`
	DependsOn         []string      `json:"dependsOn,omitempty"`
	Pending           []string      `json:"pending"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Priority          int           `json:"priority"`
}

// Plan is an immutable orchestration plan: domains topologically sorted, plus
// execution groups that partition the same domains exactly once.
type Plan struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// Sorted lists every enabled domain in dependency order.
	Sorted []DomainMigration `json:"sorted"`

	// Groups partitions Sorted; every domain's dependencies live in a
	// strictly earlier group.
	Groups [][]DomainMigration `json:"groups"`

	Environment    string        `json:"environment"`
	MaxParallel    int           `json:"maxParallel"`
	EstimatedTotal time.Duration `json:"estimatedTotal"`
}

// GroupIndex returns the execution-group index holding the domain, or -1.
func (p *Plan) GroupIndex(domain string) int {
	for i, g := range p.Groups {
		for _, dm := range g {
			if dm.Domain == domain {
				return i
			}
		}
	}
	return -1
}

// CycleError reports a dependency cycle found during planning. No partial
// plan is ever produced alongside it.
type CycleError struct {
	// Path is the chain of domains that closes the cycle.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}
