package planner

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

// Config tunes plan construction. Zero values fall back to defaults.
type Config struct {
	// MaxParallelDomains caps execution-group width. Defaults to 4.
	MaxParallelDomains int

	// Environment tags the produced plan (dev/staging/production).
	Environment string

	// PerMigration and PerMigrationOverhead drive the duration estimate:
	// each pending migration costs PerMigration plus PerMigrationOverhead.
	// Defaults: 2m and 30s.
	PerMigration         time.Duration
	PerMigrationOverhead time.Duration

	Logger *log.Logger
}

// Planner builds migration plans from registry and provider state.
type Planner struct {
	cfg    Config
	logger *log.Logger
}

// New constructs a Planner, applying config defaults.
func New(cfg Config) *Planner {
	if cfg.MaxParallelDomains <= 0 {
		cfg.MaxParallelDomains = 4
	}
	if cfg.PerMigration <= 0 {
		cfg.PerMigration = 2 * time.Minute
	}
	if cfg.PerMigrationOverhead <= 0 {
		cfg.PerMigrationOverhead = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[planner] ", log.LstdFlags)
	}
	return &Planner{cfg: cfg, logger: logger}
}

// CreatePlan fetches pending migrations for every enabled domain concurrently,
// topologically sorts the domains, and layers them into execution groups. A
// dependency cycle aborts planning with *CycleError and no partial plan.
func (p *Planner) CreatePlan(ctx context.Context, reg *registry.Registry, prov provider.Provider) (*Plan, error) {
	enabled := reg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no enabled domains to plan")
	}

	// Concurrent fan-out: pending list per domain, joined before sorting.
	nodes := make([]DomainMigration, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range enabled {
		i, d := i, d
		g.Go(func() error {
			all, err := prov.ListAllMigrations(gctx, d.Name)
			if err != nil {
				return fmt.Errorf("list migrations for %s: %w", d.Name, err)
			}
			applied, err := prov.ListAppliedMigrations(gctx, d.Name)
			if err != nil {
				return fmt.Errorf("list applied for %s: %w", d.Name, err)
			}
			nodes[i] = DomainMigration{
				Domain:    d.Name,
				DependsOn: append([]string(nil), d.DependsOn...),
				Pending:   pendingOf(all, applied),
				Priority:  d.Priority,
			}
			nodes[i].EstimatedDuration = time.Duration(len(nodes[i].Pending)) * (p.cfg.PerMigration + p.cfg.PerMigrationOverhead)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sorted, err := topoSort(nodes)
	if err != nil {
		return nil, err
	}

	groups, err := layerGroups(sorted, p.cfg.MaxParallelDomains)
	if err != nil {
		return nil, err
	}

	var total time.Duration
	for _, dm := range sorted {
		total += dm.EstimatedDuration
	}

	plan := &Plan{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now().UTC(),
		Sorted:         sorted,
		Groups:         groups,
		Environment:    p.cfg.Environment,
		MaxParallel:    p.cfg.MaxParallelDomains,
		EstimatedTotal: total,
	}
	p.logger.Printf("plan %s: %d domains, %d groups, estimated %s", plan.ID, len(sorted), len(groups), total)
	return plan, nil
}

// ValidateGraph checks the enabled domains' dependency graph for cycles
// without touching the provider. Used by configuration validation.
func ValidateGraph(reg *registry.Registry) error {
	enabled := reg.Enabled()
	nodes := make([]DomainMigration, len(enabled))
	for i, d := range enabled {
		nodes[i] = DomainMigration{
			Domain:    d.Name,
			DependsOn: append([]string(nil), d.DependsOn...),
			Priority:  d.Priority,
		}
	}
	_, err := topoSort(nodes)
	return err
}

// pendingOf returns all minus applied, preserving the provider's order.
func pendingOf(all, applied []string) []string {
	appliedSet := make(map[string]bool, len(applied))
	for _, a := range applied {
		appliedSet[a] = true
	}
	pending := []string{}
	for _, m := range all {
		if !appliedSet[m] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Three-color depth-first topological sort over an index arena. Dependencies
// on domains outside the plan (disabled) are treated as satisfied.
func topoSort(nodes []DomainMigration) ([]DomainMigration, error) {
	const (
		white = iota // unvisited
		gray         // in progress
		black        // done
	)

	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.Domain] = i
	}
	adj := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, dep := range n.DependsOn {
			if j, ok := idx[dep]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}

	colors := make([]int, len(nodes))
	order := make([]int, 0, len(nodes))
	path := make([]int, 0, len(nodes))

	var visit func(u int) *CycleError
	visit = func(u int) *CycleError {
		colors[u] = gray
		path = append(path, u)
		for _, v := range adj[u] {
			switch colors[v] {
			case gray:
				// Close the cycle for the error message.
				cycle := []string{}
				start := 0
				for i, n := range path {
					if n == v {
						start = i
						break
					}
				}
				for _, n := range path[start:] {
					cycle = append(cycle, nodes[n].Domain)
				}
				return &CycleError{Path: append(cycle, nodes[v].Domain)}
			case white:
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colors[u] = black
		order = append(order, u)
		return nil
	}

	// nodes arrive pre-sorted by (priority, name), which fixes the tie-break
	// among equally eligible domains.
	for u := range nodes {
		if colors[u] == white {
			if err := visit(u); err != nil {
				return nil, err
			}
		}
	}

	sorted := make([]DomainMigration, 0, len(nodes))
	for _, u := range order {
		sorted = append(sorted, nodes[u])
	}
	return sorted, nil
}

// layerGroups partitions the sorted domains into execution groups by greedy
// layering: scan unprocessed domains in sorted order, admit any whose
// dependencies live in an already-sealed group, seal once the group reaches
// maxParallel, repeat. Each pass must admit at least one domain; an empty pass
// means the graph was cyclic after all and planning aborts.
func layerGroups(sorted []DomainMigration, maxParallel int) ([][]DomainMigration, error) {
	inPlan := make(map[string]bool, len(sorted))
	for _, dm := range sorted {
		inPlan[dm.Domain] = true
	}

	sealed := make(map[string]bool, len(sorted))
	var groups [][]DomainMigration

	for len(sealed) < len(sorted) {
		var group []DomainMigration
		for _, dm := range sorted {
			if len(group) >= maxParallel {
				break
			}
			if sealed[dm.Domain] || inGroup(group, dm.Domain) {
				continue
			}
			ready := true
			for _, dep := range dm.DependsOn {
				if inPlan[dep] && !sealed[dep] {
					ready = false
					break
				}
			}
			if ready {
				group = append(group, dm)
			}
		}
		if len(group) == 0 {
			remaining := []string{}
			for _, dm := range sorted {
				if !sealed[dm.Domain] {
					remaining = append(remaining, dm.Domain)
				}
			}
			return nil, &CycleError{Path: remaining}
		}
		for _, dm := range group {
			sealed[dm.Domain] = true
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func inGroup(group []DomainMigration, domain string) bool {
	for _, dm := range group {
		if dm.Domain == domain {
			return true
		}
	}
	return false
}
