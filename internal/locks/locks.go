// package locks provides the per-domain mutual exclusion guard shared by plan
// execution and rollback: a domain is owned by at most one operation at a time.
package locks

import (
	"fmt"
	"sync"
)

// ErrHeld wraps the conflict reported when a domain is already owned.
type ErrHeld struct {
	Domain string
	Owner  string
}

func (e *ErrHeld) Error() string {
	return fmt.Sprintf("domain %s is locked by %s", e.Domain, e.Owner)
}

// Guard hands out exclusive per-domain leases. In-process only; deployments
// coordinating several orchestrator instances should back this with an
// external lease instead.
type Guard struct {
	mu   sync.Mutex
	held map[string]string // domain -> owner
}

func NewGuard() *Guard {
	return &Guard{held: map[string]string{}}
}

// Acquire takes the domain lease for owner, failing with *ErrHeld on conflict.
func (g *Guard) Acquire(domain, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.held[domain]; ok {
		return &ErrHeld{Domain: domain, Owner: cur}
	}
	g.held[domain] = owner
	return nil
}

// Release drops the lease. Releasing an unheld domain is a no-op.
func (g *Guard) Release(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, domain)
}
