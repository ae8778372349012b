package executor

import "fmt"

// ExecutionError wraps a provider failure that survived the retry policy and
// halted the run.
type ExecutionError struct {
	Domain   string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("domain %s failed after %d attempt(s): %v", e.Domain, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// DependencyInvariantError reports a domain scheduled before one of its
// dependencies completed. Planning guarantees make this unreachable; seeing
// one is a defect, not an operational condition.
type DependencyInvariantError struct {
	Domain  string
	Missing string
}

func (e *DependencyInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated: domain %s scheduled before dependency %s completed", e.Domain, e.Missing)
}
