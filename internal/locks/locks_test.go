package locks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
)

func TestGuardExclusion(t *testing.T) {
	g := locks.NewGuard()

	require.NoError(t, g.Acquire("news", "plan-execution"))

	err := g.Acquire("news", "rollback")
	var held *locks.ErrHeld
	require.ErrorAs(t, err, &held)
	assert.Equal(t, "news", held.Domain)
	assert.Equal(t, "plan-execution", held.Owner)

	// other domains stay available
	assert.NoError(t, g.Acquire("contacts", "rollback"))

	g.Release("news")
	assert.NoError(t, g.Acquire("news", "rollback"))
}

func TestGuardReleaseUnheldIsNoop(t *testing.T) {
	g := locks.NewGuard()
	g.Release("never-acquired")
	assert.NoError(t, g.Acquire("never-acquired", "x"))
}
