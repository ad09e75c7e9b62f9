package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsTable(t *testing.T) {
	t.Parallel()

	known := map[string]bool{
		colAccounts:  true,
		colSessions:  true,
		colTickets:   true,
		colInvites:   true,
		colCallbacks: true,
		colSecrets:   true,
	}

	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		require.NotEmpty(t, m.name)
		assert.False(t, seen[m.name], "duplicate migration name %s", m.name)
		seen[m.name] = true

		assert.True(t, known[m.collection], "migration %s targets unknown collection %s", m.name, m.collection)
		require.NotNil(t, m.model.Keys, m.name)
		require.NotNil(t, m.model.Options, m.name)
	}
}
