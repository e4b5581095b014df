package migration

import (
	"testing"

	"github.com/bloom/bloomctl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_Postgres(t *testing.T) {
	pg := testutil.NewTestPostgres(t)

	m, err := Open(pg.DSN, testutil.MigrationsPath(t), nil)
	require.NoError(t, err)
	defer m.Close()

	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(), "already at latest revision")

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Down(), "nothing left to roll back")
}
