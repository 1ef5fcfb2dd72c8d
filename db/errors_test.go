package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abmxerrors "github.com/meridian-hq/ABMX/errors"
)

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.False(t, IsDatabaseClosed(abmxerrors.New("disk I/O error")))

	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))
	assert.True(t, IsDatabaseClosed(abmxerrors.Wrap(ErrDatabaseClosed, "upsert companies/c-1")))
}

func TestIsDatabaseClosedDetectsDriverError(t *testing.T) {
	database, err := Open(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	_, err = database.Exec("SELECT 1")
	require.Error(t, err)
	assert.True(t, IsDatabaseClosed(err))
}
