package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAndMigrate_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, DriverSQLite))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM application_codes").Scan(&count))
	assert.Equal(t, 6, count)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM application_codes WHERE code = 'APL'").Scan(&name))
	assert.Equal(t, "稟議書", name)

	// A second run is a no-op.
	require.NoError(t, Migrate(ctx, db, DriverSQLite))
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Driver: "mysql"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(ctx, Config{Driver: DriverPostgres}, zap.NewNop())
	assert.ErrorContains(t, err, "dsn is required")
}

func TestMigrate_UnsupportedDriver(t *testing.T) {
	err := Migrate(context.Background(), nil, "mysql")
	assert.ErrorContains(t, err, "unsupported database driver")
}
