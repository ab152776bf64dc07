package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/botflow/core/config"
)

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "second run is a no-op")

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'session_%' ORDER BY name`))
	require.Equal(t, []string{"session_access", "session_record"}, tables)
}

func TestMigrationFilesPerDriver(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverSQLite} {
		files := listMigrationFiles("migrations/" + driver)
		require.Equal(t, []string{"0001_sessions.up.sql"}, files, driver)
	}
	require.Equal(t, []string{"0001_sessions.up.sql"}, selectApplied([]string{"0001_sessions.up.sql"}, 0, 1))
	require.Empty(t, selectApplied([]string{"0001_sessions.up.sql"}, 1, 1))
	require.Equal(t, uint64(12), parseVersion("0012_add.up.sql"))
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: config.DriverPostgres, Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "flow", SSLMode: "disable"}
	require.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=flow sslmode=disable", DSN(cfg))
	require.Equal(t, "postgres://bot:p%40ss@db:5432/flow?sslmode=disable", URL(cfg))
	require.Equal(t, "/tmp/x.db", DSN(config.DatabaseConfig{Driver: config.DriverSQLite, Path: "/tmp/x.db"}))
}
