package database

import (
	"path/filepath"
	"testing"

	"github.com/ds124wfegd/crossedpaths/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_SQLite(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db, DriverSQLite))
	// idempotent
	require.NoError(t, RunMigrations(db, DriverSQLite))

	tables := []string{
		"users", "venues", "events", "rsvps", "visits",
		"crossed_path_logs", "crossed_path_matches", "payments", "subscriptions",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=$1", table,
		).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestRunMigrations_UnknownDriver(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, RunMigrations(db, "mysql"))
}

func TestNewDB_UnknownDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDialects_ReplaceAllPlaceholders(t *testing.T) {
	for driver, dialect := range dialects {
		for _, m := range migrations {
			assert.NotContains(t, dialect.Replace(m), "{{", "driver %s", driver)
		}
	}
}
