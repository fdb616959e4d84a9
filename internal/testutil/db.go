// Package testutil holds helpers shared by package tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/db"
)

// SetupTestDB opens a private in-memory cache database with the current
// schema. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.InitDB(":memory:")
	require.NoError(t, err, "open in-memory cache")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "apply migrations")
	return database
}
