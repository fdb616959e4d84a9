package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/rs/zerolog/log"

	// Import the sqlite3 driver. The blank import is used because we only
	// need the driver to be registered with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/juanfuturochile/appstore.koplugin/migrations"
)

// SchemaVersion is the migration version this build expects. A cache
// stamped with any other version, or left dirty by a failed migration, is
// dropped and rebuilt: every row in it can be fetched again from the remote.
const SchemaVersion uint = 2

// InitDB opens a connection to the SQLite database at the specified path
// and ensures the connection is valid.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign key support: %w", err)
	}

	// Ping the database to verify the connection is alive.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func newMigrator(database *sql.DB) (*migrate.Migrate, error) {
	source, err := httpfs.New(http.FS(migrations.FS), ".")
	if err != nil {
		return nil, fmt.Errorf("could not create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create sqlite3 migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("httpfs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations brings the schema to SchemaVersion. There is no incremental
// upgrade path: an outdated schema is reset before migrating from scratch.
// The migrate instances are not closed because that would close database.
func RunMigrations(database *sql.DB) error {
	m, err := newMigrator(database)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("Creating catalog cache schema")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty || version != SchemaVersion:
		log.Warn().
			Uint("found", version).
			Bool("dirty", dirty).
			Uint("expected", SchemaVersion).
			Msg("Catalog cache schema is outdated, resetting")
		if err := ResetSchema(database); err != nil {
			return err
		}
		if m, err = newMigrator(database); err != nil {
			return err
		}
	default:
		return nil
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("an error occurred while applying migrations: %w", err)
	}

	log.Info().Uint("version", SchemaVersion).Msg("Migrations applied successfully")
	return nil
}

// ResetSchema drops every table, including the migration bookkeeping, and
// reclaims the freed space.
func ResetSchema(database *sql.DB) error {
	rows, err := database.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to list tables: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema reset: %w", err)
	}

	if _, err := database.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
