// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"database/sql"
	"time"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
)

// Store provides all functions to interact with the catalog cache database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock replaces the time source used for fetched_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// withTx runs fn inside a transaction. The transaction commits only if fn
// returns nil; otherwise every write made by fn is rolled back.
func (s *Store) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperr.WrapStorage(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return apperr.WrapStorage(op, err)
	}
	return apperr.WrapStorage(op, tx.Commit())
}
