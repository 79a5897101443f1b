package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"chimera/internal/creature/service"
	dErrors "chimera/pkg/domain-errors"
)

var sqliteDialect = &dialect{
	findByID: `SELECT id, strength, speed, intelligence, rarity, visual, merge_count
		FROM creatures WHERE id = ?`,
	insert: `INSERT INTO creatures (id, strength, speed, intelligence, rarity, visual, merge_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	deleteByID:  `DELETE FROM creatures WHERE id = ?`,
	count:       `SELECT COUNT(*) FROM creatures`,
	readState:   `SELECT next_id, merge_fee FROM registry_state WHERE singleton = 1`,
	advanceID:   `UPDATE registry_state SET next_id = next_id + 1 WHERE singleton = 1 RETURNING next_id`,
	setMergeFee: `UPDATE registry_state SET merge_fee = ? WHERE singleton = 1`,
	isDuplicate: func(err error) bool {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
		}
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// SQLiteStore persists creatures in a single SQLite file. SQLite has no row
// locks, so writers are serialized by a process mutex.
type SQLiteStore struct {
	sqlStore
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite wraps an open SQLite handle. The schema is expected to be
// migrated already.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlStore: sqlStore{q: db, d: sqliteDialect}, db: db}
}

// OpenSQLite opens the database file at path with the pure Go driver.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scoped := &txStore{sqlStore: sqlStore{q: tx, d: s.d}}
	if err := fn(scoped); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		scoped.abort(ctx)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
