package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/lib/pq"

	"chimera/internal/creature/service"
	dErrors "chimera/pkg/domain-errors"
)

const pqUniqueViolation = "23505"

var postgresDialect = &dialect{
	findByID: `SELECT id, strength, speed, intelligence, rarity, visual, merge_count
		FROM creatures WHERE id = $1`,
	insert: `INSERT INTO creatures (id, strength, speed, intelligence, rarity, visual, merge_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	deleteByID:  `DELETE FROM creatures WHERE id = $1`,
	count:       `SELECT COUNT(*) FROM creatures`,
	lockState:   `SELECT next_id, merge_fee FROM registry_state WHERE singleton FOR UPDATE`,
	readState:   `SELECT next_id, merge_fee FROM registry_state WHERE singleton`,
	advanceID:   `UPDATE registry_state SET next_id = next_id + 1 WHERE singleton RETURNING next_id`,
	setMergeFee: `UPDATE registry_state SET merge_fee = $1 WHERE singleton`,
	isDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
	},
}

// PostgresStore persists creatures in PostgreSQL. Writers from any number of
// instances are serialized by the registry_state row lock.
type PostgresStore struct {
	sqlStore
	db *sql.DB
	mu sync.Mutex
}

// NewPostgres constructs a PostgreSQL-backed creature store. The schema is
// expected to be migrated already.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: sqlStore{q: db, d: postgresDialect}, db: db}
}

// RunInTx runs fn inside a database transaction that holds the registry lock.
// The process mutex keeps this instance's writers queued behind abort hooks,
// which run after a failed commit has already released the row lock.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scoped := &txStore{sqlStore: sqlStore{q: tx, d: s.d}}
	if err := scoped.lock(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock registry")
	}
	if err := fn(scoped); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		scoped.abort(ctx)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
