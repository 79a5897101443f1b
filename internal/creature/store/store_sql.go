package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chimera/internal/creature/models"
	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	findByID    string
	insert      string
	deleteByID  string
	count       string
	lockState   string
	readState   string
	advanceID   string
	setMergeFee string

	// isDuplicate reports whether err is a primary key violation.
	isDuplicate func(err error) bool
}

// sqlStore implements the registry store over any database/sql handle.
type sqlStore struct {
	q queryer
	d *dialect
}

// txStore is the store handed to RunInTx callbacks. Its abort hooks run when
// the commit fails after the callback succeeded.
type txStore struct {
	sqlStore
	hooks []func(ctx context.Context)
}

func (t *txStore) OnAbort(hook func(ctx context.Context)) {
	t.hooks = append(t.hooks, hook)
}

func (t *txStore) abort(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(t.hooks) - 1; i >= 0; i-- {
		t.hooks[i](ctx)
	}
	t.hooks = nil
}

func (s *sqlStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	var (
		record models.Record
		rawID  int64
	)
	err := s.q.QueryRowContext(ctx, s.d.findByID, int64(recordID)).Scan(
		&rawID,
		&record.Attributes.Strength,
		&record.Attributes.Speed,
		&record.Attributes.Intelligence,
		&record.Attributes.Rarity,
		&record.Attributes.Visual,
		&record.MergeCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find creature by id: %w", err)
	}
	record.ID = id.RecordID(rawID)
	return &record, nil
}

func (s *sqlStore) Save(ctx context.Context, record *models.Record) error {
	_, err := s.q.ExecContext(ctx, s.d.insert,
		int64(record.ID),
		int64(record.Attributes.Strength),
		int64(record.Attributes.Speed),
		int64(record.Attributes.Intelligence),
		int64(record.Attributes.Rarity),
		record.Attributes.Visual,
		int64(record.MergeCount),
	)
	if err != nil {
		if s.d.isDuplicate(err) {
			return fmt.Errorf("save creature %s: %w", record.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("save creature: %w", err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, recordID id.RecordID) error {
	res, err := s.q.ExecContext(ctx, s.d.deleteByID, int64(recordID))
	if err != nil {
		return fmt.Errorf("delete creature: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete creature rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *sqlStore) NextID(ctx context.Context) (id.RecordID, error) {
	var next int64
	if err := s.q.QueryRowContext(ctx, s.d.advanceID).Scan(&next); err != nil {
		return 0, fmt.Errorf("advance creature id: %w", err)
	}
	// advanceID returns the counter after the increment.
	return id.RecordID(next - 1), nil
}

func (s *sqlStore) MergeFee(ctx context.Context) (id.Amount, error) {
	var nextID, fee int64
	if err := s.q.QueryRowContext(ctx, s.d.readState).Scan(&nextID, &fee); err != nil {
		return 0, fmt.Errorf("read merge fee: %w", err)
	}
	return id.Amount(fee), nil
}

func (s *sqlStore) SetMergeFee(ctx context.Context, fee id.Amount) error {
	if fee > maxStorable {
		return fmt.Errorf("set merge fee: %d exceeds storable range", uint64(fee))
	}
	if _, err := s.q.ExecContext(ctx, s.d.setMergeFee, int64(fee)); err != nil {
		return fmt.Errorf("set merge fee: %w", err)
	}
	return nil
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, s.d.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count creatures: %w", err)
	}
	return n, nil
}

// lock takes the registry_state row lock for the rest of the transaction.
func (s *sqlStore) lock(ctx context.Context) error {
	if s.d.lockState == "" {
		return nil
	}
	var nextID, fee int64
	if err := s.q.QueryRowContext(ctx, s.d.lockState).Scan(&nextID, &fee); err != nil {
		return fmt.Errorf("lock registry state: %w", err)
	}
	return nil
}

// maxStorable is the largest amount a signed 64-bit column holds.
const maxStorable = id.Amount(1<<63 - 1)
