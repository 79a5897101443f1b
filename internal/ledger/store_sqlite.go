package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

const sqliteBalanceQuery = `SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount ELSE -amount END), 0)
	FROM ledger_entries`

// SQLiteStore books entries in a SQLite database of its own. Withdrawals are
// serialized in process; SQLite allows one writer per file anyway.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite wraps a handle migrated with the ledger schema.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (l *SQLiteStore) Credit(ctx context.Context, account id.Address, amount id.Amount) error {
	return l.book(ctx, account, amount, KindCredit)
}

func (l *SQLiteStore) Reverse(ctx context.Context, account id.Address, amount id.Amount) error {
	return l.book(ctx, account, amount, KindReversal)
}

func (l *SQLiteStore) book(ctx context.Context, account id.Address, amount id.Amount, kind Kind) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%s %d: %w", kind, uint64(amount), sentinel.ErrInvalidState)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (account, amount, kind) VALUES (?, ?, ?)`,
		account.String(), int64(amount), string(kind))
	if err != nil {
		return fmt.Errorf("book %s: %w", kind, err)
	}
	return nil
}

func (l *SQLiteStore) Balance(ctx context.Context) (id.Amount, error) {
	var balance int64
	if err := l.db.QueryRowContext(ctx, sqliteBalanceQuery).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read ledger balance: %w", err)
	}
	return id.Amount(balance), nil
}

func (l *SQLiteStore) Withdraw(ctx context.Context, to id.Address) (id.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin withdrawal: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var amount int64
	if err := tx.QueryRowContext(ctx, sqliteBalanceQuery).Scan(&amount); err != nil {
		return 0, fmt.Errorf("read ledger balance: %w", err)
	}
	if amount == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (account, amount, kind) VALUES (?, ?, ?)`,
		to.String(), amount, string(KindWithdrawal)); err != nil {
		return 0, fmt.Errorf("book withdrawal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit withdrawal: %w", err)
	}
	return id.Amount(amount), nil
}

// Entries returns every booked entry in insertion order.
func (l *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT account, amount, kind, created_at FROM ledger_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			account   string
			amount    int64
			kind      string
			createdAt string
		)
		if err := rows.Scan(&account, &amount, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Account = id.Address(account)
		e.Amount = id.Amount(amount)
		e.Kind = Kind(kind)
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse ledger timestamp %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}
