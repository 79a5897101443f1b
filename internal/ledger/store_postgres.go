package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

// withdrawLockKey is the advisory lock that serializes payouts.
const withdrawLockKey int64 = 0x6c6564676572

const balanceQuery = `SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount ELSE -amount END), 0)::BIGINT
	FROM ledger_entries`

// PostgresStore books entries in the ledger_entries table through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (l *PostgresStore) Credit(ctx context.Context, account id.Address, amount id.Amount) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("credit %d: %w", uint64(amount), sentinel.ErrInvalidState)
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO ledger_entries (account, amount, kind) VALUES ($1, $2, $3)`,
		account.String(), int64(amount), string(KindCredit))
	if err != nil {
		return fmt.Errorf("credit ledger: %w", err)
	}
	return nil
}

func (l *PostgresStore) Reverse(ctx context.Context, account id.Address, amount id.Amount) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("reverse %d: %w", uint64(amount), sentinel.ErrInvalidState)
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO ledger_entries (account, amount, kind) VALUES ($1, $2, $3)`,
		account.String(), int64(amount), string(KindReversal))
	if err != nil {
		return fmt.Errorf("reverse ledger credit: %w", err)
	}
	return nil
}

func (l *PostgresStore) Balance(ctx context.Context) (id.Amount, error) {
	var balance int64
	if err := l.pool.QueryRow(ctx, balanceQuery).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read ledger balance: %w", err)
	}
	return id.Amount(balance), nil
}

// Withdraw books a payout of the whole balance under an advisory lock so two
// concurrent withdrawals cannot both pay the same funds.
func (l *PostgresStore) Withdraw(ctx context.Context, to id.Address) (id.Amount, error) {
	var amount int64
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, withdrawLockKey); err != nil {
			return fmt.Errorf("lock ledger: %w", err)
		}
		if err := tx.QueryRow(ctx, balanceQuery).Scan(&amount); err != nil {
			return fmt.Errorf("read ledger balance: %w", err)
		}
		if amount == 0 {
			return nil
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (account, amount, kind) VALUES ($1, $2, $3)`,
			to.String(), amount, string(KindWithdrawal))
		if err != nil {
			return fmt.Errorf("book withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id.Amount(amount), nil
}

// Entries returns every booked entry in insertion order.
func (l *PostgresStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT account, amount, kind, created_at FROM ledger_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e       Entry
			account string
			amount  int64
			kind    string
		)
		if err := row.Scan(&account, &amount, &kind, &e.CreatedAt); err != nil {
			return Entry{}, err
		}
		e.Account = id.Address(account)
		e.Amount = id.Amount(amount)
		e.Kind = Kind(kind)
		return e, nil
	})
}
