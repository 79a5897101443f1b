package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"chimera/internal/platform/migrate"
	id "chimera/pkg/domain"
)

type SQLiteLedgerSuite struct {
	suite.Suite
	db     *sql.DB
	ledger *SQLiteStore
}

func TestSQLiteLedgerSuite(t *testing.T) {
	suite.Run(t, new(SQLiteLedgerSuite))
}

func (s *SQLiteLedgerSuite) SetupTest() {
	db, err := sql.Open("sqlite", filepath.Join(s.T().TempDir(), "ledger.db")+"?_pragma=busy_timeout(5000)")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.Require().NoError(migrate.Up(db, migrate.SQLiteLedger))
	s.db = db
	s.ledger = NewSQLite(db)
}

func (s *SQLiteLedgerSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *SQLiteLedgerSuite) TestCreditReverseWithdraw() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Credit(ctx, payer, 7))
	s.Require().NoError(s.ledger.Credit(ctx, payer, 8))
	s.Require().NoError(s.ledger.Reverse(ctx, payer, 8))

	balance, err := s.ledger.Balance(ctx)
	s.Require().NoError(err)
	s.Equal(id.Amount(7), balance)

	paid, err := s.ledger.Withdraw(ctx, admin)
	s.Require().NoError(err)
	s.Equal(id.Amount(7), paid)

	entries, err := s.ledger.Entries(ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	s.Equal([]Kind{KindCredit, KindCredit, KindReversal, KindWithdrawal},
		[]Kind{entries[0].Kind, entries[1].Kind, entries[2].Kind, entries[3].Kind})
	s.Equal(admin, entries[3].Account)
	s.False(entries[0].CreatedAt.IsZero())
	s.Zero(balanceOf(entries))
}

func (s *SQLiteLedgerSuite) TestEmptyWithdrawBooksNothing() {
	ctx := context.Background()
	paid, err := s.ledger.Withdraw(ctx, admin)
	s.Require().NoError(err)
	s.Zero(paid)

	entries, err := s.ledger.Entries(ctx)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *SQLiteLedgerSuite) TestBalanceSurvivesReopen() {
	ctx := context.Background()
	path := filepath.Join(s.T().TempDir(), "durable.db")

	first, err := sql.Open("sqlite", path)
	s.Require().NoError(err)
	s.Require().NoError(migrate.Up(first, migrate.SQLiteLedger))
	s.Require().NoError(NewSQLite(first).Credit(ctx, payer, 21))
	s.Require().NoError(first.Close())

	second, err := sql.Open("sqlite", path)
	s.Require().NoError(err)
	defer second.Close()
	s.Require().NoError(migrate.Up(second, migrate.SQLiteLedger))
	balance, err := NewSQLite(second).Balance(ctx)
	s.Require().NoError(err)
	s.Equal(id.Amount(21), balance)
}

func (s *SQLiteLedgerSuite) TestConcurrentWithdrawalsPayOnce() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Credit(ctx, payer, 40))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total id.Amount
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paid, err := s.ledger.Withdraw(ctx, admin)
			s.NoError(err)
			mu.Lock()
			total += paid
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(id.Amount(40), total)
}
