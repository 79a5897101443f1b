package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"chimera/internal/creature/service"
	"chimera/internal/platform/migrate"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/sentinel"
)

type SQLiteStoreSuite struct {
	suite.Suite
	store *SQLiteStore
	ctx   context.Context
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	db, err := OpenSQLite(filepath.Join(s.T().TempDir(), "creatures.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.Require().NoError(migrate.Up(db, migrate.SQLite))
	s.store = NewSQLite(db)
	s.ctx = context.Background()
}

func (s *SQLiteStoreSuite) TestRoundTrip() {
	record := newRecord(3, 88)
	record.MergeCount = 4
	record.Attributes.Rarity = 103
	s.Require().NoError(s.store.Save(s.ctx, record))

	found, err := s.store.FindByID(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(record, found)

	s.Run("duplicate id conflicts", func() {
		err := s.store.Save(s.ctx, record)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, 4)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.Delete(s.ctx, 4), sentinel.ErrNotFound)
	})

	s.Run("count tracks live records", func() {
		s.Require().NoError(s.store.Save(s.ctx, newRecord(1, 5)))
		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, n)
	})
}

func (s *SQLiteStoreSuite) TestCounterAndFee() {
	first, err := s.store.NextID(s.ctx)
	s.Require().NoError(err)
	second, err := s.store.NextID(s.ctx)
	s.Require().NoError(err)
	s.Equal(id.RecordID(0), first)
	s.Equal(id.RecordID(1), second)

	s.Require().NoError(s.store.SetMergeFee(s.ctx, 500))
	fee, err := s.store.MergeFee(s.ctx)
	s.Require().NoError(err)
	s.Equal(id.Amount(500), fee)
}

func (s *SQLiteStoreSuite) TestRollbackDiscardsWrites() {
	s.Require().NoError(s.store.Save(s.ctx, newRecord(0, 1)))
	boom := errors.New("late failure")

	err := s.store.RunInTx(s.ctx, func(tx service.Store) error {
		s.Require().NoError(tx.Delete(s.ctx, 0))
		next, err := tx.NextID(s.ctx)
		s.Require().NoError(err)
		s.Require().NoError(tx.Save(s.ctx, newRecord(next+10, 2)))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindByID(s.ctx, 0)
	s.NoError(err)
	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
	next, err := s.store.NextID(s.ctx)
	s.Require().NoError(err)
	s.Equal(id.RecordID(0), next)
}

func (s *SQLiteStoreSuite) TestCommitAppliesWrites() {
	err := s.store.RunInTx(s.ctx, func(tx service.Store) error {
		next, err := tx.NextID(s.ctx)
		if err != nil {
			return err
		}
		return tx.Save(s.ctx, newRecord(next, 9))
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(uint64(9), found.Attributes.Strength)
}

func (s *SQLiteStoreSuite) TestAbortHooksRunOnlyWhenCommitFails() {
	var fired []string
	hook := func(name string) func(context.Context) {
		return func(context.Context) { fired = append(fired, name) }
	}

	s.Run("successful commit", func() {
		fired = nil
		err := s.store.RunInTx(s.ctx, func(tx service.Store) error {
			tx.(service.AbortNotifier).OnAbort(hook("unused"))
			return nil
		})
		s.Require().NoError(err)
		s.Empty(fired)
	})

	s.Run("callback error leaves compensation to the caller", func() {
		fired = nil
		err := s.store.RunInTx(s.ctx, func(tx service.Store) error {
			tx.(service.AbortNotifier).OnAbort(hook("unused"))
			return errors.New("rejected")
		})
		s.Require().Error(err)
		s.Empty(fired)
	})

	s.Run("failed commit runs hooks newest first", func() {
		// a deferred foreign key violation only surfaces at COMMIT
		_, err := s.store.db.ExecContext(s.ctx, `CREATE TABLE owners_ref (id INTEGER PRIMARY KEY)`)
		s.Require().NoError(err)
		_, err = s.store.db.ExecContext(s.ctx, `CREATE TABLE dangling (
			ref INTEGER REFERENCES owners_ref(id) DEFERRABLE INITIALLY DEFERRED)`)
		s.Require().NoError(err)

		fired = nil
		err = s.store.RunInTx(s.ctx, func(tx service.Store) error {
			notifier := tx.(service.AbortNotifier)
			notifier.OnAbort(hook("first"))
			notifier.OnAbort(hook("second"))
			_, err := tx.(*txStore).q.ExecContext(s.ctx, `INSERT INTO dangling (ref) VALUES (42)`)
			return err
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal([]string{"second", "first"}, fired)
	})
}
