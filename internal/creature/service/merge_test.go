package service_test

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"chimera/internal/creature/merge"
	"chimera/internal/creature/models"
	"chimera/internal/creature/render"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
	"chimera/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestMerge_Preconditions() {
	ctx := context.Background()

	s.Run("same record fails before fee or ownership are read", func() {
		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 4, ID2: 4, Caller: bob, Payment: 0})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSameRecord))
	})

	s.Run("missing caller is unauthorized", func() {
		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("payment below fee fails before ownership is read", func() {
		s.expectTx()
		s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(id.Amount(10), nil)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice, Payment: 9})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFee))
	})

	s.Run("caller not holding the first record", func() {
		s.expectTx()
		s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(id.Amount(10), nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(1)).Return(bob, nil)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice, Payment: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("caller not holding the second record", func() {
		s.expectTx()
		s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(id.Amount(0), nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(1)).Return(alice, nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(2)).Return(bob, nil)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("burned record is not found", func() {
		s.expectTx()
		s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(id.Amount(0), nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(1)).Return(id.Address(""), sentinel.ErrNotFound)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("record missing from the store is not found", func() {
		s.expectTx()
		s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(id.Amount(0), nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), gomock.Any()).Return(alice, nil).Times(2)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(1)).Return(parent(1, 50, 0), nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(2)).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MergeRejected.WithLabelValues(string(dErrors.CodeSameRecord))))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.MergeRejected.WithLabelValues(string(dErrors.CodeNotOwner))))
}

// expectValidMerge sets up a merge of records 1 and 2 held by alice that
// passes every check.
func (s *ServiceSuite) expectValidMerge(p1, p2 *models.Record, fee id.Amount) {
	s.expectTx()
	s.mockStore.EXPECT().MergeFee(gomock.Any()).Return(fee, nil)
	s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), p1.ID).Return(alice, nil)
	s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), p2.ID).Return(alice, nil)
	s.mockStore.EXPECT().FindByID(gomock.Any(), p1.ID).Return(p1, nil)
	s.mockStore.EXPECT().FindByID(gomock.Any(), p2.ID).Return(p2, nil)
}

func (s *ServiceSuite) TestMerge_Success() {
	ctx := context.Background()
	p1, p2 := parent(1, 80, 2), parent(2, 50, 3)
	s.expectValidMerge(p1, p2, 5)

	var saved *models.Record
	var emitted events.Event
	gomock.InOrder(
		s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(1)).Return(nil),
		s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(1)).Return(nil),
		s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(2)).Return(nil),
		s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(2)).Return(nil),
		s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(9), nil),
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r *models.Record) error {
				saved = r
				return nil
			}),
		s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(9), alice).Return(nil),
		s.mockLedger.EXPECT().Credit(gomock.Any(), alice, id.Amount(7)).Return(nil),
		s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				emitted = e
				return nil
			}),
	)

	child, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice, Payment: 7})
	s.Require().NoError(err)

	s.Equal(id.RecordID(9), child.ID)
	s.Equal(uint64(6), child.MergeCount)
	s.Equal(uint64(71), child.Attributes.Strength)
	s.Equal(merge.Combine(10, 10), child.Attributes.Speed)
	s.Equal(render.SVG(child.Attributes, 6), child.Attributes.Visual)
	s.Equal(child, saved)

	s.Equal(events.TypeRecordsMerged, emitted.Type)
	var body models.RecordsMerged
	s.Require().NoError(emitted.Decode(&body))
	s.Equal(models.RecordsMerged{NewID: 9, ID1: 1, ID2: 2, Attributes: child.Attributes, MergeCount: 6}, body)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.RecordsMerged))
}

func (s *ServiceSuite) TestMerge_ZeroPaymentSkipsLedger() {
	p1, p2 := parent(1, 1, 0), parent(2, 1, 0)
	s.expectValidMerge(p1, p2, 0)
	s.mockOwnership.EXPECT().Burn(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mockStore.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(3), nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(3), alice).Return(nil)
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Merge(context.Background(), models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestMerge_CompensatesCollaborators() {
	ctx := context.Background()
	boom := errors.New("backend unavailable")

	s.Run("ownership of the child fails: parents are restored newest first", func() {
		p1, p2 := parent(1, 1, 0), parent(2, 1, 0)
		s.expectValidMerge(p1, p2, 0)
		gomock.InOrder(
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(2)).Return(nil),
			s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(2)).Return(nil),
			s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(3), nil),
			s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(3), alice).Return(boom),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(2), alice).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(1), alice).Return(nil),
		)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, boom)
	})

	s.Run("payment booking fails: child is burned and parents restored", func() {
		p1, p2 := parent(1, 1, 0), parent(2, 1, 0)
		s.expectValidMerge(p1, p2, 1)
		gomock.InOrder(
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(2)).Return(nil),
			s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(2)).Return(nil),
			s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(3), nil),
			s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(3), alice).Return(nil),
			s.mockLedger.EXPECT().Credit(gomock.Any(), alice, id.Amount(1)).Return(boom),
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(3)).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(2), alice).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(1), alice).Return(nil),
		)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice, Payment: 1})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("second burn fails: only the first parent is restored", func() {
		p1, p2 := parent(1, 1, 0), parent(2, 1, 0)
		s.expectValidMerge(p1, p2, 0)
		gomock.InOrder(
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockStore.EXPECT().Delete(gomock.Any(), id.RecordID(1)).Return(nil),
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(2)).Return(boom),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(1), alice).Return(nil),
		)

		_, err := s.service.Merge(ctx, models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
		s.Require().Error(err)
	})

	s.Equal(float64(6), testutil.ToFloat64(s.metrics.Compensations.WithLabelValues("applied")))
}

func (s *ServiceSuite) TestMerge_PublishFailureDoesNotFailMerge() {
	p1, p2 := parent(1, 1, 0), parent(2, 1, 0)
	s.expectValidMerge(p1, p2, 0)
	s.mockOwnership.EXPECT().Burn(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mockStore.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(3), nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(3), alice).Return(nil)
	s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	child, err := s.service.Merge(context.Background(), models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
	s.Require().NoError(err)
	s.Equal(id.RecordID(3), child.ID)
}

func (s *ServiceSuite) TestMerge_TransactionTimeout() {
	s.mockTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		Return(dErrors.Wrap(context.DeadlineExceeded, dErrors.CodeTimeout, "transaction aborted"))

	_, err := s.service.Merge(context.Background(), models.MergeRequest{ID1: 1, ID2: 2, Caller: alice})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
