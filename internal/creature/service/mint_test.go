package service_test

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"chimera/internal/creature/genesis"
	"chimera/internal/creature/models"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

func (s *ServiceSuite) TestMint() {
	ctx := context.Background()

	s.Run("stores generated attributes and assigns ownership", func() {
		s.expectTx()
		var emitted events.Event
		gomock.InOrder(
			s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(0), nil),
			s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(0), alice).Return(nil),
			s.mockLedger.EXPECT().Credit(gomock.Any(), bob, id.Amount(3)).Return(nil),
			s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, e events.Event) error {
					emitted = e
					return nil
				}),
		)

		record, err := s.service.Mint(ctx, models.MintRequest{To: alice, Payer: bob, Payment: 3})
		s.Require().NoError(err)
		s.Equal(id.RecordID(0), record.ID)
		s.Zero(record.MergeCount)
		s.Equal(genesis.Generate(fixedSeed, 0), record.Attributes)

		s.Equal(events.TypeRecordMinted, emitted.Type)
		var body models.RecordMinted
		s.Require().NoError(emitted.Decode(&body))
		s.Equal(alice, body.Owner)
	})

	s.Run("zero payment books nothing", func() {
		s.expectTx()
		s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(1), nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(1), alice).Return(nil)
		s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Mint(ctx, models.MintRequest{To: alice})
		s.Require().NoError(err)
	})

	s.Run("missing recipient is a validation error", func() {
		_, err := s.service.Mint(ctx, models.MintRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("failed booking burns the new record", func() {
		s.expectTx()
		s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(2), nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		gomock.InOrder(
			s.mockOwnership.EXPECT().Create(gomock.Any(), id.RecordID(2), alice).Return(nil),
			s.mockLedger.EXPECT().Credit(gomock.Any(), alice, id.Amount(1)).Return(errors.New("ledger down")),
			s.mockOwnership.EXPECT().Burn(gomock.Any(), id.RecordID(2)).Return(nil),
		)

		_, err := s.service.Mint(ctx, models.MintRequest{To: alice, Payment: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("store failure surfaces as internal", func() {
		s.expectTx()
		s.mockStore.EXPECT().NextID(gomock.Any()).Return(id.RecordID(0), errors.New("disk full"))

		_, err := s.service.Mint(ctx, models.MintRequest{To: alice})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
