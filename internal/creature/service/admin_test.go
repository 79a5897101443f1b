package service_test

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"chimera/internal/creature/models"
	"chimera/internal/creature/service"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

func (s *ServiceSuite) TestSetMergeFee() {
	ctx := context.Background()

	s.Run("non-admin is unauthorized", func() {
		s.mockAccess.EXPECT().IsAdmin(gomock.Any(), alice).Return(false, nil)

		err := s.service.SetMergeFee(ctx, alice, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("anonymous caller is unauthorized", func() {
		err := s.service.SetMergeFee(ctx, "", 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin updates the fee and announces it", func() {
		s.mockAccess.EXPECT().IsAdmin(gomock.Any(), admin).Return(true, nil)
		s.expectTx()
		var emitted events.Event
		gomock.InOrder(
			s.mockStore.EXPECT().SetMergeFee(gomock.Any(), id.Amount(25)).Return(nil),
			s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, e events.Event) error {
					emitted = e
					return nil
				}),
		)

		s.Require().NoError(s.service.SetMergeFee(ctx, admin, 25))

		s.Equal(events.TypeMergeFeeUpdated, emitted.Type)
		var body models.MergeFeeUpdated
		s.Require().NoError(emitted.Decode(&body))
		s.Equal(id.Amount(25), body.NewFee)
		s.Equal(float64(25), testutil.ToFloat64(s.metrics.MergeFeeCurrent))
	})
}

func (s *ServiceSuite) TestWithdraw() {
	ctx := context.Background()

	s.Run("non-admin is unauthorized", func() {
		s.mockAccess.EXPECT().IsAdmin(gomock.Any(), bob).Return(false, nil)

		_, err := s.service.Withdraw(ctx, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin drains the balance", func() {
		s.mockAccess.EXPECT().IsAdmin(gomock.Any(), admin).Return(true, nil)
		s.expectTx()
		s.mockLedger.EXPECT().Withdraw(gomock.Any(), admin).Return(id.Amount(40), nil)
		s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		amount, err := s.service.Withdraw(ctx, admin)
		s.Require().NoError(err)
		s.Equal(id.Amount(40), amount)
	})
}

func (s *ServiceSuite) TestAdminWithoutAccessControl() {
	svc := service.New(s.mockStore, s.mockTx, s.mockOwnership, s.mockLedger)

	err := svc.SetMergeFee(context.Background(), admin, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
