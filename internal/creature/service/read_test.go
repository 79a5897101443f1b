package service_test

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"chimera/internal/creature/models"
	"chimera/internal/creature/render"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/sentinel"
)

func (s *ServiceSuite) liveRecord() *models.Record {
	attrs := models.AttributeSet{Strength: 5, Speed: 6, Intelligence: 7, Rarity: 8}
	attrs.Visual = render.SVG(attrs, 2)
	return &models.Record{ID: 4, Attributes: attrs, MergeCount: 2}
}

func (s *ServiceSuite) TestMetadata() {
	ctx := context.Background()
	record := s.liveRecord()

	s.Run("renders and caches the document", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(4)).Return(record, nil).Times(2)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(4)).Return(alice, nil).Times(2)

		first, err := s.service.Metadata(ctx, 4)
		s.Require().NoError(err)
		second, err := s.service.Metadata(ctx, 4)
		s.Require().NoError(err)
		s.Equal(first, second)

		doc, err := render.DecodeMetadata(first)
		s.Require().NoError(err)
		s.Equal(record.Attributes.Visual, doc.Image)
		s.Equal(uint64(2), doc.Attributes[4].Value)

		s.Equal(float64(1), testutil.ToFloat64(s.metrics.MetadataCache.WithLabelValues("hit")))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.MetadataCache.WithLabelValues("miss")))
	})

	s.Run("retired record is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(9)).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Metadata(ctx, 9)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("record without a holder is not live", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(4)).Return(record, nil)
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(4)).Return(id.Address(""), sentinel.ErrNotFound)

		_, err := s.service.Metadata(ctx, 4)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestImage() {
	s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(4)).Return(s.liveRecord(), nil)
	s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(4)).Return(alice, nil)

	markup, err := s.service.Image(context.Background(), 4)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(markup), "<svg"))
	s.Contains(string(markup), "Merges: 2")
}

func (s *ServiceSuite) TestHoldings() {
	s.mockOwnership.EXPECT().Holdings(gomock.Any(), alice).Return([]id.RecordID{7, 2, 5}, nil)

	held, err := s.service.Holdings(context.Background(), alice)
	s.Require().NoError(err)
	s.Equal([]id.RecordID{2, 5, 7}, held)

	_, err = s.service.Holdings(context.Background(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestTransfer() {
	ctx := context.Background()

	s.Run("holder hands the record over", func() {
		s.expectTx()
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(4)).Return(alice, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.RecordID(4)).Return(s.liveRecord(), nil)
		s.mockOwnership.EXPECT().Transfer(gomock.Any(), id.RecordID(4), alice, bob).Return(nil)
		s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(s.service.Transfer(ctx, models.TransferRequest{ID: 4, Caller: alice, To: bob}))
	})

	s.Run("non-holder is rejected", func() {
		s.expectTx()
		s.mockOwnership.EXPECT().OwnerOf(gomock.Any(), id.RecordID(4)).Return(alice, nil)

		err := s.service.Transfer(ctx, models.TransferRequest{ID: 4, Caller: bob, To: bob})
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})
}
