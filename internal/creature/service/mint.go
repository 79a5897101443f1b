package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chimera/internal/creature/genesis"
	"chimera/internal/creature/models"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

// Mint allocates the next identifier, generates fresh attributes for it and
// hands ownership to req.To. The payment is booked as-is; minting has no
// minimum cost.
func (s *Service) Mint(ctx context.Context, req models.MintRequest) (*models.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "creature.Mint")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var minted *models.Record
	err := s.atomically(ctx, func(store Store, j *journal) error {
		recordID, err := store.NextID(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate record id")
		}
		record := models.NewMintedRecord(recordID, genesis.Generate(s.seed(ctx, recordID), recordID))
		if err := store.Save(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store record")
		}

		if err := s.ownership.Create(ctx, recordID, req.To); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign ownership")
		}
		j.record("burn minted record", func(ctx context.Context) error {
			return s.ownership.Burn(ctx, recordID)
		})

		if req.Payment > 0 {
			payer := req.PayingAccount()
			if err := s.ledger.Credit(ctx, payer, req.Payment); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to book payment")
			}
			j.record("reverse mint payment", func(ctx context.Context) error {
				return s.ledger.Reverse(ctx, payer, req.Payment)
			})
		}

		s.emit(ctx, events.TypeRecordMinted, models.RecordMinted{
			ID:         record.ID,
			Owner:      req.To,
			Attributes: record.Attributes,
		})
		minted = record
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mint failed")
		return nil, coded(err, "failed to mint record")
	}

	span.SetAttributes(attribute.Int64("record.id", int64(minted.ID)))
	s.logAudit(ctx, string(events.TypeRecordMinted),
		"record_id", minted.ID.String(),
		"owner", req.To.String(),
		"payment", uint64(req.Payment),
	)
	if s.metrics != nil {
		s.metrics.IncrementMinted()
		s.metrics.ObserveMint(start)
	}
	return minted, nil
}

// coded keeps coded errors and wraps anything else as internal.
func coded(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
