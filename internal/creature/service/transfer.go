package service

import (
	"context"

	"chimera/internal/creature/models"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

// Transfer hands a live record to a new holder. It runs inside the registry
// transaction so it cannot interleave with a merge of the same record.
func (s *Service) Transfer(ctx context.Context, req models.TransferRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := s.requireOwner(ctx, req.ID, req.Caller); err != nil {
			return err
		}
		if _, err := findLive(ctx, store, req.ID); err != nil {
			return err
		}
		if err := s.ownership.Transfer(ctx, req.ID, req.Caller, req.To); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer record")
		}
		s.emit(ctx, events.TypeRecordTransferred, models.RecordTransferred{
			ID:   req.ID,
			From: req.Caller,
			To:   req.To,
		})
		return nil
	})
	if err != nil {
		return coded(err, "failed to transfer record")
	}
	s.logAudit(ctx, string(events.TypeRecordTransferred),
		"record_id", req.ID.String(),
		"from", req.Caller.String(),
		"to", req.To.String(),
	)
	return nil
}
