package service

import (
	"context"

	"chimera/internal/creature/models"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

// SetMergeFee replaces the merge fee. Administrators only.
func (s *Service) SetMergeFee(ctx context.Context, caller id.Address, fee id.Amount) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if err := store.SetMergeFee(ctx, fee); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update merge fee")
		}
		s.emit(ctx, events.TypeMergeFeeUpdated, models.MergeFeeUpdated{NewFee: fee})
		return nil
	})
	if err != nil {
		return coded(err, "failed to update merge fee")
	}
	s.logAudit(ctx, string(events.TypeMergeFeeUpdated),
		"merge_fee", uint64(fee),
		"admin", caller.String(),
	)
	if s.metrics != nil {
		s.metrics.SetMergeFee(uint64(fee))
	}
	return nil
}

// Withdraw pays the accumulated balance out to the calling administrator and
// returns the amount paid.
func (s *Service) Withdraw(ctx context.Context, caller id.Address) (id.Amount, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return 0, err
	}
	var amount id.Amount
	err := s.tx.RunInTx(ctx, func(_ Store) error {
		var err error
		amount, err = s.ledger.Withdraw(ctx, caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw balance")
		}
		s.emit(ctx, events.TypeBalanceWithdrawn, models.BalanceWithdrawn{To: caller, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, coded(err, "failed to withdraw balance")
	}
	s.logAudit(ctx, string(events.TypeBalanceWithdrawn),
		"amount", uint64(amount),
		"admin", caller.String(),
	)
	return amount, nil
}
