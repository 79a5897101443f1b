package service

import (
	"context"
	"errors"
	"log/slog"

	"chimera/internal/creature/metrics"
)

// journal records how to undo collaborator side effects that a store
// rollback cannot reach. Steps are undone in reverse order.
type journal struct {
	steps []journalStep
}

type journalStep struct {
	name string
	undo func(ctx context.Context) error
}

func (j *journal) record(name string, undo func(ctx context.Context) error) {
	j.steps = append(j.steps, journalStep{name: name, undo: undo})
}

// unwind runs every recorded undo even if some fail, and returns the joined
// failures. It ignores cancellation of ctx.
func (j *journal) unwind(ctx context.Context, logger *slog.Logger, m *metrics.Metrics) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		step := j.steps[i]
		err := step.undo(ctx)
		if m != nil {
			if err != nil {
				m.IncrementCompensation("failed")
			} else {
				m.IncrementCompensation("applied")
			}
		}
		if err != nil {
			errs = append(errs, err)
			if logger != nil {
				logger.ErrorContext(ctx, "compensation failed",
					"step", step.name,
					"error", err,
				)
			}
		}
	}
	j.steps = nil
	return errors.Join(errs...)
}

// atomically runs fn inside the registry transaction with a fresh journal.
// A failing fn is compensated before the transaction returns, and so is a
// failed commit when the store supports abort hooks. Either way no other
// writer observes the partial effects.
func (s *Service) atomically(ctx context.Context, fn func(store Store, j *journal) error) error {
	var j journal
	err := s.tx.RunInTx(ctx, func(store Store) error {
		if hooks, ok := store.(AbortNotifier); ok {
			hooks.OnAbort(func(ctx context.Context) { s.rollback(ctx, &j) })
		}
		if err := fn(store, &j); err != nil {
			s.rollback(ctx, &j)
			return err
		}
		return nil
	})
	if err != nil {
		// stores without abort hooks; a no-op once the journal is unwound
		s.rollback(ctx, &j)
	}
	return err
}

// rollback undoes journaled collaborator effects after a failed operation.
func (s *Service) rollback(ctx context.Context, j *journal) {
	if len(j.steps) == 0 {
		return
	}
	if err := j.unwind(ctx, s.logger, s.metrics); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "registry left partially compensated", "error", err)
	}
}
