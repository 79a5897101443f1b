package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chimera/internal/creature/merge"
	"chimera/internal/creature/models"
	"chimera/internal/creature/render"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
)

// Merge retires req.ID1 and req.ID2 and stores their child, owned by the
// caller. Checks run in this order and all of them before any mutation:
// same record, fee, ownership of both parents, presence of both parents.
// A failure at any point leaves the registry as it was.
func (s *Service) Merge(ctx context.Context, req models.MergeRequest) (*models.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "creature.Merge")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("record.id1", int64(req.ID1)),
		attribute.Int64("record.id2", int64(req.ID2)),
	)

	if err := req.Validate(); err != nil {
		s.rejectMerge(err)
		return nil, err
	}

	var child *models.Record
	err := s.atomically(ctx, func(store Store, j *journal) error {
		fee, err := store.MergeFee(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read merge fee")
		}
		if req.Payment < fee {
			return dErrors.New(dErrors.CodeInsufficientFee,
				fmt.Sprintf("merge fee is %d, paid %d", uint64(fee), uint64(req.Payment)))
		}
		if err := s.requireOwner(ctx, req.ID1, req.Caller); err != nil {
			return err
		}
		if err := s.requireOwner(ctx, req.ID2, req.Caller); err != nil {
			return err
		}
		parent1, err := findLive(ctx, store, req.ID1)
		if err != nil {
			return err
		}
		parent2, err := findLive(ctx, store, req.ID2)
		if err != nil {
			return err
		}

		child, err = s.commitMerge(ctx, store, j, req, parent1, parent2)
		return err
	})
	if err != nil {
		s.rejectMerge(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return nil, coded(err, "failed to merge records")
	}

	s.evict(req.ID1, req.ID2)
	span.SetAttributes(attribute.Int64("record.new_id", int64(child.ID)))
	s.logAudit(ctx, string(events.TypeRecordsMerged),
		"record_id", child.ID.String(),
		"parent1", req.ID1.String(),
		"parent2", req.ID2.String(),
		"merge_count", child.MergeCount,
		"owner", req.Caller.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementMerged()
		s.metrics.ObserveMerge(start)
	}
	return child, nil
}

// commitMerge applies a validated merge. Every collaborator effect is
// journaled before the next step runs.
func (s *Service) commitMerge(ctx context.Context, store Store, j *journal, req models.MergeRequest, parent1, parent2 *models.Record) (*models.Record, error) {
	for _, parent := range []*models.Record{parent1, parent2} {
		parentID := parent.ID
		if err := s.ownership.Burn(ctx, parentID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn record "+parentID.String())
		}
		j.record("restore burned parent", func(ctx context.Context) error {
			return s.ownership.Create(ctx, parentID, req.Caller)
		})
		if err := store.Delete(ctx, parentID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to retire record "+parentID.String())
		}
	}

	newID, err := store.NextID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate record id")
	}
	mergeCount := models.ChildMergeCount(parent1, parent2)
	attrs := merge.CombineSets(parent1.Attributes, parent2.Attributes)
	attrs.Visual = render.SVG(attrs, mergeCount)
	child := models.NewMergedRecord(newID, attrs, parent1, parent2)
	if err := store.Save(ctx, child); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store merged record")
	}

	if err := s.ownership.Create(ctx, newID, req.Caller); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign ownership")
	}
	j.record("burn merged record", func(ctx context.Context) error {
		return s.ownership.Burn(ctx, newID)
	})

	if req.Payment > 0 {
		if err := s.ledger.Credit(ctx, req.Caller, req.Payment); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to book merge fee")
		}
		j.record("reverse merge fee", func(ctx context.Context) error {
			return s.ledger.Reverse(ctx, req.Caller, req.Payment)
		})
	}

	s.emit(ctx, events.TypeRecordsMerged, models.RecordsMerged{
		NewID:      child.ID,
		ID1:        parent1.ID,
		ID2:        parent2.ID,
		Attributes: child.Attributes,
		MergeCount: child.MergeCount,
	})
	return child, nil
}

func (s *Service) rejectMerge(err error) {
	if s.metrics == nil {
		return
	}
	if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
		s.metrics.IncrementMergeRejected(string(code))
	}
}
