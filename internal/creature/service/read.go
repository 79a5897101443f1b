package service

import (
	"context"
	"slices"

	"chimera/internal/creature/models"
	"chimera/internal/creature/render"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
)

// Creature is a live record together with its current holder.
type Creature struct {
	*models.Record
	Owner id.Address `json:"owner"`
}

// Record returns a live record. A record counts as live only when both the
// store and the ownership registry know it.
func (s *Service) Record(ctx context.Context, recordID id.RecordID) (*Creature, error) {
	record, err := findLive(ctx, s.store, recordID)
	if err != nil {
		return nil, err
	}
	owner, err := s.ownership.OwnerOf(ctx, recordID)
	if err != nil {
		return nil, ownerLookupError(err, recordID)
	}
	return &Creature{Record: record, Owner: owner}, nil
}

// Metadata returns the record's metadata document as a data URI. Documents
// are cached by id; records never change while live and ids are not reused.
func (s *Service) Metadata(ctx context.Context, recordID id.RecordID) (string, error) {
	creature, err := s.Record(ctx, recordID)
	if err != nil {
		return "", err
	}
	key := recordID.String()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.IncrementCacheHit()
			}
			return cached.(string), nil
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheMiss()
		}
	}

	uri, err := render.Metadata(creature.Record)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render metadata")
	}
	if s.cache != nil {
		s.cache.SetDefault(key, uri)
	}
	return uri, nil
}

// Image returns the raw SVG markup of a live record's cached visual.
func (s *Service) Image(ctx context.Context, recordID id.RecordID) ([]byte, error) {
	creature, err := s.Record(ctx, recordID)
	if err != nil {
		return nil, err
	}
	_, markup, err := render.DecodeDataURI(creature.Attributes.Visual)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored visual is corrupt")
	}
	return markup, nil
}

func (s *Service) MergeFee(ctx context.Context) (id.Amount, error) {
	fee, err := s.store.MergeFee(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read merge fee")
	}
	return fee, nil
}

// Balance reports the payments accumulated since the last withdrawal.
func (s *Service) Balance(ctx context.Context) (id.Amount, error) {
	balance, err := s.ledger.Balance(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}

// Count returns the number of live records.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count records")
	}
	return n, nil
}

func (s *Service) evict(recordIDs ...id.RecordID) {
	if s.cache == nil {
		return
	}
	for _, recordID := range recordIDs {
		s.cache.Delete(recordID.String())
	}
}

// Holdings lists the live records held by owner in ascending id order.
func (s *Service) Holdings(ctx context.Context, owner id.Address) ([]id.RecordID, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner address is required")
	}
	held, err := s.ownership.Holdings(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holdings")
	}
	slices.Sort(held)
	return held, nil
}
