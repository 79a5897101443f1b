package ownership

import (
	"context"
	"sync"

	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

// InMemory keeps holders in process memory.
type InMemory struct {
	mu     sync.RWMutex
	owners map[id.RecordID]id.Address
}

func NewInMemory() *InMemory {
	return &InMemory{owners: make(map[id.RecordID]id.Address)}
}

func (s *InMemory) OwnerOf(_ context.Context, recordID id.RecordID) (id.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[recordID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

func (s *InMemory) Create(_ context.Context, recordID id.RecordID, owner id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[recordID]; exists {
		return sentinel.ErrConflict
	}
	s.owners[recordID] = owner
	return nil
}

func (s *InMemory) Burn(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.owners, recordID)
	return nil
}

func (s *InMemory) Transfer(_ context.Context, recordID id.RecordID, from, to id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner != from {
		return sentinel.ErrInvalidState
	}
	s.owners[recordID] = to
	return nil
}

// Holdings returns the ids held by owner, in no particular order.
func (s *InMemory) Holdings(_ context.Context, owner id.Address) ([]id.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.RecordID
	for recordID, holder := range s.owners {
		if holder == owner {
			out = append(out, recordID)
		}
	}
	return out, nil
}
