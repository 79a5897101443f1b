package store

import (
	"context"
	"sync"
	"time"

	"chimera/internal/creature/models"
	"chimera/internal/creature/service"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/sentinel"
)

// defaultTxTimeout bounds how long a transaction may wait for the writer lock
// when the caller set no deadline.
const defaultTxTimeout = 5 * time.Second

// InMemory keeps records in process memory. Transactions are serialized by a
// single writer lock and stage their writes until fn succeeds.
type InMemory struct {
	writer  chan struct{}
	timeout time.Duration

	mu       sync.RWMutex
	records  map[id.RecordID]*models.Record
	nextID   id.RecordID
	mergeFee id.Amount
}

type MemoryOption func(*InMemory)

// WithMergeFee sets the initial merge fee.
func WithMergeFee(fee id.Amount) MemoryOption {
	return func(s *InMemory) {
		s.mergeFee = fee
	}
}

func WithTxTimeout(timeout time.Duration) MemoryOption {
	return func(s *InMemory) {
		s.timeout = timeout
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		writer:  make(chan struct{}, 1),
		timeout: defaultTxTimeout,
		records: make(map[id.RecordID]*models.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, recordID)
	return nil
}

func (s *InMemory) NextID(_ context.Context) (id.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.nextID
	s.nextID++
	return next, nil
}

func (s *InMemory) MergeFee(_ context.Context) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergeFee, nil
}

func (s *InMemory) SetMergeFee(_ context.Context, fee id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeFee = fee
	return nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// RunInTx runs fn as the only writer. Writes made through the staged store
// become visible together when fn returns nil and are dropped otherwise.
func (s *InMemory) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: waiting for writer")
	}
	defer func() { <-s.writer }()

	staged := s.stage()
	if err := fn(staged); err != nil {
		return err
	}
	s.commit(staged)
	return nil
}

func (s *InMemory) stage() *stagedStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &stagedStore{
		base:     s,
		writes:   make(map[id.RecordID]*models.Record),
		deletes:  make(map[id.RecordID]struct{}),
		nextID:   s.nextID,
		mergeFee: s.mergeFee,
	}
}

func (s *InMemory) commit(staged *stagedStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for recordID := range staged.deletes {
		delete(s.records, recordID)
	}
	for recordID, record := range staged.writes {
		s.records[recordID] = record
	}
	s.nextID = staged.nextID
	s.mergeFee = staged.mergeFee
}

// stagedStore overlays uncommitted writes on the committed state. Only the
// transaction that owns it touches it, so it needs no lock of its own.
type stagedStore struct {
	base     *InMemory
	writes   map[id.RecordID]*models.Record
	deletes  map[id.RecordID]struct{}
	nextID   id.RecordID
	mergeFee id.Amount
}

func (t *stagedStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	if record, ok := t.writes[recordID]; ok {
		return record.Clone(), nil
	}
	if _, ok := t.deletes[recordID]; ok {
		return nil, sentinel.ErrNotFound
	}
	return t.base.FindByID(ctx, recordID)
}

func (t *stagedStore) Save(_ context.Context, record *models.Record) error {
	delete(t.deletes, record.ID)
	t.writes[record.ID] = record.Clone()
	return nil
}

func (t *stagedStore) Delete(ctx context.Context, recordID id.RecordID) error {
	if _, err := t.FindByID(ctx, recordID); err != nil {
		return err
	}
	delete(t.writes, recordID)
	t.deletes[recordID] = struct{}{}
	return nil
}

func (t *stagedStore) NextID(_ context.Context) (id.RecordID, error) {
	next := t.nextID
	t.nextID++
	return next, nil
}

func (t *stagedStore) MergeFee(_ context.Context) (id.Amount, error) {
	return t.mergeFee, nil
}

func (t *stagedStore) SetMergeFee(_ context.Context, fee id.Amount) error {
	t.mergeFee = fee
	return nil
}

func (t *stagedStore) Count(_ context.Context) (int, error) {
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	n := len(t.base.records)
	for recordID := range t.writes {
		if _, ok := t.base.records[recordID]; !ok {
			n++
		}
	}
	for recordID := range t.deletes {
		if _, ok := t.base.records[recordID]; ok {
			n--
		}
	}
	return n, nil
}
