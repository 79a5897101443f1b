package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chimera/internal/creature/genesis"
	"chimera/internal/creature/metrics"
	"chimera/internal/creature/models"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/events"
	"chimera/pkg/platform/sentinel"
	"chimera/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Store holds records and the registry scalars. Implementations return
// sentinel.ErrNotFound for unknown records.
type Store interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	Save(ctx context.Context, record *models.Record) error
	Delete(ctx context.Context, recordID id.RecordID) error
	// NextID returns the next unused identifier and advances the counter.
	NextID(ctx context.Context) (id.RecordID, error)
	MergeFee(ctx context.Context) (id.Amount, error)
	SetMergeFee(ctx context.Context, fee id.Amount) error
	Count(ctx context.Context) (int, error)
}

// StoreTx provides the registry's single-writer boundary. Store writes made
// through the callback's store are discarded when fn returns an error.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// AbortNotifier is implemented by transaction-scoped stores whose commit can
// fail after the callback returned nil. Registered hooks run, newest first,
// before the writer is released.
type AbortNotifier interface {
	OnAbort(hook func(ctx context.Context))
}

// Ownership tracks the current holder of each live record. OwnerOf returns
// sentinel.ErrNotFound for records that were never created or were burned.
type Ownership interface {
	OwnerOf(ctx context.Context, recordID id.RecordID) (id.Address, error)
	Create(ctx context.Context, recordID id.RecordID, owner id.Address) error
	Burn(ctx context.Context, recordID id.RecordID) error
	Transfer(ctx context.Context, recordID id.RecordID, from, to id.Address) error
	Holdings(ctx context.Context, owner id.Address) ([]id.RecordID, error)
}

// Ledger books payments and pays out the accumulated balance. Reverse books
// a counter-entry for a credit whose operation did not commit.
type Ledger interface {
	Credit(ctx context.Context, account id.Address, amount id.Amount) error
	Reverse(ctx context.Context, account id.Address, amount id.Amount) error
	Balance(ctx context.Context) (id.Amount, error)
	Withdraw(ctx context.Context, to id.Address) (id.Amount, error)
}

type AccessControl interface {
	IsAdmin(ctx context.Context, addr id.Address) (bool, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// SeedFunc supplies the generator seed for a new record.
type SeedFunc func(ctx context.Context, recordID id.RecordID) []byte

// ClockSeed seeds from the request time. It is predictable to anyone who
// knows roughly when a mint lands.
func ClockSeed(ctx context.Context, _ id.RecordID) []byte {
	return genesis.ClockSeed(requestcontext.Now(ctx))
}

const (
	defaultCacheTTL     = 10 * time.Minute
	defaultCacheCleanup = 15 * time.Minute
	tracerName          = "chimera/internal/creature/service"
)

// Service is the registry: it owns the record store and identifier counter
// and drives the generator, merge engine and renderers.
type Service struct {
	store     Store
	tx        StoreTx
	ownership Ownership
	ledger    Ledger

	access    AccessControl
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	seed      SeedFunc
	cache     *gocache.Cache
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithAccessControl installs the administrator check. Without one every
// administrative call fails Unauthorized.
func WithAccessControl(access AccessControl) Option {
	return func(s *Service) {
		s.access = access
	}
}

func WithSeedFunc(seed SeedFunc) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithMetadataCacheTTL sets how long rendered metadata documents are kept.
// A zero ttl disables the cache.
func WithMetadataCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. store serves reads outside a transaction; tx
// wraps every mutation.
func New(store Store, tx StoreTx, ownership Ownership, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        tx,
		ownership: ownership,
		ledger:    ledger,
		seed:      ClockSeed,
		cache:     gocache.New(defaultCacheTTL, defaultCacheCleanup),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireAdmin fails Unauthorized unless caller is an administrator.
func (s *Service) requireAdmin(ctx context.Context, caller id.Address) error {
	if caller.IsZero() || s.access == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "administrator privileges required")
	}
	ok, err := s.access.IsAdmin(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check administrator")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "administrator privileges required")
	}
	return nil
}

// findLive loads a record, translating a missing one to RecordNotFound.
func findLive(ctx context.Context, store Store, recordID id.RecordID) (*models.Record, error) {
	record, err := store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record "+recordID.String()+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

// requireOwner checks that caller currently holds recordID.
func (s *Service) requireOwner(ctx context.Context, recordID id.RecordID, caller id.Address) error {
	owner, err := s.ownership.OwnerOf(ctx, recordID)
	if err != nil {
		return ownerLookupError(err, recordID)
	}
	if owner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "caller does not hold record "+recordID.String())
	}
	return nil
}

// ownerLookupError maps an unknown or burned record to RecordNotFound.
func ownerLookupError(err error, recordID id.RecordID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "record "+recordID.String()+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner")
}

// emit publishes an event. Publication failures are logged; the operation
// that produced the event has already been applied.
func (s *Service) emit(ctx context.Context, eventType events.Type, payload any) {
	if s.publisher == nil {
		return
	}
	event, err := events.New(eventType, payload)
	if err == nil {
		event.RequestID = requestcontext.RequestID(ctx)
		event.Actor = requestcontext.Caller(ctx).String()
		err = s.publisher.Emit(ctx, event)
	}
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to publish registry event",
			"event_type", string(eventType),
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
