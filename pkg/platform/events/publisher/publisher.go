// Package publisher emits registry events to a store, either synchronously
// or through a bounded buffer drained by a background worker.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chimera/pkg/platform/events"
	"chimera/pkg/platform/events/worker"
)

var (
	// ErrBufferFull is returned by an async publisher whose buffer is saturated.
	ErrBufferFull = errors.New("event buffer full")
	ErrClosed     = errors.New("publisher closed")
)

// Publisher writes events to a store.
type Publisher struct {
	store  events.Store
	logger *slog.Logger

	bufferSize int
	inbox      chan events.Event
	done       chan struct{}
	mu         sync.RWMutex
	closed     bool
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to buffered mode. Emit enqueues and
// returns; Close drains what is left.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan events.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logFailure)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logFailure(event, ErrBufferFull)
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context) ([]events.Event, error) {
	return p.store.List(ctx)
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() error {
	if p.inbox == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

func (p *Publisher) logFailure(event events.Event, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("event publication failed",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"error", err,
	)
}
