// Package events carries registry notifications from services to sinks.
//
// Events are emitted in the same critical section as the operation that
// produced them, so their order matches the order operations were applied.
// Delivery is at-least-once: a sink may see an event again after a retry.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a notification.
type Type string

const (
	TypeRecordMinted      Type = "record_minted"
	TypeRecordsMerged     Type = "records_merged"
	TypeMergeFeeUpdated   Type = "merge_fee_updated"
	TypeBalanceWithdrawn  Type = "balance_withdrawn"
	TypeRecordTransferred Type = "record_transferred"
)

// StreamKey partitions every registry event onto one ordered stream.
const StreamKey = "chimera-registry"

// Event is the transport-agnostic envelope. Payload is the JSON encoding of
// the type-specific body.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds an envelope around payload.
func New(eventType Type, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Key:     StreamKey,
		Payload: body,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Store persists events in emission order.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Sink accepts events for delivery elsewhere.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Tee records every event in store and forwards it to each sink. A sink
// failure is returned after the event is already stored.
func Tee(store Store, sinks ...Sink) Store {
	return &tee{store: store, sinks: sinks}
}

type tee struct {
	store Store
	sinks []Sink
}

func (t *tee) Append(ctx context.Context, event Event) error {
	if err := t.store.Append(ctx, event); err != nil {
		return err
	}
	var errs []error
	for _, sink := range t.sinks {
		if err := sink.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *tee) List(ctx context.Context) ([]Event, error) {
	return t.store.List(ctx)
}
