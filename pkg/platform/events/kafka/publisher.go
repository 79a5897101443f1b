// Package kafka forwards registry events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"chimera/pkg/platform/circuit"
	"chimera/pkg/platform/events"
)

// ErrCircuitOpen is returned by Append while the broker is considered down.
var ErrCircuitOpen = errors.New("kafka: circuit open")

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"
)

// Publisher produces events onto a single topic keyed by the event stream
// key, so one partition carries the registry's total order.
type Publisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	breaker *circuit.Breaker
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithBreaker fails Append fast while b is open instead of waiting on an
// unreachable broker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func NewPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no seed brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	p := &Publisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the topic with a single partition if it is missing.
func (p *Publisher) EnsureTopic(ctx context.Context, replicationFactor int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopic(ctx, 1, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Append produces the event synchronously and returns once all in-sync
// replicas have acknowledged it.
func (p *Publisher) Append(ctx context.Context, event events.Event) error {
	if p.breaker != nil && !p.breaker.Allow() {
		return fmt.Errorf("kafka: produce event %s: %w", event.ID, ErrCircuitOpen)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event %s: %w", event.ID, err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerEventID, Value: []byte(event.ID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.recordFailure(ctx)
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "kafka produce failed",
				"topic", p.topic,
				"event_id", event.ID,
				"event_type", string(event.Type),
				"error", err,
			)
		}
		return fmt.Errorf("kafka: produce event %s: %w", event.ID, err)
	}
	p.recordSuccess(ctx)
	return nil
}

func (p *Publisher) recordFailure(ctx context.Context) {
	if p.breaker == nil {
		return
	}
	if _, change := p.breaker.RecordFailure(); change.Opened && p.logger != nil {
		p.logger.WarnContext(ctx, "kafka circuit opened", "breaker", p.breaker.Name(), "topic", p.topic)
	}
}

func (p *Publisher) recordSuccess(ctx context.Context) {
	if p.breaker == nil {
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed && p.logger != nil {
		p.logger.InfoContext(ctx, "kafka circuit closed", "breaker", p.breaker.Name(), "topic", p.topic)
	}
}

// Ping checks broker connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
}

// DecodeRecord turns a consumed record back into an event.
func DecodeRecord(record *kgo.Record) (events.Event, error) {
	var event events.Event
	if err := json.Unmarshal(record.Value, &event); err != nil {
		return events.Event{}, fmt.Errorf("kafka: decode record at offset %d: %w", record.Offset, err)
	}
	return event, nil
}
