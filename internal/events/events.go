// Package events publishes completed circulation transactions to Kafka.
// Publishing is best effort and never blocks a wire response: the dispatcher
// drops events into an inbox channel and a worker drains it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kind labels a circulation transaction.
type Kind string

const (
	KindCheckin  Kind = "checkin"
	KindCheckout Kind = "checkout"
	KindRenew    Kind = "renew"
	KindFeePaid  Kind = "fee-paid"
)

// Event is one completed circulation transaction.
type Event struct {
	Kind             Kind      `json:"kind"`
	InstitutionID    string    `json:"institutionId"`
	PatronIdentifier string    `json:"patronIdentifier,omitempty"`
	ItemIdentifier   string    `json:"itemIdentifier,omitempty"`
	OK               bool      `json:"ok"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// Publisher hands a transaction event to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher produces events to one topic, keyed by institution so one
// institution's transactions stay ordered.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{
		client: client,
		topic:  topic,
		log:    log.With().Str("component", "events").Logger(),
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Key:   []byte(event.InstitutionID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn().Err(err).Str("kind", string(event.Kind)).
				Msg("event publish failed")
		}
	})
	return nil
}

// Close flushes outstanding records.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
