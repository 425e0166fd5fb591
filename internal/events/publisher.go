package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers ledger events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e BetPlaced) error
	PublishBetSettled(ctx context.Context, e BetSettled) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ──────────────────────────────────────────────────────────────────────────────
// Kafka
// ──────────────────────────────────────────────────────────────────────────────

// KafkaPublisher writes JSON events keyed by username, so every event of one
// user lands on the same partition in order.
type KafkaPublisher struct {
	placed  messageWriter
	settled messageWriter
}

// NewWriter returns a writer for one topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaPublisher creates a publisher with one writer per topic.
func NewKafkaPublisher(brokers []string, placedTopic, settledTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		placed:  NewWriter(brokers, placedTopic),
		settled: NewWriter(brokers, settledTopic),
	}
}

// PublishBetPlaced writes e to the bet-placed topic.
func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e BetPlaced) error {
	return writeJSON(ctx, p.placed, e.Username, e)
}

// PublishBetSettled writes e to the bet-settled topic.
func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e BetSettled) error {
	return writeJSON(ctx, p.settled, e.Username, e)
}

// Close flushes and closes both writers.
func (p *KafkaPublisher) Close() error {
	return errors.Join(p.placed.Close(), p.settled.Close())
}

func writeJSON(ctx context.Context, w messageWriter, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}
	if err = w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Nop
// ──────────────────────────────────────────────────────────────────────────────

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishBetPlaced(context.Context, BetPlaced) error   { return nil }
func (NopPublisher) PublishBetSettled(context.Context, BetSettled) error { return nil }
func (NopPublisher) Close() error                                        { return nil }

// New picks the Kafka publisher when brokers are configured.
func New(brokers []string, placedTopic, settledTopic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, placedTopic, settledTopic)
}
