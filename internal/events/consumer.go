package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SettledHandler receives each decoded BetSettled event.
type SettledHandler func(ctx context.Context, e BetSettled)

// SettledConsumer reads the bet_settled topic. The API process uses it to push
// settlements made by the back-office process to WebSocket clients.
type SettledConsumer struct {
	reader  messageReader
	handler SettledHandler
	log     *zap.Logger
}

// NewReader builds a group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// NewSettledConsumer creates a consumer over a Kafka group reader.
func NewSettledConsumer(brokers []string, topic, groupID string, handler SettledHandler, log *zap.Logger) *SettledConsumer {
	return newSettledConsumer(NewReader(brokers, topic, groupID), handler, log)
}

func newSettledConsumer(r messageReader, handler SettledHandler, log *zap.Logger) *SettledConsumer {
	return &SettledConsumer{reader: r, handler: handler, log: log.Named("settled_consumer")}
}

// Run consumes until ctx is cancelled or the reader fails. Undecodable
// messages are logged and committed so they do not block the partition.
func (c *SettledConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("events.SettledConsumer: fetch: %w", err)
		}

		var e BetSettled
		if err = json.Unmarshal(msg.Value, &e); err != nil {
			c.log.Warn("skipping malformed bet_settled message",
				zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			c.handler(ctx, e)
		}

		if err = c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("events.SettledConsumer: commit: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *SettledConsumer) Close() error {
	return c.reader.Close()
}
