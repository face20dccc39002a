package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventsPublisher handles publishing confirmed ledger events to their topics
type EventsPublisher interface {
	PublishTransaction(ctx context.Context, key string, payload []byte) error
	PublishAudit(ctx context.Context, key string, payload []byte) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
