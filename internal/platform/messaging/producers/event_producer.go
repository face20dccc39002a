package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/core-banking/ledger/internal/config"
)

// EventProducer writes ledger events to their topics. Messages are keyed by
// correlation id and partitioned by key hash so the two legs of a transfer
// land on the same partition in staging order.
type EventProducer struct {
	logger            *slog.Logger
	transactionWriter KafkaWriter
	auditWriter       KafkaWriter
	transactionTopic  string
	auditTopic        string
}

// NewEventProducer creates a producer for the transaction and audit topics,
// ensuring both exist.
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.TransactionTopic == "" {
		return nil, fmt.Errorf("kafka transaction topic is not configured")
	}
	if cfg.AuditTopic == "" {
		return nil, fmt.Errorf("kafka audit topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for event producer: %w", err)
	}
	defer conn.Close()

	for _, topic := range []string{cfg.TransactionTopic, cfg.AuditTopic} {
		if err := createKafkaTopicIfNotExists(conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
			return nil, fmt.Errorf("failed to ensure topic %s exists for event producer: %w", topic, err)
		}
	}

	return &EventProducer{
		logger:            logger,
		transactionWriter: newEventWriter(cfg, cfg.TransactionTopic, logger),
		auditWriter:       newEventWriter(cfg, cfg.AuditTopic, logger),
		transactionTopic:  cfg.TransactionTopic,
		auditTopic:        cfg.AuditTopic,
	}, nil
}

// newEventWriter builds a synchronous writer. Delivery must be confirmed
// before the relay marks an outbox entry delivered, so async is not an option
// here.
func newEventWriter(cfg *config.KafkaConfig, topic string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write event messages", "topic", topic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote event messages", "topic", topic, "count", len(messages))
			}
		},
	}
}

// PublishTransaction writes a transaction event payload keyed by correlation id
func (p *EventProducer) PublishTransaction(ctx context.Context, key string, payload []byte) error {
	return p.publish(ctx, p.transactionWriter, p.transactionTopic, key, payload)
}

// PublishAudit writes an audit event payload keyed by correlation id
func (p *EventProducer) PublishAudit(ctx context.Context, key string, payload []byte) error {
	return p.publish(ctx, p.auditWriter, p.auditTopic, key, payload)
}

func (p *EventProducer) publish(ctx context.Context, writer KafkaWriter, topic, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event via event producer",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s via event producer: %w", topic, err)
	}

	p.logger.Debug("Published event via event producer",
		"topic", topic,
		"key", key,
	)
	return nil
}

// Close closes both writers
func (p *EventProducer) Close() error {
	p.logger.Info("Closing event producer", "transaction_topic", p.transactionTopic, "audit_topic", p.auditTopic)
	if err := p.transactionWriter.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.transactionTopic, err)
	}
	if err := p.auditWriter.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.auditTopic, err)
	}
	return nil
}
