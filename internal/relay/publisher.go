package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/core-banking/ledger/internal/domain/outbox"
	"github.com/core-banking/ledger/internal/domain/shared"
	"github.com/core-banking/ledger/internal/platform/messaging/producers"
)

// EventPublisher delivers one claimed outbox entry to the outside world
type EventPublisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) error
}

// publishRetries bounds the in-attempt retry of transient broker errors.
// Anything that still fails after these goes back to the outbox for a later
// claim; this only smooths over momentary broker hiccups.
const publishRetries = 3

// KafkaPublisher routes entries to the transaction or audit topic by kind,
// keyed by correlation id. Payloads that cannot be decoded are diverted to
// the dead letter queue instead of blocking the outbox.
type KafkaPublisher struct {
	producer producers.EventsPublisher
	dlq      producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewKafkaPublisher creates a publisher. dlq may be nil when the dead letter
// queue is disabled; undecodable payloads then stay in the outbox as failed.
func NewKafkaPublisher(logger *slog.Logger, producer producers.EventsPublisher, dlq producers.DeadLetterPublisher) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		dlq:      dlq,
		logger:   logger,
	}
}

// Publish delivers the entry to its topic. Transient broker errors are
// retried with exponential backoff before the error is surfaced.
func (p *KafkaPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	key := entry.CorrelationID.String()

	var publish func(ctx context.Context, key string, payload []byte) error
	switch entry.Kind {
	case shared.EventKindTransaction:
		if _, err := entry.TransactionEvent(); err != nil {
			return p.divertToDLQ(ctx, entry, fmt.Sprintf("undecodable transaction payload: %v", err))
		}
		publish = p.producer.PublishTransaction
	case shared.EventKindAudit:
		if _, err := entry.AuditEvent(); err != nil {
			return p.divertToDLQ(ctx, entry, fmt.Sprintf("undecodable audit payload: %v", err))
		}
		publish = p.producer.PublishAudit
	default:
		return p.divertToDLQ(ctx, entry, fmt.Sprintf("unknown event kind: %s", entry.Kind))
	}

	operation := func() error {
		return publish(ctx, key, entry.Payload)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), publishRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("failed to publish outbox entry %d: %w", entry.ID, err)
	}

	return nil
}

// divertToDLQ hands an undeliverable entry to the dead letter queue. A
// successful diversion counts as delivery; the entry carries a defect no
// retry can fix.
func (p *KafkaPublisher) divertToDLQ(ctx context.Context, entry *outbox.Entry, reason string) error {
	if p.dlq == nil {
		return fmt.Errorf("undeliverable outbox entry %d and no dead letter queue configured: %s", entry.ID, reason)
	}

	p.logger.Warn("Diverting undeliverable outbox entry to DLQ",
		"outbox_id", entry.ID,
		"correlation_id", entry.CorrelationID.String(),
		"reason", reason,
	)

	if err := p.dlq.PublishToDLQ(ctx, entry.CorrelationID.String(), entry.Payload, reason); err != nil {
		return fmt.Errorf("failed to divert outbox entry %d to DLQ: %w", entry.ID, err)
	}

	return nil
}
