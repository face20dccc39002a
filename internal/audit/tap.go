// Package audit consumes the delivered event stream. Transaction events are
// surfaced as structured log lines for diagnostics; audit events are
// additionally archived for later inspection.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/core-banking/ledger/internal/domain/shared"
)

// Archive persists delivered audit events
type Archive interface {
	Archive(ctx context.Context, event *shared.AuditEvent) error
}

// Tap handles messages from the transaction and audit topics
type Tap struct {
	logger  *slog.Logger
	archive Archive
}

// NewTap creates a new event tap. archive may be nil; audit events are then
// only logged.
func NewTap(logger *slog.Logger, archive Archive) *Tap {
	return &Tap{
		logger:  logger,
		archive: archive,
	}
}

// HandleTransaction logs a delivered transaction event
func (t *Tap) HandleTransaction(ctx context.Context, key []byte, value []byte) error {
	var event shared.TransactionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to decode transaction event: %w", err)
	}

	t.logger.With("correlation_id", string(key)).Info("Transaction event delivered",
		"transaction_ref", event.TransactionRef.String(),
		"account_number", event.AccountNumber,
		"kind", string(event.Kind),
		"amount", event.Amount.StringFixed(2),
		"currency", event.Currency,
	)
	return nil
}

// HandleAudit logs a delivered audit event and archives it when an archive
// is configured. Returning an error leaves the offset uncommitted so the
// event is reprocessed; the archive upserts, so replays are harmless.
func (t *Tap) HandleAudit(ctx context.Context, key []byte, value []byte) error {
	var event shared.AuditEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to decode audit event: %w", err)
	}

	t.logger.With("correlation_id", string(key)).Info("Audit event delivered",
		"action", string(event.Action),
		"entity_type", event.EntityType,
		"entity_id", event.EntityID.String(),
		"message", event.Message,
	)

	if t.archive == nil {
		return nil
	}
	return t.archive.Archive(ctx, &event)
}
