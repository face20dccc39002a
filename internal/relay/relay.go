// Package relay drains the outbox: it claims staged entries in creation
// order, hands them to a publisher, and records the outcome. Entries are
// never dropped; after the attempt budget they stay flagged for review.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/domain/outbox"
)

// Relay polls the outbox and delivers claimed entries
type Relay struct {
	outboxRepo   outbox.Repository
	publisher    EventPublisher
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

// NewRelay creates a new outbox relay
func NewRelay(
	logger *slog.Logger,
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
) *Relay {
	return &Relay{
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
	}
}

// Start begins polling until the context is canceled
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("Starting outbox relay",
		"poll_interval", r.pollInterval.String(),
		"batch_size", r.batchSize,
		"max_attempts", r.maxAttempts,
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping due to context cancellation")
			return
		case <-ticker.C:
			r.logger.Debug("Outbox relay tick: delivering claimed entries")
			if err := r.deliverBatch(ctx); err != nil {
				r.logger.Error("Error during batch delivery of outbox entries", "error", err)
			}
		}
	}
}

// deliverBatch claims one batch and delivers it in creation order. A failed
// entry is recorded and skipped, and later entries sharing its correlation id
// are held back so delivery order within a correlation holds; the rest of the
// batch continues.
func (r *Relay) deliverBatch(ctx context.Context) error {
	entries, err := r.outboxRepo.ClaimPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending outbox entries: %w", err)
	}

	if len(entries) == 0 {
		r.logger.Debug("No deliverable outbox entries found")
		return nil
	}

	r.logger.Info("Claimed outbox entries for delivery", "count", len(entries))

	failedCorrelations := make(map[uuid.UUID]struct{})

	for _, entry := range entries {
		logger := r.logger.With("correlation_id", entry.CorrelationID.String())

		if _, held := failedCorrelations[entry.CorrelationID]; held {
			logger.Warn("Holding back outbox entry after earlier failure for its correlation", "outbox_id", entry.ID)
			if markErr := r.outboxRepo.MarkFailed(ctx, entry.ID, "held back: earlier entry for this correlation failed"); markErr != nil {
				logger.Error("Failed to hold back outbox entry", "outbox_id", entry.ID, "error", markErr)
			}
			continue
		}

		if err := r.publisher.Publish(ctx, entry); err != nil {
			failedCorrelations[entry.CorrelationID] = struct{}{}
			logger.Error("Failed to deliver outbox entry",
				"outbox_id", entry.ID,
				"kind", string(entry.Kind),
				"current_attempts", entry.Attempts,
				"error", err,
			)

			if markErr := r.outboxRepo.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				logger.Error("Failed to record delivery failure for outbox entry", "outbox_id", entry.ID, "error", markErr)
				continue
			}

			if entry.Attempts+1 >= r.maxAttempts {
				logger.Warn("Delivery attempt budget exhausted, outbox entry flagged for review",
					"outbox_id", entry.ID,
					"kind", string(entry.Kind),
					"attempts_made", entry.Attempts+1,
				)
			}
			continue
		}

		if err := r.outboxRepo.MarkDelivered(ctx, entry.ID); err != nil {
			logger.Error("Delivered outbox entry but failed to mark it delivered",
				"outbox_id", entry.ID,
				"error", err,
			)
			continue
		}

		logger.Info("Delivered outbox entry", "outbox_id", entry.ID, "kind", string(entry.Kind))
	}

	return nil
}
