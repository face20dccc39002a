package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/domain/outbox"
	"github.com/core-banking/ledger/internal/domain/shared"
	"github.com/core-banking/ledger/internal/platform/persistence"
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL.
// Claiming uses FOR UPDATE SKIP LOCKED so multiple relay instances never
// deliver the same entry twice.
type OutboxRepository struct {
	querier         persistence.Querier
	logger          *slog.Logger
	maxAttempts     int
	backoffBase     time.Duration
	backoffCap      time.Duration
	claimStaleAfter time.Duration
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB, cfg *config.OutboxConfig) outbox.Repository {
	return &OutboxRepository{
		querier:         db.Pool(),
		logger:          logger,
		maxAttempts:     cfg.MaxAttempts,
		backoffBase:     cfg.BackoffBase,
		backoffCap:      cfg.BackoffCap,
		claimStaleAfter: cfg.ClaimStaleAfter,
	}
}

// WithTx returns a view of the repository bound to the given transaction so
// staging commits atomically with the journal append and balance write.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier:         tx,
		logger:          r.logger,
		maxAttempts:     r.maxAttempts,
		backoffBase:     r.backoffBase,
		backoffCap:      r.backoffCap,
		claimStaleAfter: r.claimStaleAfter,
	}
}

// Stage stores a new outbox entry in pending status
func (r *OutboxRepository) Stage(ctx context.Context, entry *outbox.Entry) error {
	query := `
		INSERT INTO outbox_entries (kind, correlation_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		entry.Kind,
		entry.CorrelationID,
		entry.Payload,
		entry.Status,
		entry.Attempts,
		entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		r.logger.Error("Failed to stage outbox entry",
			"correlation_id", entry.CorrelationID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to stage outbox entry: %w", err)
	}

	return nil
}

const outboxColumns = `id, kind, correlation_id, payload, status, attempts, last_error, created_at, last_attempt_at`

// ClaimPending atomically claims up to limit deliverable entries in creation
// order. Deliverable means: never attempted, or failed with backoff elapsed
// and attempts below the budget, or claimed by a relay that went quiet.
// Backoff doubles per recorded attempt up to the configured cap.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	query := `
		UPDATE outbox_entries
		SET status = $1, last_attempt_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_entries
			WHERE (status = $2)
			   OR (status = $3 AND attempts < $5
			       AND last_attempt_at <= NOW() - make_interval(secs => LEAST($6 * POWER(2, attempts - 1), $7)))
			   OR (status = $1 AND last_attempt_at <= NOW() - make_interval(secs => $8))
			ORDER BY created_at ASC, id ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns + `
	`

	rows, err := r.querier.Query(ctx, query,
		shared.DeliveryStatusDelivering,
		shared.DeliveryStatusPending,
		shared.DeliveryStatusFailed,
		limit,
		r.maxAttempts,
		r.backoffBase.Seconds(),
		r.backoffCap.Seconds(),
		r.claimStaleAfter.Seconds(),
	)
	if err != nil {
		r.logger.Error("Failed to claim pending outbox entries", "error", err)
		return nil, fmt.Errorf("failed to claim pending outbox entries: %w", err)
	}
	defer rows.Close()

	entries, err := r.scanAll(rows)
	if err != nil {
		return nil, err
	}

	// The UPDATE returns rows in table order; re-sort to creation order so
	// delivery preserves debit-before-credit per correlation id.
	sortByCreation(entries)
	return entries, nil
}

// MarkDelivered records a successful delivery
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_entries
		SET status = $1, last_attempt_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, shared.DeliveryStatusDelivered, id)
	if err != nil {
		r.logger.Error("Failed to mark outbox entry delivered", "id", id, "error", err)
		return fmt.Errorf("failed to mark outbox entry delivered: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrEntryNotFound{ID: id}
	}

	return nil
}

// MarkFailed records a failed delivery attempt and increments the attempt
// counter. Entries are never deleted on failure; after the attempt budget
// they simply stop being claimed and await manual inspection.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE outbox_entries
		SET status = $1, attempts = attempts + 1, last_error = $2, last_attempt_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, shared.DeliveryStatusFailed, reason, id)
	if err != nil {
		r.logger.Error("Failed to mark outbox entry failed", "id", id, "error", err)
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrEntryNotFound{ID: id}
	}

	return nil
}

// FlaggedForReview lists entries that exhausted the attempt budget
func (r *OutboxRepository) FlaggedForReview(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_entries
		WHERE status = $1 AND attempts >= $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, shared.DeliveryStatusFailed, r.maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to list flagged outbox entries", "error", err)
		return nil, fmt.Errorf("failed to list flagged outbox entries: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *OutboxRepository) scanAll(rows pgx.Rows) ([]*outbox.Entry, error) {
	var entries []*outbox.Entry
	for rows.Next() {
		var entry outbox.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&entry.CorrelationID,
			&entry.Payload,
			&entry.Status,
			&entry.Attempts,
			&entry.LastError,
			&entry.CreatedAt,
			&entry.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox entry", "error", err)
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox entries", "error", err)
		return nil, fmt.Errorf("error iterating over outbox entries: %w", err)
	}

	return entries, nil
}

func sortByCreation(entries []*outbox.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
