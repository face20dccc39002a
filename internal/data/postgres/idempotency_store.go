package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/core-banking/ledger/internal/domain/idempotency"
	"github.com/core-banking/ledger/internal/platform/persistence"
)

// IdempotencyStore implements the idempotency.Store interface for PostgreSQL
type IdempotencyStore struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIdempotencyStore creates a new PostgreSQL idempotency store
func NewIdempotencyStore(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Store {
	return &IdempotencyStore{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a view of the store bound to the given transaction so the
// key is recorded in the same atomic commit as the journal entry.
func (s *IdempotencyStore) WithTx(tx pgx.Tx) idempotency.Store {
	return &IdempotencyStore{
		querier: tx,
		logger:  s.logger,
	}
}

// Get retrieves the record for a key
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, transaction_ref, created_at
		FROM idempotency_records
		WHERE key = $1
	`

	var record idempotency.Record
	err := s.querier.QueryRow(ctx, query, key).Scan(
		&record.Key,
		&record.TransactionRef,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrKeyNotFound{Key: key}
		}
		s.logger.Error("Failed to get idempotency record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &record, nil
}

// Put commits a new record. A unique violation means a concurrent request
// with the same key won the race.
func (s *IdempotencyStore) Put(ctx context.Context, record *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_records (key, transaction_ref, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.querier.Exec(ctx, query,
		record.Key,
		record.TransactionRef,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return idempotency.ErrDuplicateKey{Key: record.Key}
		}
		s.logger.Error("Failed to put idempotency record", "key", record.Key, "error", err)
		return fmt.Errorf("failed to put idempotency record: %w", err)
	}

	return nil
}
