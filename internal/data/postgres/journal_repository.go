package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/platform/persistence"
)

// JournalRepository implements the journal.Repository interface for PostgreSQL
type JournalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewJournalRepository creates a new PostgreSQL journal repository
func NewJournalRepository(logger *slog.Logger, db *persistence.PostgresDB) journal.Repository {
	return &JournalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a view of the repository bound to the given transaction
func (r *JournalRepository) WithTx(tx pgx.Tx) journal.Repository {
	return &JournalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append commits a new journal entry. The unique constraint on
// transaction_ref is the idempotency backstop: a replayed operation trips it
// instead of double-applying.
func (r *JournalRepository) Append(ctx context.Context, entry *journal.Entry) error {
	query := `
		INSERT INTO journal_entries (transaction_ref, account_number, counterpart_account, kind, amount, currency, description, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		entry.TransactionRef,
		entry.AccountNumber,
		entry.CounterpartAccount,
		entry.Kind,
		entry.Amount,
		entry.Currency,
		entry.Description,
		entry.CorrelationID,
		entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return journal.ErrDuplicateReference{TransactionRef: entry.TransactionRef}
		}
		r.logger.Error("Failed to append journal entry", "transaction_ref", entry.TransactionRef.String(), "error", err)
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

const journalColumns = `transaction_ref, account_number, counterpart_account, kind, amount, currency, description, correlation_id, created_at`

// GetByRef retrieves a journal entry by its transaction ref
func (r *JournalRepository) GetByRef(ctx context.Context, ref uuid.UUID) (*journal.Entry, error) {
	query := `
		SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE transaction_ref = $1
	`

	entry, err := r.scanOne(r.querier.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, journal.ErrEntryNotFound{TransactionRef: ref}
		}
		r.logger.Error("Failed to get journal entry", "transaction_ref", ref.String(), "error", err)
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	return entry, nil
}

// ListByAccount retrieves a page of an account's entries in commit order
func (r *JournalRepository) ListByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*journal.Entry, error) {
	query := `
		SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE account_number = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountNumber, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list journal entries", "account_number", accountNumber, "error", err)
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// CountByAccount returns the total number of entries for an account
func (r *JournalRepository) CountByAccount(ctx context.Context, accountNumber string) (int64, error) {
	query := `SELECT COUNT(*) FROM journal_entries WHERE account_number = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountNumber).Scan(&count); err != nil {
		r.logger.Error("Failed to count journal entries", "account_number", accountNumber, "error", err)
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}

	return count, nil
}

// ListByTimeRange retrieves a page of entries committed within [start, end)
func (r *JournalRepository) ListByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*journal.Entry, error) {
	query := `
		SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, start, end, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list journal entries by time range", "error", err)
		return nil, fmt.Errorf("failed to list journal entries by time range: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *JournalRepository) scanOne(row pgx.Row) (*journal.Entry, error) {
	var entry journal.Entry
	err := row.Scan(
		&entry.TransactionRef,
		&entry.AccountNumber,
		&entry.CounterpartAccount,
		&entry.Kind,
		&entry.Amount,
		&entry.Currency,
		&entry.Description,
		&entry.CorrelationID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *JournalRepository) scanAll(rows pgx.Rows) ([]*journal.Entry, error) {
	var entries []*journal.Entry
	for rows.Next() {
		entry, err := r.scanOne(rows)
		if err != nil {
			r.logger.Error("Failed to scan journal entry", "error", err)
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over journal entries", "error", err)
		return nil, fmt.Errorf("error iterating over journal entries: %w", err)
	}

	return entries, nil
}
