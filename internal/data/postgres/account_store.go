// Package postgres provides PostgreSQL implementations of the domain stores.
// All balance mutation goes through version-guarded updates, never blind
// overwrite; the journal and outbox tables are append-only.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/core-banking/ledger/internal/domain/account"
	"github.com/core-banking/ledger/internal/platform/persistence"
)

const pgUniqueViolation = "23505"

// AccountStore implements the account.BalanceStore interface for PostgreSQL
type AccountStore struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountStore creates a new PostgreSQL account store
func NewAccountStore(logger *slog.Logger, db *persistence.PostgresDB) account.BalanceStore {
	return &AccountStore{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a view of the store bound to the given transaction so
// balance writes commit atomically with journal and outbox writes.
func (s *AccountStore) WithTx(tx pgx.Tx) account.BalanceStore {
	return &AccountStore{
		querier: tx,
		logger:  s.logger,
	}
}

// Create stores a new account
func (s *AccountStore) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (number, balance, currency, status, overdraft_limit, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.querier.Exec(ctx, query,
		acc.Number,
		acc.Balance,
		acc.Currency,
		acc.Status,
		acc.OverdraftLimit,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return account.ErrDuplicateAccount{Number: acc.Number}
		}
		s.logger.Error("Failed to create account", "number", acc.Number, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Load retrieves an account with its current version stamp
func (s *AccountStore) Load(ctx context.Context, number string) (*account.Account, error) {
	query := `
		SELECT number, balance, currency, status, overdraft_limit, version, created_at, updated_at
		FROM accounts
		WHERE number = $1
	`

	var acc account.Account
	err := s.querier.QueryRow(ctx, query, number).Scan(
		&acc.Number,
		&acc.Balance,
		&acc.Currency,
		&acc.Status,
		&acc.OverdraftLimit,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Number: number}
		}
		s.logger.Error("Failed to load account", "number", number, "error", err)
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &acc, nil
}

// CompareAndSwap writes the new balance only if the version still matches,
// bumping the version on success. Zero rows affected means another writer
// committed first (or the account vanished); the caller distinguishes the
// two with a fresh Load.
func (s *AccountStore) CompareAndSwap(ctx context.Context, number string, expectedVersion int64, newBalance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE number = $2 AND version = $3
	`

	result, err := s.querier.Exec(ctx, query, newBalance, number, expectedVersion)
	if err != nil {
		s.logger.Error("Failed to update account balance", "number", number, "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrVersionConflict{Number: number}
	}

	return nil
}

// UpdateStatus transitions the account lifecycle state
func (s *AccountStore) UpdateStatus(ctx context.Context, number string, status account.Status) error {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = NOW()
		WHERE number = $2
	`

	result, err := s.querier.Exec(ctx, query, status, number)
	if err != nil {
		s.logger.Error("Failed to update account status", "number", number, "error", err)
		return fmt.Errorf("failed to update account status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{Number: number}
	}

	return nil
}
