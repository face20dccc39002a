package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/domain/shared"
)

const journalColumnsPattern = `transaction_ref, account_number, counterpart_account, kind, amount, currency, description, correlation_id, created_at`

func testJournalEntry() *journal.Entry {
	ref := uuid.New()
	return &journal.Entry{
		TransactionRef: ref,
		AccountNumber:  "ACC-1001",
		Kind:           shared.OperationKindDeposit,
		Amount:         decimal.NewFromInt(100),
		Currency:       "USD",
		Description:    "test deposit",
		CorrelationID:  ref,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestJournalRepository_Append(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &JournalRepository{querier: mock, logger: logger}
	entry := testJournalEntry()

	query := `
		INSERT INTO journal_entries \(transaction_ref, account_number, counterpart_account, kind, amount, currency, description, correlation_id, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(entry.TransactionRef, entry.AccountNumber, entry.CounterpartAccount, entry.Kind, entry.Amount, entry.Currency, entry.Description, entry.CorrelationID, entry.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Append(ctx, entry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate reference", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(entry.TransactionRef, entry.AccountNumber, entry.CounterpartAccount, entry.Kind, entry.Amount, entry.Currency, entry.Description, entry.CorrelationID, entry.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err := repo.Append(ctx, entry)
		assert.Error(t, err)
		var dupErr journal.ErrDuplicateReference
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, entry.TransactionRef, dupErr.TransactionRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("insert db error")
		mock.ExpectExec(query).
			WithArgs(entry.TransactionRef, entry.AccountNumber, entry.CounterpartAccount, entry.Kind, entry.Amount, entry.Currency, entry.Description, entry.CorrelationID, entry.CreatedAt).
			WillReturnError(dbErr)

		err := repo.Append(ctx, entry)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append journal entry")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJournalRepository_GetByRef(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &JournalRepository{querier: mock, logger: logger}
	expected := testJournalEntry()

	query := `
		SELECT ` + journalColumnsPattern + `
		FROM journal_entries
		WHERE transaction_ref = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"transaction_ref", "account_number", "counterpart_account", "kind", "amount", "currency", "description", "correlation_id", "created_at"}).
			AddRow(expected.TransactionRef, expected.AccountNumber, expected.CounterpartAccount, expected.Kind, expected.Amount, expected.Currency, expected.Description, expected.CorrelationID, expected.CreatedAt)
		mock.ExpectQuery(query).WithArgs(expected.TransactionRef).WillReturnRows(rows)

		entry, err := repo.GetByRef(ctx, expected.TransactionRef)
		assert.NoError(t, err)
		assert.Equal(t, expected, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		ref := uuid.New()
		mock.ExpectQuery(query).WithArgs(ref).WillReturnError(pgx.ErrNoRows)

		entry, err := repo.GetByRef(ctx, ref)
		assert.Error(t, err)
		assert.Nil(t, entry)
		var notFoundErr journal.ErrEntryNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, ref, notFoundErr.TransactionRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJournalRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &JournalRepository{querier: mock, logger: logger}
	first := testJournalEntry()
	second := testJournalEntry()
	second.Kind = shared.OperationKindWithdrawal
	second.Amount = decimal.NewFromInt(-40)

	query := `
		SELECT ` + journalColumnsPattern + `
		FROM journal_entries
		WHERE account_number = \$1
		ORDER BY created_at ASC, id ASC
		LIMIT \$2 OFFSET \$3
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"transaction_ref", "account_number", "counterpart_account", "kind", "amount", "currency", "description", "correlation_id", "created_at"}).
			AddRow(first.TransactionRef, first.AccountNumber, first.CounterpartAccount, first.Kind, first.Amount, first.Currency, first.Description, first.CorrelationID, first.CreatedAt).
			AddRow(second.TransactionRef, second.AccountNumber, second.CounterpartAccount, second.Kind, second.Amount, second.Currency, second.Description, second.CorrelationID, second.CreatedAt)
		mock.ExpectQuery(query).WithArgs("ACC-1001", 10, 0).WillReturnRows(rows)

		entries, err := repo.ListByAccount(ctx, "ACC-1001", 10, 0)
		assert.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, first, entries[0])
		assert.Equal(t, second, entries[1])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty page", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"transaction_ref", "account_number", "counterpart_account", "kind", "amount", "currency", "description", "correlation_id", "created_at"})
		mock.ExpectQuery(query).WithArgs("ACC-EMPTY", 10, 0).WillReturnRows(rows)

		entries, err := repo.ListByAccount(ctx, "ACC-EMPTY", 10, 0)
		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestJournalRepository_CountByAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &JournalRepository{querier: mock, logger: logger}

	query := `SELECT COUNT\(\*\) FROM journal_entries WHERE account_number = \$1`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"count"}).AddRow(int64(42))
		mock.ExpectQuery(query).WithArgs("ACC-1001").WillReturnRows(rows)

		count, err := repo.CountByAccount(ctx, "ACC-1001")
		assert.NoError(t, err)
		assert.Equal(t, int64(42), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("count db error")
		mock.ExpectQuery(query).WithArgs("ACC-1001").WillReturnError(dbErr)

		count, err := repo.CountByAccount(ctx, "ACC-1001")
		assert.Error(t, err)
		assert.Zero(t, count)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
