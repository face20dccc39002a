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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-banking/ledger/internal/domain/idempotency"
)

func TestIdempotencyStore_Get(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := &IdempotencyStore{querier: mock, logger: logger}

	expected := &idempotency.Record{
		Key:            "client-key-1",
		TransactionRef: uuid.New(),
		CreatedAt:      time.Now().UTC(),
	}

	query := `
		SELECT key, transaction_ref, created_at
		FROM idempotency_records
		WHERE key = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"key", "transaction_ref", "created_at"}).
			AddRow(expected.Key, expected.TransactionRef, expected.CreatedAt)
		mock.ExpectQuery(query).WithArgs(expected.Key).WillReturnRows(rows)

		record, err := store.Get(ctx, expected.Key)
		assert.NoError(t, err)
		assert.Equal(t, expected, record)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("missing-key").WillReturnError(pgx.ErrNoRows)

		record, err := store.Get(ctx, "missing-key")
		assert.Error(t, err)
		assert.Nil(t, record)
		var notFoundErr idempotency.ErrKeyNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, "missing-key", notFoundErr.Key)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIdempotencyStore_Put(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := &IdempotencyStore{querier: mock, logger: logger}

	record := &idempotency.Record{
		Key:            "client-key-1",
		TransactionRef: uuid.New(),
		CreatedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO idempotency_records \(key, transaction_ref, created_at\)
		VALUES \(\$1, \$2, \$3\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(record.Key, record.TransactionRef, record.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := store.Put(ctx, record)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate key", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(record.Key, record.TransactionRef, record.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err := store.Put(ctx, record)
		assert.Error(t, err)
		var dupErr idempotency.ErrDuplicateKey
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, record.Key, dupErr.Key)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("insert db error")
		mock.ExpectExec(query).
			WithArgs(record.Key, record.TransactionRef, record.CreatedAt).
			WillReturnError(dbErr)

		err := store.Put(ctx, record)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to put idempotency record")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
