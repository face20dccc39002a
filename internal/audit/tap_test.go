package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/core-banking/ledger/internal/domain/shared"
)

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) Archive(ctx context.Context, event *shared.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func encodedTransactionEvent(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(&shared.TransactionEvent{
		TransactionRef: uuid.New(),
		AccountNumber:  "ACC-1001",
		Kind:           shared.OperationKindDeposit,
		Amount:         decimal.NewFromInt(100),
		Currency:       "USD",
		Timestamp:      time.Now().UTC(),
	})
	require.NoError(t, err)
	return payload
}

func encodedAuditEvent(t *testing.T, entityID uuid.UUID) []byte {
	t.Helper()
	payload, err := json.Marshal(&shared.AuditEvent{
		Action:     shared.OperationKindDeposit,
		EntityType: shared.AuditEntityTransaction,
		EntityID:   entityID,
		Message:    "Deposited 100.00 into account ACC-1001",
		CreatedBy:  shared.AuditCreatedBySystem,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return payload
}

func TestTap_HandleTransaction(t *testing.T) {
	tap := NewTap(slog.Default(), nil)

	t.Run("decodes and accepts a transaction event", func(t *testing.T) {
		err := tap.HandleTransaction(context.Background(), []byte("corr-1"), encodedTransactionEvent(t))
		assert.NoError(t, err)
	})

	t.Run("rejects an undecodable payload", func(t *testing.T) {
		err := tap.HandleTransaction(context.Background(), []byte("corr-1"), []byte("not json"))
		assert.Error(t, err)
	})
}

func TestTap_HandleAudit(t *testing.T) {
	entityID := uuid.New()

	t.Run("archives the decoded event", func(t *testing.T) {
		archive := &mockArchive{}
		tap := NewTap(slog.Default(), archive)

		archive.On("Archive", mock.Anything, mock.MatchedBy(func(e *shared.AuditEvent) bool {
			return e.EntityID == entityID && e.Action == shared.OperationKindDeposit
		})).Return(nil).Once()

		err := tap.HandleAudit(context.Background(), []byte("corr-1"), encodedAuditEvent(t, entityID))

		assert.NoError(t, err)
		archive.AssertExpectations(t)
	})

	t.Run("surfaces archive errors so the offset stays uncommitted", func(t *testing.T) {
		archive := &mockArchive{}
		tap := NewTap(slog.Default(), archive)

		archive.On("Archive", mock.Anything, mock.Anything).Return(errors.New("mongo unavailable")).Once()

		err := tap.HandleAudit(context.Background(), []byte("corr-1"), encodedAuditEvent(t, entityID))

		assert.Error(t, err)
	})

	t.Run("works without an archive", func(t *testing.T) {
		tap := NewTap(slog.Default(), nil)

		err := tap.HandleAudit(context.Background(), []byte("corr-1"), encodedAuditEvent(t, entityID))

		assert.NoError(t, err)
	})

	t.Run("rejects an undecodable payload", func(t *testing.T) {
		archive := &mockArchive{}
		tap := NewTap(slog.Default(), archive)

		err := tap.HandleAudit(context.Background(), []byte("corr-1"), []byte("not json"))

		assert.Error(t, err)
		archive.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything)
	})
}
