package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-banking/ledger/internal/domain/shared"
)

func TestNewTransactionEntry(t *testing.T) {
	correlation := uuid.New()
	event := &shared.TransactionEvent{
		TransactionRef: uuid.New(),
		AccountNumber:  "ACC-1001",
		Kind:           shared.OperationKindDeposit,
		Amount:         decimal.NewFromFloat(100.50),
		Currency:       "USD",
		Timestamp:      time.Now().UTC(),
	}

	entry, err := NewTransactionEntry(event, correlation)
	require.NoError(t, err)

	assert.Equal(t, shared.EventKindTransaction, entry.Kind)
	assert.Equal(t, correlation, entry.CorrelationID)
	assert.Equal(t, shared.DeliveryStatusPending, entry.Status)
	assert.Zero(t, entry.Attempts)
	assert.False(t, entry.CreatedAt.IsZero())

	decoded, err := entry.TransactionEvent()
	require.NoError(t, err)
	assert.Equal(t, event.TransactionRef, decoded.TransactionRef)
	assert.Equal(t, event.AccountNumber, decoded.AccountNumber)
	assert.True(t, decoded.Amount.Equal(event.Amount))
}

func TestNewAuditEntry(t *testing.T) {
	correlation := uuid.New()
	event := &shared.AuditEvent{
		Action:     shared.OperationKindWithdrawal,
		EntityType: shared.AuditEntityTransaction,
		EntityID:   uuid.New(),
		Message:    "Withdrew 40.00 from account ACC-1001",
		CreatedBy:  shared.AuditCreatedBySystem,
		CreatedAt:  time.Now().UTC(),
	}

	entry, err := NewAuditEntry(event, correlation)
	require.NoError(t, err)

	assert.Equal(t, shared.EventKindAudit, entry.Kind)
	assert.Equal(t, shared.DeliveryStatusPending, entry.Status)

	decoded, err := entry.AuditEvent()
	require.NoError(t, err)
	assert.Equal(t, event.EntityID, decoded.EntityID)
	assert.Equal(t, event.Message, decoded.Message)
	assert.Equal(t, shared.AuditCreatedBySystem, decoded.CreatedBy)
}

func TestEntry_DecodeWrongKind(t *testing.T) {
	entry := &Entry{
		Kind:    shared.EventKindTransaction,
		Payload: []byte(`not json`),
	}

	_, err := entry.TransactionEvent()
	assert.Error(t, err)

	_, err = entry.AuditEvent()
	assert.Error(t, err)
}
