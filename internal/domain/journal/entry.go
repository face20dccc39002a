package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/core-banking/ledger/internal/domain/shared"
)

// refNamespace is the uuid v5 namespace for transaction refs derived from
// idempotency keys. A retried operation with the same key regenerates the
// same ref, so the journal's unique constraint catches replays even when the
// idempotency index is lost.
var refNamespace = uuid.MustParse("7f1a6b90-43c2-4a2e-9d3e-5b8de0c4a1f7")

// RefForKey derives a deterministic transaction ref from an idempotency key.
// An empty key yields a random ref.
func RefForKey(key string) uuid.UUID {
	if key == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(refNamespace, []byte(key))
}

// Entry is the immutable record of one applied money movement. Once written
// it is never altered; the append-only journal is the source of truth for
// balance reconstruction.
type Entry struct {
	TransactionRef     uuid.UUID            `json:"transaction_ref"`
	AccountNumber      string               `json:"account_number"`
	CounterpartAccount string               `json:"counterpart_account,omitempty"` // transfers only
	Kind               shared.OperationKind `json:"kind"`
	Amount             decimal.Decimal      `json:"amount"` // signed: credits positive, debits negative
	Currency           string               `json:"currency"`
	Description        string               `json:"description,omitempty"`
	CorrelationID      uuid.UUID            `json:"correlation_id"`
	CreatedAt          time.Time            `json:"created_at"` // assigned at commit time
}

// NewEntry builds a journal entry for one leg of an operation. The stored
// amount is signed by operation kind; amount itself must be the positive
// operation amount.
func NewEntry(ref uuid.UUID, accountNumber, counterpart string, kind shared.OperationKind, amount decimal.Decimal, currency, description string, correlationID uuid.UUID) *Entry {
	signed := amount
	switch kind {
	case shared.OperationKindWithdrawal, shared.OperationKindTransferDebit:
		signed = amount.Neg()
	}

	return &Entry{
		TransactionRef:     ref,
		AccountNumber:      accountNumber,
		CounterpartAccount: counterpart,
		Kind:               kind,
		Amount:             signed,
		Currency:           currency,
		Description:        description,
		CorrelationID:      correlationID,
	}
}

// OperationAmount returns the unsigned amount the operation moved
func (e *Entry) OperationAmount() decimal.Decimal {
	return e.Amount.Abs()
}
