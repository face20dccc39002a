package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// AuditEntityTransaction is the entity type recorded on audit events
	// emitted for money movements.
	AuditEntityTransaction = "Transaction"

	// AuditCreatedBySystem marks events produced by the ledger itself rather
	// than an operator.
	AuditCreatedBySystem = "SYSTEM"
)

// TransactionEvent is the payload announced to downstream consumers for every
// applied journal entry. Consumers deduplicate on TransactionRef.
type TransactionEvent struct {
	TransactionRef uuid.UUID       `json:"transaction_ref"`
	AccountNumber  string          `json:"account_number"`
	Kind           OperationKind   `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Timestamp      time.Time       `json:"timestamp"`
}

// AuditEvent is the audit-trail payload emitted alongside every transaction
// event. Consumers deduplicate on EntityID.
type AuditEvent struct {
	Action     OperationKind `json:"action"`
	EntityType string        `json:"entity_type"`
	EntityID   uuid.UUID     `json:"entity_id"`
	Message    string        `json:"message"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AuditMessage renders the human-readable audit line for an operation.
func AuditMessage(kind OperationKind, accountNumber, counterpart string, amount decimal.Decimal) string {
	switch kind {
	case OperationKindDeposit:
		return fmt.Sprintf("Deposited %s into account %s", amount.StringFixed(2), accountNumber)
	case OperationKindWithdrawal:
		return fmt.Sprintf("Withdrew %s from account %s", amount.StringFixed(2), accountNumber)
	case OperationKindTransferDebit:
		return fmt.Sprintf("Transferred %s from %s to %s", amount.StringFixed(2), accountNumber, counterpart)
	case OperationKindTransferCredit:
		return fmt.Sprintf("Received %s from %s into %s", amount.StringFixed(2), counterpart, accountNumber)
	}
	return "Unknown ledger action"
}
