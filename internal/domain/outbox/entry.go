package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/core-banking/ledger/internal/domain/shared"
)

// Entry is a staged notification awaiting delivery. Entries are created in
// the same atomic unit as the journal entry they derive from and mutated only
// by the relay (status and attempt updates).
type Entry struct {
	ID            int64                 `json:"id"`
	Kind          shared.EventKind      `json:"kind"`
	CorrelationID uuid.UUID             `json:"correlation_id"`
	Payload       json.RawMessage       `json:"payload"`
	Status        shared.DeliveryStatus `json:"status"`
	Attempts      int                   `json:"attempts"`
	LastError     string                `json:"last_error,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	LastAttemptAt *time.Time            `json:"last_attempt_at,omitempty"`
}

// NewTransactionEntry stages a TRANSACTION event
func NewTransactionEntry(event *shared.TransactionEvent, correlationID uuid.UUID) (*Entry, error) {
	return newEntry(shared.EventKindTransaction, event, correlationID)
}

// NewAuditEntry stages an AUDIT event
func NewAuditEntry(event *shared.AuditEvent, correlationID uuid.UUID) (*Entry, error) {
	return newEntry(shared.EventKindAudit, event, correlationID)
}

func newEntry(kind shared.EventKind, event interface{}, correlationID uuid.UUID) (*Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Entry{
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       payload,
		Status:        shared.DeliveryStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// TransactionEvent decodes the payload of a TRANSACTION entry
func (e *Entry) TransactionEvent() (*shared.TransactionEvent, error) {
	var event shared.TransactionEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// AuditEvent decodes the payload of an AUDIT entry
func (e *Entry) AuditEvent() (*shared.AuditEvent, error) {
	var event shared.AuditEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
