package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Record maps a caller-supplied idempotency key to the transaction ref its
// operation produced. Records are written once, in the same atomic commit as
// the journal entry, and never mutated.
type Record struct {
	Key            string    `json:"key"`
	TransactionRef uuid.UUID `json:"transaction_ref"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists idempotency records
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)

	// Put commits a new record. ErrDuplicateKey means a concurrent request
	// with the same key won the race; callers replay that request's outcome.
	Put(ctx context.Context, record *Record) error

	WithTx(tx pgx.Tx) Store
}

// ErrKeyNotFound indicates the key has not been used
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return "idempotency key not found: " + e.Key
}

// Is matches any ErrKeyNotFound when the target carries no key
func (e ErrKeyNotFound) Is(target error) bool {
	t, ok := target.(ErrKeyNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// ErrDuplicateKey indicates the key was already recorded
type ErrDuplicateKey struct {
	Key string
}

func (e ErrDuplicateKey) Error() string {
	return "idempotency key already recorded: " + e.Key
}

// Is matches any ErrDuplicateKey when the target carries no key
func (e ErrDuplicateKey) Is(target error) bool {
	t, ok := target.(ErrDuplicateKey)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}
