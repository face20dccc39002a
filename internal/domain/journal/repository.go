package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the append-only transaction journal. Append runs inside
// the same atomic unit as the balance write and outbox staging.
type Repository interface {
	// Append commits a new entry. ErrDuplicateReference means the ref was
	// already journaled; callers treat that as "already applied", never as a
	// failure.
	Append(ctx context.Context, entry *Entry) error

	GetByRef(ctx context.Context, ref uuid.UUID) (*Entry, error)
	ListByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*Entry, error)
	CountByAccount(ctx context.Context, accountNumber string) (int64, error)
	ListByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*Entry, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing journal entry
type ErrEntryNotFound struct {
	TransactionRef uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "journal entry not found: " + e.TransactionRef.String()
}

// Is matches any ErrEntryNotFound when the target ref is zero
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.TransactionRef == uuid.Nil || t.TransactionRef == e.TransactionRef
}

// ErrDuplicateReference indicates the transaction ref is already journaled
type ErrDuplicateReference struct {
	TransactionRef uuid.UUID
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate journal reference: " + e.TransactionRef.String()
}

// Is matches any ErrDuplicateReference when the target ref is zero
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	return t.TransactionRef == uuid.Nil || t.TransactionRef == e.TransactionRef
}
