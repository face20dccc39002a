package account

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceStore defines durable account persistence with optimistic version
// guards. The store never applies relative deltas itself; callers
// read-modify-write under the version stamp returned by Load.
type BalanceStore interface {
	Create(ctx context.Context, acc *Account) error
	Load(ctx context.Context, number string) (*Account, error)

	// CompareAndSwap writes newBalance only if the stored version still equals
	// expectedVersion, bumping the version on success. Returns
	// ErrVersionConflict when another writer got there first; that is a retry
	// signal, not a terminal error.
	CompareAndSwap(ctx context.Context, number string, expectedVersion int64, newBalance decimal.Decimal) error

	// UpdateStatus transitions the account lifecycle state. Status changes are
	// not version-guarded; the last write wins.
	UpdateStatus(ctx context.Context, number string, status Status) error

	WithTx(tx pgx.Tx) BalanceStore
}

// ErrVersionConflict indicates an optimistic concurrency failure
type ErrVersionConflict struct {
	Number string
}

func (e ErrVersionConflict) Error() string {
	return "concurrent modification detected for account: " + e.Number
}

// Is matches any ErrVersionConflict when the target carries no account number
func (e ErrVersionConflict) Is(target error) bool {
	t, ok := target.(ErrVersionConflict)
	if !ok {
		return false
	}
	return t.Number == "" || t.Number == e.Number
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	Number string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Number
}

// Is matches any ErrAccountNotFound when the target carries no account number
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.Number == "" || t.Number == e.Number
}

// ErrDuplicateAccount indicates account number uniqueness violation
type ErrDuplicateAccount struct {
	Number string
}

func (e ErrDuplicateAccount) Error() string {
	return "account already exists: " + e.Number
}
