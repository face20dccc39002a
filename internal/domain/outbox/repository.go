package outbox

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository manages transactional outbox persistence. Stage runs inside the
// atomic unit; the remaining operations belong to the relay.
type Repository interface {
	Stage(ctx context.Context, entry *Entry) error

	// ClaimPending atomically claims up to limit deliverable entries in
	// creation order and returns them. Claimed entries are invisible to other
	// relay instances until marked delivered or failed, or until the claim
	// goes stale. Entries that exhausted the attempt budget are never claimed.
	ClaimPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkDelivered(ctx context.Context, id int64) error

	// MarkFailed records a failed delivery attempt, incrementing the attempt
	// counter. The entry stays retryable until the attempt budget runs out;
	// after that it remains FAILED for manual inspection, never dropped.
	MarkFailed(ctx context.Context, id int64, reason string) error

	// FlaggedForReview lists entries that exhausted the attempt budget.
	FlaggedForReview(ctx context.Context, limit int) ([]*Entry, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing outbox entry
type ErrEntryNotFound struct {
	ID int64
}

func (e ErrEntryNotFound) Error() string {
	return "outbox entry not found: " + strconv.FormatInt(e.ID, 10)
}
