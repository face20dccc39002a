// Package ledger implements the money movement engine. Every operation
// commits its balance write, journal entry, staged events, and idempotency
// record as one atomic unit; partial application is impossible.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/domain/account"
	"github.com/core-banking/ledger/internal/domain/idempotency"
	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/domain/outbox"
	"github.com/core-banking/ledger/internal/domain/shared"
)

// Common errors
var (
	ErrSameAccount      = errors.New("transfer requires two distinct accounts")
	ErrCurrencyMismatch = errors.New("currency does not match account currency")
)

// ErrContentionExceeded indicates the optimistic retry budget ran out without
// a successful commit. The operation had no effect and may be retried.
type ErrContentionExceeded struct {
	Number string
}

func (e ErrContentionExceeded) Error() string {
	return "contention retry budget exhausted for account: " + e.Number
}

// Is matches any ErrContentionExceeded when the target carries no account number
func (e ErrContentionExceeded) Is(target error) bool {
	t, ok := target.(ErrContentionExceeded)
	if !ok {
		return false
	}
	return t.Number == "" || t.Number == e.Number
}

// TxRunner executes a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// DepositRequest describes a credit to a single account. An empty Currency
// adopts the account's currency.
type DepositRequest struct {
	AccountNumber  string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

// WithdrawRequest describes a debit from a single account. An empty Currency
// adopts the account's currency.
type WithdrawRequest struct {
	AccountNumber  string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

// TransferRequest describes an atomic movement between two accounts. An
// empty Currency adopts the source account's currency.
type TransferRequest struct {
	FromAccount    string
	ToAccount      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

// TransferResult carries the two journal legs of a committed transfer. Both
// share a correlation id.
type TransferResult struct {
	Debit  *journal.Entry
	Credit *journal.Entry
}

// Engine applies money movements against the balance store under optimistic
// concurrency, journaling each applied leg and staging its events in the
// same commit.
type Engine struct {
	db          TxRunner
	accounts    account.BalanceStore
	journal     journal.Repository
	outbox      outbox.Repository
	idempotency idempotency.Store
	logger      *slog.Logger
	maxAttempts int
}

// NewEngine creates a new ledger engine
func NewEngine(
	logger *slog.Logger,
	db TxRunner,
	accounts account.BalanceStore,
	journalRepo journal.Repository,
	outboxRepo outbox.Repository,
	idempotencyStore idempotency.Store,
	cfg *config.LedgerConfig,
) *Engine {
	return &Engine{
		db:          db,
		accounts:    accounts,
		journal:     journalRepo,
		outbox:      outboxRepo,
		idempotency: idempotencyStore,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// CreateAccount opens a new active account
func (e *Engine) CreateAccount(ctx context.Context, number string, initialBalance decimal.Decimal, currency string) (*account.Account, error) {
	acc, err := account.NewAccount(number, initialBalance, currency)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	e.logger.Info("Account created", "number", acc.Number, "currency", acc.Currency)
	return acc, nil
}

// GetAccount retrieves an account with its current balance and version
func (e *Engine) GetAccount(ctx context.Context, number string) (*account.Account, error) {
	return e.accounts.Load(ctx, number)
}

// UpdateAccountStatus transitions the account lifecycle state
func (e *Engine) UpdateAccountStatus(ctx context.Context, number string, status account.Status) error {
	switch status {
	case account.StatusActive, account.StatusFrozen, account.StatusClosed:
	default:
		return fmt.Errorf("unknown account status: %s", status)
	}

	if err := e.accounts.UpdateStatus(ctx, number, status); err != nil {
		return err
	}

	e.logger.Info("Account status updated", "number", number, "status", string(status))
	return nil
}

// GetTransaction retrieves a journal entry by its transaction ref
func (e *Engine) GetTransaction(ctx context.Context, ref uuid.UUID) (*journal.Entry, error) {
	return e.journal.GetByRef(ctx, ref)
}

// ListAccountTransactions retrieves a page of an account's journal in
// ascending creation order, plus the total entry count.
func (e *Engine) ListAccountTransactions(ctx context.Context, number string, limit, offset int) ([]*journal.Entry, int64, error) {
	entries, err := e.journal.ListByAccount(ctx, number, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := e.journal.CountByAccount(ctx, number)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListTransactionsByTimeRange retrieves a page of journal entries committed
// within [start, end), in ascending creation order.
func (e *Engine) ListTransactionsByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*journal.Entry, error) {
	return e.journal.ListByTimeRange(ctx, start, end, limit, offset)
}

// Deposit credits an account. A request that was already applied under the
// same idempotency key returns the original journal entry.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*journal.Entry, error) {
	if err := validateOperation(req.AccountNumber, req.Amount, req.Currency); err != nil {
		return nil, err
	}

	return e.applySingle(ctx, shared.OperationKindDeposit, req.AccountNumber, req.Amount, req.Currency, req.Description, req.IdempotencyKey)
}

// Withdraw debits an account. A request that was already applied under the
// same idempotency key returns the original journal entry.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*journal.Entry, error) {
	if err := validateOperation(req.AccountNumber, req.Amount, req.Currency); err != nil {
		return nil, err
	}

	return e.applySingle(ctx, shared.OperationKindWithdrawal, req.AccountNumber, req.Amount, req.Currency, req.Description, req.IdempotencyKey)
}

// applySingle runs the optimistic retry loop for a one-account operation.
// Each iteration reloads the account, applies the movement in memory, and
// commits balance, journal entry, staged events, and idempotency record in
// one transaction guarded by the loaded version stamp.
func (e *Engine) applySingle(ctx context.Context, kind shared.OperationKind, number string, amount decimal.Decimal, currency, description, key string) (*journal.Entry, error) {
	ref := journal.RefForKey(key)

	if key != "" {
		if entry, err := e.replaySingle(ctx, key); err != nil {
			return nil, err
		} else if entry != nil {
			return entry, nil
		}
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		acc, err := e.accounts.Load(ctx, number)
		if err != nil {
			return nil, err
		}
		if currency == "" {
			currency = acc.Currency
		} else if acc.Currency != currency {
			return nil, ErrCurrencyMismatch
		}

		expectedVersion := acc.Version
		switch kind {
		case shared.OperationKindDeposit:
			err = acc.Deposit(amount)
		case shared.OperationKindWithdrawal:
			err = acc.Withdraw(amount)
		}
		if err != nil {
			return nil, err
		}

		entry := journal.NewEntry(ref, number, "", kind, amount, currency, description, ref)

		err = e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if err := e.accounts.WithTx(tx).CompareAndSwap(ctx, number, expectedVersion, acc.Balance); err != nil {
				return err
			}

			entry.CreatedAt = time.Now().UTC()
			if err := e.journal.WithTx(tx).Append(ctx, entry); err != nil {
				return err
			}

			if err := e.stageEvents(ctx, tx, entry); err != nil {
				return err
			}

			return e.recordKey(ctx, tx, key, ref, entry.CreatedAt)
		})

		switch {
		case err == nil:
			e.logger.Info("Operation applied",
				"kind", string(kind),
				"account_number", number,
				"transaction_ref", ref.String(),
				"attempt", attempt,
			)
			return entry, nil

		case errors.Is(err, account.ErrVersionConflict{}):
			e.logger.Debug("Version conflict, retrying",
				"account_number", number,
				"attempt", attempt,
			)
			continue

		case errors.Is(err, journal.ErrDuplicateReference{}):
			// Same ref already journaled: the operation was applied by an
			// earlier or concurrent request. Return its entry.
			return e.journal.GetByRef(ctx, ref)

		case errors.Is(err, idempotency.ErrDuplicateKey{}):
			entry, rerr := e.replaySingle(ctx, key)
			if rerr != nil {
				return nil, rerr
			}
			return entry, nil

		default:
			return nil, err
		}
	}

	e.logger.Warn("Contention retry budget exhausted",
		"kind", string(kind),
		"account_number", number,
		"max_attempts", e.maxAttempts,
	)
	return nil, ErrContentionExceeded{Number: number}
}

// Transfer atomically moves money between two accounts. Both legs commit or
// neither does; a replayed idempotency key returns the original legs.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validateOperation(req.FromAccount, req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if req.ToAccount == "" {
		return nil, account.ErrInvalidAccountNumber
	}
	if req.FromAccount == req.ToAccount {
		return nil, ErrSameAccount
	}

	correlationID := journal.RefForKey(req.IdempotencyKey)
	debitRef, creditRef := transferRefs(req.IdempotencyKey)

	if req.IdempotencyKey != "" {
		if result, err := e.replayTransfer(ctx, req.IdempotencyKey, debitRef, creditRef); err != nil {
			return nil, err
		} else if result != nil {
			return result, nil
		}
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		source, err := e.accounts.Load(ctx, req.FromAccount)
		if err != nil {
			return nil, err
		}
		dest, err := e.accounts.Load(ctx, req.ToAccount)
		if err != nil {
			return nil, err
		}
		currency := req.Currency
		if currency == "" {
			currency = source.Currency
		}
		if source.Currency != currency || dest.Currency != currency {
			return nil, ErrCurrencyMismatch
		}

		sourceVersion := source.Version
		destVersion := dest.Version

		if err := source.Withdraw(req.Amount); err != nil {
			return nil, err
		}
		if err := dest.Deposit(req.Amount); err != nil {
			return nil, err
		}

		debit := journal.NewEntry(debitRef, req.FromAccount, req.ToAccount,
			shared.OperationKindTransferDebit, req.Amount, currency, req.Description, correlationID)
		credit := journal.NewEntry(creditRef, req.ToAccount, req.FromAccount,
			shared.OperationKindTransferCredit, req.Amount, currency, req.Description, correlationID)

		err = e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			accounts := e.accounts.WithTx(tx)

			// Both version-guarded writes run in ascending account-number
			// order so concurrent opposing transfers cannot deadlock.
			first, second := source, dest
			firstVersion, secondVersion := sourceVersion, destVersion
			if second.Number < first.Number {
				first, second = second, first
				firstVersion, secondVersion = secondVersion, firstVersion
			}
			if err := accounts.CompareAndSwap(ctx, first.Number, firstVersion, first.Balance); err != nil {
				return err
			}
			if err := accounts.CompareAndSwap(ctx, second.Number, secondVersion, second.Balance); err != nil {
				return err
			}

			now := time.Now().UTC()
			journalRepo := e.journal.WithTx(tx)
			for _, entry := range []*journal.Entry{debit, credit} {
				entry.CreatedAt = now
				if err := journalRepo.Append(ctx, entry); err != nil {
					return err
				}
				if err := e.stageEvents(ctx, tx, entry); err != nil {
					return err
				}
			}

			return e.recordKey(ctx, tx, req.IdempotencyKey, correlationID, now)
		})

		switch {
		case err == nil:
			e.logger.Info("Transfer applied",
				"from_account", req.FromAccount,
				"to_account", req.ToAccount,
				"correlation_id", correlationID.String(),
				"attempt", attempt,
			)
			return &TransferResult{Debit: debit, Credit: credit}, nil

		case errors.Is(err, account.ErrVersionConflict{}):
			e.logger.Debug("Version conflict, retrying transfer",
				"from_account", req.FromAccount,
				"to_account", req.ToAccount,
				"attempt", attempt,
			)
			continue

		case errors.Is(err, journal.ErrDuplicateReference{}):
			return e.fetchTransfer(ctx, debitRef, creditRef)

		case errors.Is(err, idempotency.ErrDuplicateKey{}):
			result, rerr := e.replayTransfer(ctx, req.IdempotencyKey, debitRef, creditRef)
			if rerr != nil {
				return nil, rerr
			}
			return result, nil

		default:
			return nil, err
		}
	}

	e.logger.Warn("Contention retry budget exhausted for transfer",
		"from_account", req.FromAccount,
		"to_account", req.ToAccount,
		"max_attempts", e.maxAttempts,
	)
	return nil, ErrContentionExceeded{Number: req.FromAccount}
}

// replaySingle returns the journal entry a previous request with this key
// produced, or nil when the key is unused.
func (e *Engine) replaySingle(ctx context.Context, key string) (*journal.Entry, error) {
	record, err := e.idempotency.Get(ctx, key)
	if err != nil {
		if errors.Is(err, idempotency.ErrKeyNotFound{}) {
			return nil, nil
		}
		return nil, err
	}

	e.logger.Info("Idempotent replay", "idempotency_key", key, "transaction_ref", record.TransactionRef.String())
	return e.journal.GetByRef(ctx, record.TransactionRef)
}

// replayTransfer returns the legs a previous transfer with this key produced,
// or nil when the key is unused.
func (e *Engine) replayTransfer(ctx context.Context, key string, debitRef, creditRef uuid.UUID) (*TransferResult, error) {
	record, err := e.idempotency.Get(ctx, key)
	if err != nil {
		if errors.Is(err, idempotency.ErrKeyNotFound{}) {
			return nil, nil
		}
		return nil, err
	}

	e.logger.Info("Idempotent replay", "idempotency_key", key, "correlation_id", record.TransactionRef.String())
	return e.fetchTransfer(ctx, debitRef, creditRef)
}

func (e *Engine) fetchTransfer(ctx context.Context, debitRef, creditRef uuid.UUID) (*TransferResult, error) {
	debit, err := e.journal.GetByRef(ctx, debitRef)
	if err != nil {
		return nil, err
	}
	credit, err := e.journal.GetByRef(ctx, creditRef)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Debit: debit, Credit: credit}, nil
}

// stageEvents stages the TRANSACTION and AUDIT events for a journal entry
// inside the commit that appended it.
func (e *Engine) stageEvents(ctx context.Context, tx pgx.Tx, entry *journal.Entry) error {
	outboxRepo := e.outbox.WithTx(tx)

	txEvent := &shared.TransactionEvent{
		TransactionRef: entry.TransactionRef,
		AccountNumber:  entry.AccountNumber,
		Kind:           entry.Kind,
		Amount:         entry.OperationAmount(),
		Currency:       entry.Currency,
		Timestamp:      entry.CreatedAt,
	}
	txEntry, err := outbox.NewTransactionEntry(txEvent, entry.CorrelationID)
	if err != nil {
		return fmt.Errorf("failed to encode transaction event: %w", err)
	}
	if err := outboxRepo.Stage(ctx, txEntry); err != nil {
		return err
	}

	auditEvent := &shared.AuditEvent{
		Action:     entry.Kind,
		EntityType: shared.AuditEntityTransaction,
		EntityID:   entry.TransactionRef,
		Message:    shared.AuditMessage(entry.Kind, entry.AccountNumber, entry.CounterpartAccount, entry.OperationAmount()),
		CreatedBy:  shared.AuditCreatedBySystem,
		CreatedAt:  entry.CreatedAt,
	}
	auditEntry, err := outbox.NewAuditEntry(auditEvent, entry.CorrelationID)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	return outboxRepo.Stage(ctx, auditEntry)
}

// recordKey commits the idempotency record in the same transaction as the
// operation it guards. No-op for keyless requests.
func (e *Engine) recordKey(ctx context.Context, tx pgx.Tx, key string, ref uuid.UUID, at time.Time) error {
	if key == "" {
		return nil
	}
	return e.idempotency.WithTx(tx).Put(ctx, &idempotency.Record{
		Key:            key,
		TransactionRef: ref,
		CreatedAt:      at,
	})
}

// transferRefs derives the two leg refs for a transfer. Keyed transfers get
// deterministic refs so a replay regenerates the same pair.
func transferRefs(key string) (debit, credit uuid.UUID) {
	if key == "" {
		return uuid.New(), uuid.New()
	}
	return journal.RefForKey(key + ":debit"), journal.RefForKey(key + ":credit")
}

func validateOperation(number string, amount decimal.Decimal, currency string) error {
	if number == "" {
		return account.ErrInvalidAccountNumber
	}
	if !amount.IsPositive() {
		return account.ErrInvalidAmount
	}
	if currency != "" && len(currency) != 3 {
		return account.ErrInvalidCurrencyFormat
	}
	return nil
}
