package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/core-banking/ledger/internal/domain/account"
	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/ledger"
)

// IdempotencyKeyHeader carries the caller's idempotency key; a key in the
// request body takes precedence.
const IdempotencyKeyHeader = "Idempotency-Key"

// TransactionReader looks up committed journal entries
type TransactionReader interface {
	GetTransaction(ctx context.Context, ref uuid.UUID) (*journal.Entry, error)
}

// LedgerHandler handles HTTP requests for money movements
type LedgerHandler struct {
	operations ledger.Service
	reader     TransactionReader
	logger     *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, operations ledger.Service, reader TransactionReader) *LedgerHandler {
	return &LedgerHandler{
		operations: operations,
		reader:     reader,
		logger:     logger,
	}
}

// Deposit credits an account
func (h *LedgerHandler) Deposit(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := h.parseAmount(c, req.Amount)
	if !ok {
		return
	}

	entry, err := h.operations.Deposit(c.Request.Context(), ledger.DepositRequest{
		AccountNumber:  req.AccountNumber,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: h.idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// Withdraw debits an account
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := h.parseAmount(c, req.Amount)
	if !ok {
		return
	}

	entry, err := h.operations.Withdraw(c.Request.Context(), ledger.WithdrawRequest{
		AccountNumber:  req.AccountNumber,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: h.idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

// Transfer moves money between two accounts
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req TransferOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := h.parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := h.operations.Transfer(c.Request.Context(), ledger.TransferRequest{
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: h.idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, TransferResponse{
		Debit:  mapEntryToResponse(result.Debit),
		Credit: mapEntryToResponse(result.Credit),
	})
}

// GetByRef retrieves a journal entry by its transaction ref
func (h *LedgerHandler) GetByRef(c *gin.Context) {
	refParam := c.Param("ref")
	ref, err := uuid.Parse(refParam)
	if err != nil {
		h.logger.Error("Invalid transaction ref", "ref", refParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ref")
		return
	}

	entry, err := h.reader.GetTransaction(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "ref", refParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}

func (h *LedgerHandler) parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		h.logger.Error("Invalid amount", "amount", raw, "error", err)
		RespondBadRequest(c, "Invalid amount")
		return decimal.Decimal{}, false
	}
	return amount, true
}

func (h *LedgerHandler) idempotencyKey(c *gin.Context, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return c.GetHeader(IdempotencyKeyHeader)
}

// respondOperationError maps engine errors to their HTTP representation.
// Validation defects are 400, business rule violations 422, contention 409,
// missing accounts 404; everything else is a 500.
func (h *LedgerHandler) respondOperationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidAmount),
		errors.Is(err, account.ErrInvalidCurrencyFormat),
		errors.Is(err, account.ErrInvalidAccountNumber):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, err.Error())

	case errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", err.Error())

	case errors.Is(err, account.ErrAccountNotActive):
		RespondUnprocessable(c, "ACCOUNT_NOT_ACTIVE", err.Error())

	case errors.Is(err, ledger.ErrSameAccount):
		RespondUnprocessable(c, "SAME_ACCOUNT", err.Error())

	case errors.Is(err, ledger.ErrCurrencyMismatch):
		RespondUnprocessable(c, "CURRENCY_MISMATCH", err.Error())

	case errors.Is(err, ledger.ErrContentionExceeded{}):
		RespondConflict(c, "CONTENTION_EXCEEDED", err.Error())

	default:
		h.logger.Error("Operation failed", "error", err)
		RespondInternalError(c)
	}
}
