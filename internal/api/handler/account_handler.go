package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/core-banking/ledger/internal/domain/account"
	"github.com/core-banking/ledger/internal/domain/journal"
)

// AccountService is the account surface the handler depends on
type AccountService interface {
	CreateAccount(ctx context.Context, number string, initialBalance decimal.Decimal, currency string) (*account.Account, error)
	GetAccount(ctx context.Context, number string) (*account.Account, error)
	UpdateAccountStatus(ctx context.Context, number string, status account.Status) error
	ListAccountTransactions(ctx context.Context, number string, limit, offset int) ([]*journal.Entry, int64, error)
}

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create opens a new account
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	initialBalance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		initialBalance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			h.logger.Error("Invalid initial balance", "initial_balance", req.InitialBalance, "error", err)
			RespondBadRequest(c, "Invalid initial balance")
			return
		}
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), req.Number, initialBalance, req.Currency)
	if err != nil {
		var dup account.ErrDuplicateAccount
		switch {
		case errors.Is(err, account.ErrInvalidAccountNumber),
			errors.Is(err, account.ErrInvalidCurrencyFormat),
			errors.Is(err, account.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		case errors.As(err, &dup):
			RespondConflict(c, "DUPLICATE_ACCOUNT", err.Error())
		default:
			h.logger.Error("Failed to create account", "number", req.Number, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// Get retrieves an account by its number
func (h *AccountHandler) Get(c *gin.Context) {
	number := c.Param("number")

	acc, err := h.accountService.GetAccount(c.Request.Context(), number)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "number", number, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// UpdateStatus transitions the account lifecycle state
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	number := c.Param("number")

	var req UpdateAccountStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.accountService.UpdateAccountStatus(c.Request.Context(), number, account.Status(req.Status)); err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to update account status", "number", number, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"number": number, "status": req.Status})
}

// GetTransactions retrieves paginated journal history for an account
func (h *AccountHandler) GetTransactions(c *gin.Context) {
	number := c.Param("number")

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	entries, total, err := h.accountService.ListAccountTransactions(c.Request.Context(), number, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to get transactions", "number", number, "error", err)
		RespondInternalError(c)
		return
	}

	var transactions []TransactionResponse
	for _, entry := range entries {
		transactions = append(transactions, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PerPage, int(total))
}

// mapAccountToResponse maps an account to its response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		Number:         acc.Number,
		Balance:        acc.Balance.StringFixed(2),
		Currency:       acc.Currency,
		Status:         string(acc.Status),
		OverdraftLimit: acc.OverdraftLimit.StringFixed(2),
		Version:        acc.Version,
		CreatedAt:      acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      acc.UpdatedAt.Format(time.RFC3339),
	}
}

// mapEntryToResponse maps a journal entry to its response DTO
func mapEntryToResponse(entry *journal.Entry) TransactionResponse {
	return TransactionResponse{
		TransactionRef:     entry.TransactionRef.String(),
		AccountNumber:      entry.AccountNumber,
		CounterpartAccount: entry.CounterpartAccount,
		Kind:               string(entry.Kind),
		Amount:             entry.Amount.StringFixed(2),
		Currency:           entry.Currency,
		Description:        entry.Description,
		CorrelationID:      entry.CorrelationID.String(),
		CreatedAt:          entry.CreatedAt.Format(time.RFC3339),
	}
}
