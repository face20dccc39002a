package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAccountNotActive      = errors.New("account is not active")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrInvalidAccountNumber  = errors.New("account number cannot be empty")
)

// Status defines the account lifecycle states. Accounts are never deleted,
// only transitioned to CLOSED.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
	StatusClosed Status = "CLOSED"
)

// Account represents a bank account keyed by its account number.
// The Version counter guards every balance write: the store only applies a
// new balance when the expected version still matches.
type Account struct {
	Number         string          `json:"number"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	OverdraftLimit decimal.Decimal `json:"overdraft_limit"` // non-negative; balance floor is -OverdraftLimit
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAccount creates a new active account with the given parameters
func NewAccount(number string, initialBalance decimal.Decimal, currency string) (*Account, error) {
	if number == "" {
		return nil, ErrInvalidAccountNumber
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}
	if initialBalance.IsNegative() {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Account{
		Number:         number,
		Balance:        initialBalance,
		Currency:       currency,
		Status:         StatusActive,
		OverdraftLimit: decimal.Zero,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsActive reports whether the account accepts money movements
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// Deposit adds the specified amount to the account balance
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.IsActive() {
		return ErrAccountNotActive
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Withdraw subtracts the specified amount from the account balance. The
// balance may go negative only down to the overdraft floor.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.IsActive() {
		return ErrAccountNotActive
	}
	if !a.CanWithdraw(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// CanWithdraw checks the resulting balance against the overdraft floor
func (a *Account) CanWithdraw(amount decimal.Decimal) bool {
	floor := a.OverdraftLimit.Neg()
	return a.Balance.Sub(amount).GreaterThanOrEqual(floor)
}
