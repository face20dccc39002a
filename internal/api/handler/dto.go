package handler

// CreateAccountRequest represents a request to open a new account
type CreateAccountRequest struct {
	Number         string `json:"number" binding:"required"`
	InitialBalance string `json:"initial_balance,omitempty"`
	Currency       string `json:"currency" binding:"required,len=3"`
}

// UpdateAccountStatusRequest represents an account lifecycle transition
type UpdateAccountStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE FROZEN CLOSED"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	Number         string `json:"number"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	OverdraftLimit string `json:"overdraft_limit"`
	Version        int64  `json:"version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// OperationRequest represents a deposit or withdrawal request. Amounts are
// decimal strings; binary floats never touch money values. An omitted
// currency defaults to the account's currency.
type OperationRequest struct {
	AccountNumber  string `json:"account_number" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency,omitempty" binding:"omitempty,len=3"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransferOperationRequest represents a transfer between two accounts
type TransferOperationRequest struct {
	FromAccount    string `json:"from_account" binding:"required"`
	ToAccount      string `json:"to_account" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency,omitempty" binding:"omitempty,len=3"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransactionResponse represents a journal entry in API responses
type TransactionResponse struct {
	TransactionRef     string `json:"transaction_ref"`
	AccountNumber      string `json:"account_number"`
	CounterpartAccount string `json:"counterpart_account,omitempty"`
	Kind               string `json:"kind"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description,omitempty"`
	CorrelationID      string `json:"correlation_id"`
	CreatedAt          string `json:"created_at"`
}

// TransferResponse carries both legs of a committed transfer
type TransferResponse struct {
	Debit  TransactionResponse `json:"debit"`
	Credit TransactionResponse `json:"credit"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// LimitParams represents a bare result limit for inspection endpoints
type LimitParams struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=500"`
}

// TimeRangeParams represents a paginated time window query. Timestamps are
// RFC3339.
type TimeRangeParams struct {
	From    string `form:"from" binding:"required"`
	To      string `form:"to" binding:"required"`
	Page    int    `form:"page,default=1" binding:"min=1"`
	PerPage int    `form:"per_page,default=10" binding:"min=1,max=100"`
}

// OutboxEntryResponse represents an outbox entry in inspection responses. The
// payload itself is omitted; the journal is the source of truth.
type OutboxEntryResponse struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"last_error,omitempty"`
	CreatedAt     string `json:"created_at"`
	LastAttemptAt string `json:"last_attempt_at,omitempty"`
}

// AuditEventResponse represents an archived audit event in API responses
type AuditEventResponse struct {
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Message    string `json:"message"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  string `json:"created_at"`
}
