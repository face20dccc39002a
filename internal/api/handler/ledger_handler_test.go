package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/core-banking/ledger/internal/domain/account"
	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/domain/shared"
	"github.com/core-banking/ledger/internal/ledger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockLedgerService struct {
	mock.Mock
}

func (m *mockLedgerService) Deposit(ctx context.Context, req ledger.DepositRequest) (*journal.Entry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journal.Entry), args.Error(1)
}

func (m *mockLedgerService) Withdraw(ctx context.Context, req ledger.WithdrawRequest) (*journal.Entry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journal.Entry), args.Error(1)
}

func (m *mockLedgerService) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TransferResult), args.Error(1)
}

type mockTransactionReader struct {
	mock.Mock
}

func (m *mockTransactionReader) GetTransaction(ctx context.Context, ref uuid.UUID) (*journal.Entry, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journal.Entry), args.Error(1)
}

func newLedgerTestRouter(service *mockLedgerService, reader *mockTransactionReader) *gin.Engine {
	h := NewLedgerHandler(slog.Default(), service, reader)
	router := gin.New()
	router.POST("/operations/deposit", h.Deposit)
	router.POST("/operations/withdraw", h.Withdraw)
	router.POST("/operations/transfer", h.Transfer)
	router.GET("/transactions/:ref", h.GetByRef)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLedgerHandler_Deposit(t *testing.T) {
	ref := uuid.New()
	entry := &journal.Entry{
		TransactionRef: ref,
		AccountNumber:  "ACC-1001",
		Kind:           shared.OperationKindDeposit,
		Currency:       "USD",
		CorrelationID:  ref,
	}
	body := gin.H{"account_number": "ACC-1001", "amount": "100.50", "currency": "USD"}

	t.Run("success", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Deposit", mock.Anything, mock.MatchedBy(func(req ledger.DepositRequest) bool {
			return req.AccountNumber == "ACC-1001" && req.Amount.String() == "100.5" && req.Currency == "USD"
		})).Return(entry, nil).Once()

		w := performJSON(t, router, http.MethodPost, "/operations/deposit", body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("missing body fields", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		w := performJSON(t, router, http.MethodPost, "/operations/deposit", gin.H{"amount": "100"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		service.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything)
	})

	t.Run("currency is optional", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Deposit", mock.Anything, mock.MatchedBy(func(req ledger.DepositRequest) bool {
			return req.AccountNumber == "ACC-1001" && req.Currency == ""
		})).Return(entry, nil).Once()

		w := performJSON(t, router, http.MethodPost, "/operations/deposit",
			gin.H{"account_number": "ACC-1001", "amount": "100.50"}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("non-decimal amount", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		w := performJSON(t, router, http.MethodPost, "/operations/deposit",
			gin.H{"account_number": "ACC-1001", "amount": "ten dollars", "currency": "USD"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("idempotency key falls back to the header", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Deposit", mock.Anything, mock.MatchedBy(func(req ledger.DepositRequest) bool {
			return req.IdempotencyKey == "header-key"
		})).Return(entry, nil).Once()

		w := performJSON(t, router, http.MethodPost, "/operations/deposit", body,
			map[string]string{IdempotencyKeyHeader: "header-key"})

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("body key wins over the header", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Deposit", mock.Anything, mock.MatchedBy(func(req ledger.DepositRequest) bool {
			return req.IdempotencyKey == "body-key"
		})).Return(entry, nil).Once()

		keyed := gin.H{"account_number": "ACC-1001", "amount": "100.50", "currency": "USD", "idempotency_key": "body-key"}
		w := performJSON(t, router, http.MethodPost, "/operations/deposit", keyed,
			map[string]string{IdempotencyKeyHeader: "header-key"})

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})
}

func TestLedgerHandler_ErrorMapping(t *testing.T) {
	body := gin.H{"account_number": "ACC-1001", "amount": "100.50", "currency": "USD"}

	tests := []struct {
		name         string
		serviceErr   error
		expectedCode int
		expectedErr  string
	}{
		{"account not found", account.ErrAccountNotFound{Number: "ACC-1001"}, http.StatusNotFound, "NOT_FOUND"},
		{"insufficient funds", account.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{"account not active", account.ErrAccountNotActive, http.StatusUnprocessableEntity, "ACCOUNT_NOT_ACTIVE"},
		{"currency mismatch", ledger.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "CURRENCY_MISMATCH"},
		{"contention exceeded", ledger.ErrContentionExceeded{Number: "ACC-1001"}, http.StatusConflict, "CONTENTION_EXCEEDED"},
		{"invalid amount", account.ErrInvalidAmount, http.StatusBadRequest, "BAD_REQUEST"},
		{"unexpected error", errors.New("connection lost"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockLedgerService{}
			router := newLedgerTestRouter(service, &mockTransactionReader{})

			service.On("Withdraw", mock.Anything, mock.Anything).Return(nil, tt.serviceErr).Once()

			w := performJSON(t, router, http.MethodPost, "/operations/withdraw", body, nil)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
		})
	}
}

func TestLedgerHandler_Transfer(t *testing.T) {
	correlation := uuid.New()
	result := &ledger.TransferResult{
		Debit:  &journal.Entry{TransactionRef: uuid.New(), AccountNumber: "ACC-1001", Kind: shared.OperationKindTransferDebit, CorrelationID: correlation},
		Credit: &journal.Entry{TransactionRef: uuid.New(), AccountNumber: "ACC-2002", Kind: shared.OperationKindTransferCredit, CorrelationID: correlation},
	}
	body := gin.H{"from_account": "ACC-1001", "to_account": "ACC-2002", "amount": "50.00", "currency": "USD"}

	t.Run("success returns both legs", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Transfer", mock.Anything, mock.MatchedBy(func(req ledger.TransferRequest) bool {
			return req.FromAccount == "ACC-1001" && req.ToAccount == "ACC-2002"
		})).Return(result, nil).Once()

		w := performJSON(t, router, http.MethodPost, "/operations/transfer", body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data TransferResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, result.Debit.TransactionRef.String(), resp.Data.Debit.TransactionRef)
		assert.Equal(t, result.Credit.TransactionRef.String(), resp.Data.Credit.TransactionRef)
		assert.Equal(t, correlation.String(), resp.Data.Debit.CorrelationID)
	})

	t.Run("same account is unprocessable", func(t *testing.T) {
		service := &mockLedgerService{}
		router := newLedgerTestRouter(service, &mockTransactionReader{})

		service.On("Transfer", mock.Anything, mock.Anything).Return(nil, ledger.ErrSameAccount).Once()

		same := gin.H{"from_account": "ACC-1001", "to_account": "ACC-1001", "amount": "50.00", "currency": "USD"}
		w := performJSON(t, router, http.MethodPost, "/operations/transfer", same, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "SAME_ACCOUNT", resp.Error.Code)
	})
}

func TestLedgerHandler_GetByRef(t *testing.T) {
	ref := uuid.New()

	t.Run("success", func(t *testing.T) {
		reader := &mockTransactionReader{}
		router := newLedgerTestRouter(&mockLedgerService{}, reader)

		entry := &journal.Entry{TransactionRef: ref, AccountNumber: "ACC-1001", Kind: shared.OperationKindDeposit, CorrelationID: ref}
		reader.On("GetTransaction", mock.Anything, ref).Return(entry, nil).Once()

		w := performJSON(t, router, http.MethodGet, "/transactions/"+ref.String(), nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		reader.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		reader := &mockTransactionReader{}
		router := newLedgerTestRouter(&mockLedgerService{}, reader)

		reader.On("GetTransaction", mock.Anything, ref).Return(nil, journal.ErrEntryNotFound{TransactionRef: ref}).Once()

		w := performJSON(t, router, http.MethodGet, "/transactions/"+ref.String(), nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid ref", func(t *testing.T) {
		reader := &mockTransactionReader{}
		router := newLedgerTestRouter(&mockLedgerService{}, reader)

		w := performJSON(t, router, http.MethodGet, "/transactions/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reader.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
	})
}
