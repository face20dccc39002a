package ledger

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/domain/journal"
)

// Service is the money movement surface exposed to transports
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*journal.Entry, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*journal.Entry, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

var _ Service = (*Engine)(nil)
var _ Service = (*WorkerPoolService)(nil)

// WorkerPoolService bounds concurrent money movements by running them on a
// fixed-size worker pool. Callers still block until their operation commits;
// the pool caps how many optimistic retry loops run at once, which keeps
// version conflicts under control during bursts.
type WorkerPoolService struct {
	base   Service
	pool   *ants.Pool
	logger *slog.Logger
}

type entryResult struct {
	entry *journal.Entry
	err   error
}

type transferResult struct {
	result *TransferResult
	err    error
}

// NewWorkerPoolService creates a worker pool wrapper around the base service
func NewWorkerPoolService(logger *slog.Logger, base Service, cfg *config.WorkerPoolConfig) (*WorkerPoolService, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolService{
		base:   base,
		pool:   pool,
		logger: logger,
	}, nil
}

// Deposit submits a deposit to the worker pool and waits for its outcome
func (s *WorkerPoolService) Deposit(ctx context.Context, req DepositRequest) (*journal.Entry, error) {
	resultChan := make(chan entryResult, 1)

	err := s.pool.Submit(func() {
		entry, err := s.base.Deposit(ctx, req)
		resultChan <- entryResult{entry: entry, err: err}
	})
	if err != nil {
		s.logger.Error("Failed to submit deposit to worker pool",
			"account_number", req.AccountNumber,
			"error", err,
		)
		return nil, err
	}

	result := <-resultChan
	return result.entry, result.err
}

// Withdraw submits a withdrawal to the worker pool and waits for its outcome
func (s *WorkerPoolService) Withdraw(ctx context.Context, req WithdrawRequest) (*journal.Entry, error) {
	resultChan := make(chan entryResult, 1)

	err := s.pool.Submit(func() {
		entry, err := s.base.Withdraw(ctx, req)
		resultChan <- entryResult{entry: entry, err: err}
	})
	if err != nil {
		s.logger.Error("Failed to submit withdrawal to worker pool",
			"account_number", req.AccountNumber,
			"error", err,
		)
		return nil, err
	}

	result := <-resultChan
	return result.entry, result.err
}

// Transfer submits a transfer to the worker pool and waits for its outcome
func (s *WorkerPoolService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	resultChan := make(chan transferResult, 1)

	err := s.pool.Submit(func() {
		result, err := s.base.Transfer(ctx, req)
		resultChan <- transferResult{result: result, err: err}
	})
	if err != nil {
		s.logger.Error("Failed to submit transfer to worker pool",
			"from_account", req.FromAccount,
			"to_account", req.ToAccount,
			"error", err,
		)
		return nil, err
	}

	result := <-resultChan
	return result.result, result.err
}

// Shutdown gracefully shuts down the worker pool
func (s *WorkerPoolService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool
func (s *WorkerPoolService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool
func (s *WorkerPoolService) Capacity() int {
	return s.pool.Cap()
}
