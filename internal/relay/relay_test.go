package relay

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/core-banking/ledger/internal/config"
	"github.com/core-banking/ledger/internal/domain/outbox"
	"github.com/core-banking/ledger/internal/domain/shared"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Stage(ctx context.Context, entry *outbox.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockOutboxRepo) ClaimPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Entry), args.Error(1)
}

func (m *mockOutboxRepo) MarkDelivered(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) FlaggedForReview(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Entry), args.Error(1)
}

func (m *mockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func newTestRelay(repo *mockOutboxRepo, publisher *mockPublisher, maxAttempts int) *Relay {
	return NewRelay(slog.Default(), &config.OutboxConfig{
		PollingInterval: 10 * time.Millisecond,
		BatchSize:       10,
		MaxAttempts:     maxAttempts,
	}, repo, publisher)
}

func claimedEntry(id int64, attempts int) *outbox.Entry {
	return &outbox.Entry{
		ID:            id,
		Kind:          shared.EventKindTransaction,
		CorrelationID: uuid.New(),
		Payload:       []byte(`{}`),
		Status:        shared.DeliveryStatusDelivering,
		Attempts:      attempts,
	}
}

func TestRelay_DeliverBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers claimed entries in order", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 5)

		first := claimedEntry(1, 0)
		second := claimedEntry(2, 0)
		repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{first, second}, nil).Once()

		var published []int64
		publisher.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			published = append(published, args.Get(1).(*outbox.Entry).ID)
		}).Return(nil).Twice()
		repo.On("MarkDelivered", mock.Anything, int64(1)).Return(nil).Once()
		repo.On("MarkDelivered", mock.Anything, int64(2)).Return(nil).Once()

		err := relay.deliverBatch(ctx)

		assert.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, published)
		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("records failure and continues with the rest of the batch", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 5)

		failing := claimedEntry(1, 0)
		healthy := claimedEntry(2, 0)
		repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{failing, healthy}, nil).Once()

		publisher.On("Publish", mock.Anything, failing).Return(errors.New("broker unavailable")).Once()
		repo.On("MarkFailed", mock.Anything, int64(1), "broker unavailable").Return(nil).Once()

		publisher.On("Publish", mock.Anything, healthy).Return(nil).Once()
		repo.On("MarkDelivered", mock.Anything, int64(2)).Return(nil).Once()

		err := relay.deliverBatch(ctx)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkDelivered", mock.Anything, int64(1))
	})

	t.Run("holds back later entries of a failed correlation", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 5)

		// Debit and credit legs share a correlation id; the credit must not
		// overtake the failed debit.
		correlation := uuid.New()
		debit := claimedEntry(1, 0)
		debit.CorrelationID = correlation
		credit := claimedEntry(2, 0)
		credit.CorrelationID = correlation
		other := claimedEntry(3, 0)
		repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{debit, credit, other}, nil).Once()

		publisher.On("Publish", mock.Anything, debit).Return(errors.New("broker unavailable")).Once()
		repo.On("MarkFailed", mock.Anything, int64(1), "broker unavailable").Return(nil).Once()
		repo.On("MarkFailed", mock.Anything, int64(2), mock.Anything).Return(nil).Once()

		publisher.On("Publish", mock.Anything, other).Return(nil).Once()
		repo.On("MarkDelivered", mock.Anything, int64(3)).Return(nil).Once()

		err := relay.deliverBatch(ctx)

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, credit)
		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("entry over the attempt budget is still only marked failed", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 3)

		// Third failure exhausts the budget; the entry stays recorded, never dropped.
		exhausted := claimedEntry(1, 2)
		repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{exhausted}, nil).Once()
		publisher.On("Publish", mock.Anything, exhausted).Return(errors.New("broker unavailable")).Once()
		repo.On("MarkFailed", mock.Anything, int64(1), "broker unavailable").Return(nil).Once()

		err := relay.deliverBatch(ctx)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("empty claim is a no-op", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 5)

		repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{}, nil).Once()

		err := relay.deliverBatch(ctx)

		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("claim error is surfaced", func(t *testing.T) {
		repo := &mockOutboxRepo{}
		publisher := &mockPublisher{}
		relay := newTestRelay(repo, publisher, 5)

		repo.On("ClaimPending", mock.Anything, 10).Return(nil, errors.New("connection lost")).Once()

		err := relay.deliverBatch(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection lost")
	})
}

func TestRelay_StartStopsOnCancel(t *testing.T) {
	repo := &mockOutboxRepo{}
	publisher := &mockPublisher{}
	relay := newTestRelay(repo, publisher, 5)

	repo.On("ClaimPending", mock.Anything, 10).Return([]*outbox.Entry{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after context cancellation")
	}
}
