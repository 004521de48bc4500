package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fincore/internal/core"
)

// TransactionService records manually entered transactions under the same
// creation contract the scheduler uses.
type TransactionService struct {
	store     Store
	publisher Publisher
}

func NewTransactionService(store Store, publisher Publisher) *TransactionService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &TransactionService{store: store, publisher: publisher}
}

// Create saves t and publishes a transaction.created event. Publish failures
// are logged; the transaction stays saved and the ledger worker's pending
// sweep picks it up.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction, now time.Time) (core.Transaction, error) {
	t.Amount = core.NewMoney(t.Amount.Minor, t.Amount.Currency)
	if t.Source == "" {
		t.Source = core.SourceManual
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	t.ID = uuid.NewString()
	t.CreatedAt = now.UTC()

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, storeErr("create transaction", err)
	}

	if err := s.publisher.PublishTransactionCreated(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID, "error", err)
	}
	return t, nil
}

// Get returns one transaction.
func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	return t, nil
}

// List returns transactions matching f.
func (s *TransactionService) List(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	items, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return items, nil
}
