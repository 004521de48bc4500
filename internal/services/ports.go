// Package services provides business logic and orchestration services.
//
// Services talk to persistence through the Store port and to the message
// broker through the Publisher port, so the same logic runs against SQLite,
// PostgreSQL or the in-memory store.
package services

import (
	"context"
	"errors"
	"fmt"

	"fincore/internal/core"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPersistence            = errors.New("persistence failure")
	ErrNotDue                 = errors.New("recurring transaction is not due")
	ErrValidation             = errors.New("validation failed")
)

// RecurringFilter narrows ListRecurring. DueOn selects rows whose
// next_run_date is on or before that date.
type RecurringFilter struct {
	ActiveOnly bool
	DueOn      *core.Date
}

// TransactionFilter narrows ListTransactions. Zero fields match everything;
// From and To are inclusive.
type TransactionFilter struct {
	From        *core.Date
	To          *core.Date
	Type        core.TransactionType
	CategoryID  *string
	Currency    string
	RecurringID *string
}

// Tx is the set of store operations available both directly and inside
// WithinTx.
type Tx interface {
	GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error)
	ListRecurring(ctx context.Context, f RecurringFilter) ([]core.RecurringTransaction, error)
	CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error
	// UpdateRecurring persists rt if the stored version still equals
	// rt.Version, then increments rt.Version. A stale version yields
	// ErrConcurrentModification.
	UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

	CreateBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)

	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id string) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Store is the persistence port. WithinTx runs fn atomically: either every
// write fn made is committed or none is.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Publisher announces committed state changes. Failures are logged by the
// caller and never undo a commit.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, t core.Transaction) error
	PublishRecurringDue(ctx context.Context, rt core.RecurringTransaction) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishTransactionCreated(context.Context, core.Transaction) error { return nil }

func (NopPublisher) PublishRecurringDue(context.Context, core.RecurringTransaction) error {
	return nil
}

var classified = []error{ErrNotFound, ErrConcurrentModification, ErrPersistence, ErrNotDue, ErrValidation}

// storeErr wraps a failure for op. Errors that already carry one of the
// package's sentinels keep it; anything else is a persistence failure.
func storeErr(op string, err error) error {
	for _, target := range classified {
		if errors.Is(err, target) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
