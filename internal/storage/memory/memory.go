// Package memory is an in-process Store used by tests and the memory backend.
// Transactions work on a copy of the state that replaces the live state on
// commit, so a failed WithinTx leaves nothing behind.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"fincore/internal/core"
	"fincore/internal/services"
	"fincore/internal/storage"
)

type state struct {
	recurring    map[string]core.RecurringTransaction
	transactions map[string]core.Transaction
	syncStatus   map[string]string
	budgets      map[string]core.Budget
	categories   map[string]core.Category
}

func (s *state) clone() *state {
	return &state{
		recurring:    maps.Clone(s.recurring),
		transactions: maps.Clone(s.transactions),
		syncStatus:   maps.Clone(s.syncStatus),
		budgets:      maps.Clone(s.budgets),
		categories:   maps.Clone(s.categories),
	}
}

// Store keeps every entity in maps guarded by one mutex.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ services.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: &state{
		recurring:    make(map[string]core.RecurringTransaction),
		transactions: make(map[string]core.Transaction),
		syncStatus:   make(map[string]string),
		budgets:      make(map[string]core.Budget),
		categories:   make(map[string]core.Category),
	}}
}

// WithinTx runs fn against a private copy and publishes it only if fn
// succeeds. The store stays locked for the duration of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(tx services.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.state.clone()
	if err := fn(&tx{st: draft}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// locked runs fn directly on the live state.
func (s *Store) locked(fn func(t *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{st: s.state})
}

func (s *Store) GetRecurring(ctx context.Context, id string) (rt core.RecurringTransaction, err error) {
	err = s.locked(func(t *tx) error { rt, err = t.GetRecurring(ctx, id); return err })
	return rt, err
}

func (s *Store) ListRecurring(ctx context.Context, f services.RecurringFilter) (out []core.RecurringTransaction, err error) {
	err = s.locked(func(t *tx) error { out, err = t.ListRecurring(ctx, f); return err })
	return out, err
}

func (s *Store) CreateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	return s.locked(func(t *tx) error { return t.CreateRecurring(ctx, rt) })
}

func (s *Store) UpdateRecurring(ctx context.Context, rt *core.RecurringTransaction) error {
	return s.locked(func(t *tx) error { return t.UpdateRecurring(ctx, rt) })
}

func (s *Store) CreateTransaction(ctx context.Context, tr *core.Transaction) error {
	return s.locked(func(t *tx) error { return t.CreateTransaction(ctx, tr) })
}

func (s *Store) GetTransaction(ctx context.Context, id string) (tr core.Transaction, err error) {
	err = s.locked(func(t *tx) error { tr, err = t.GetTransaction(ctx, id); return err })
	return tr, err
}

func (s *Store) ListTransactions(ctx context.Context, f services.TransactionFilter) (out []core.Transaction, err error) {
	err = s.locked(func(t *tx) error { out, err = t.ListTransactions(ctx, f); return err })
	return out, err
}

func (s *Store) CreateBudget(ctx context.Context, b *core.Budget) error {
	return s.locked(func(t *tx) error { return t.CreateBudget(ctx, b) })
}

func (s *Store) GetBudget(ctx context.Context, id string) (b core.Budget, err error) {
	err = s.locked(func(t *tx) error { b, err = t.GetBudget(ctx, id); return err })
	return b, err
}

func (s *Store) ListBudgets(ctx context.Context) (out []core.Budget, err error) {
	err = s.locked(func(t *tx) error { out, err = t.ListBudgets(ctx); return err })
	return out, err
}

func (s *Store) CreateCategory(ctx context.Context, c *core.Category) error {
	return s.locked(func(t *tx) error { return t.CreateCategory(ctx, c) })
}

func (s *Store) GetCategory(ctx context.Context, id string) (c core.Category, err error) {
	err = s.locked(func(t *tx) error { c, err = t.GetCategory(ctx, id); return err })
	return c, err
}

func (s *Store) ListCategories(ctx context.Context) (out []core.Category, err error) {
	err = s.locked(func(t *tx) error { out, err = t.ListCategories(ctx); return err })
	return out, err
}

// PendingSync returns up to limit transactions not yet exported, oldest first.
func (s *Store) PendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for id, status := range s.state.syncStatus {
		if status == storage.SyncPending {
			out = append(out, s.state.transactions[id])
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string) error {
	return s.setSync(id, storage.SyncSynced)
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	return s.setSync(id, storage.SyncError)
}

// SyncStatus reports the export state of a transaction.
func (s *Store) SyncStatus(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.state.syncStatus[id]
	if !ok {
		return "", fmt.Errorf("transaction %s: %w", id, services.ErrNotFound)
	}
	return status, nil
}

func (s *Store) setSync(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, services.ErrNotFound)
	}
	s.state.syncStatus[id] = status
	return nil
}

type tx struct {
	st *state
}

func (t *tx) GetRecurring(_ context.Context, id string) (core.RecurringTransaction, error) {
	rt, ok := t.st.recurring[id]
	if !ok {
		return core.RecurringTransaction{}, fmt.Errorf("recurring %s: %w", id, services.ErrNotFound)
	}
	return rt, nil
}

func (t *tx) ListRecurring(_ context.Context, f services.RecurringFilter) ([]core.RecurringTransaction, error) {
	out := make([]core.RecurringTransaction, 0, len(t.st.recurring))
	for _, rt := range t.st.recurring {
		if f.ActiveOnly && !rt.IsActive {
			continue
		}
		if f.DueOn != nil && rt.NextRunDate.After(*f.DueOn) {
			continue
		}
		out = append(out, rt)
	}
	slices.SortFunc(out, func(a, b core.RecurringTransaction) int {
		return cmp.Or(a.NextRunDate.Compare(b.NextRunDate.Time), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *tx) CreateRecurring(_ context.Context, rt *core.RecurringTransaction) error {
	if _, exists := t.st.recurring[rt.ID]; exists {
		return fmt.Errorf("recurring %s already exists", rt.ID)
	}
	rt.Version = 1
	t.st.recurring[rt.ID] = *rt
	return nil
}

func (t *tx) UpdateRecurring(_ context.Context, rt *core.RecurringTransaction) error {
	cur, ok := t.st.recurring[rt.ID]
	if !ok {
		return fmt.Errorf("recurring %s: %w", rt.ID, services.ErrNotFound)
	}
	if cur.Version != rt.Version {
		return fmt.Errorf("recurring %s at version %d, stored %d: %w", rt.ID, rt.Version, cur.Version, services.ErrConcurrentModification)
	}
	rt.Version++
	t.st.recurring[rt.ID] = *rt
	return nil
}

func (t *tx) CreateTransaction(_ context.Context, tr *core.Transaction) error {
	if _, exists := t.st.transactions[tr.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tr.ID)
	}
	t.st.transactions[tr.ID] = *tr
	t.st.syncStatus[tr.ID] = storage.SyncPending
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, services.ErrNotFound)
	}
	return tr, nil
}

func (t *tx) ListTransactions(_ context.Context, f services.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.st.transactions {
		if matches(tr, f) {
			out = append(out, tr)
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(a.TransactionDate.Compare(b.TransactionDate.Time), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func matches(tr core.Transaction, f services.TransactionFilter) bool {
	switch {
	case f.From != nil && tr.TransactionDate.Before(*f.From):
		return false
	case f.To != nil && tr.TransactionDate.After(*f.To):
		return false
	case f.Type != "" && tr.Type != f.Type:
		return false
	case f.Currency != "" && tr.Amount.Currency != f.Currency:
		return false
	case f.CategoryID != nil && (tr.CategoryID == nil || *tr.CategoryID != *f.CategoryID):
		return false
	case f.RecurringID != nil && (tr.RecurringTransactionID == nil || *tr.RecurringTransactionID != *f.RecurringID):
		return false
	}
	return true
}

func (t *tx) CreateBudget(_ context.Context, b *core.Budget) error {
	t.st.budgets[b.ID] = *b
	return nil
}

func (t *tx) GetBudget(_ context.Context, id string) (core.Budget, error) {
	b, ok := t.st.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, services.ErrNotFound)
	}
	return b, nil
}

func (t *tx) ListBudgets(context.Context) ([]core.Budget, error) {
	out := slices.Collect(maps.Values(t.st.budgets))
	slices.SortFunc(out, func(a, b core.Budget) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}

func (t *tx) CreateCategory(_ context.Context, c *core.Category) error {
	t.st.categories[c.ID] = *c
	return nil
}

func (t *tx) GetCategory(_ context.Context, id string) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, services.ErrNotFound)
	}
	return c, nil
}

func (t *tx) ListCategories(context.Context) ([]core.Category, error) {
	out := slices.Collect(maps.Values(t.st.categories))
	slices.SortFunc(out, func(a, b core.Category) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}
