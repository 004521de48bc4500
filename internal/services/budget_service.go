package services

import (
	"context"

	"github.com/google/uuid"

	"fincore/internal/budget"
	"fincore/internal/core"
)

// BudgetService stores budgets and derives their status on demand. Spent is
// never cached: every Status call re-reads the transactions.
type BudgetService struct {
	store    Store
	rollover budget.RolloverPolicy
}

func NewBudgetService(store Store, rollover budget.RolloverPolicy) *BudgetService {
	if rollover == nil {
		rollover = budget.NoRollover{}
	}
	return &BudgetService{store: store, rollover: rollover}
}

// Create validates and stores b. Budgets of a calendar period type without
// explicit dates get the window containing ref.
func (s *BudgetService) Create(ctx context.Context, b core.Budget, ref core.Date) (core.Budget, error) {
	b.Amount = core.NewMoney(b.Amount.Minor, b.Amount.Currency)
	if b.StartDate.IsZero() && b.EndDate.IsZero() && b.PeriodType != core.PeriodCustom {
		start, end, err := budget.PeriodWindow(b.PeriodType, ref)
		if err != nil {
			return core.Budget{}, invalid(err)
		}
		b.StartDate, b.EndDate = start, end
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	b.ID = uuid.NewString()
	if err := s.store.CreateBudget(ctx, &b); err != nil {
		return core.Budget{}, storeErr("create budget", err)
	}
	return b, nil
}

func (s *BudgetService) Get(ctx context.Context, id string) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, storeErr("get budget", err)
	}
	return b, nil
}

func (s *BudgetService) List(ctx context.Context) ([]core.Budget, error) {
	items, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, storeErr("list budgets", err)
	}
	return items, nil
}

// Status loads the budget and its matching expense transactions and
// computes spent, remaining and percent.
func (s *BudgetService) Status(ctx context.Context, id string) (core.BudgetStatus, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	start, end := b.StartDate, b.EndDate
	txs, err := s.store.ListTransactions(ctx, TransactionFilter{
		From:       &start,
		To:         &end,
		Type:       core.Expense,
		CategoryID: b.CategoryID,
		Currency:   b.Amount.Currency,
	})
	if err != nil {
		return core.BudgetStatus{}, storeErr("list budget transactions", err)
	}
	return budget.ComputeStatusWithRollover(b, txs, s.rollover), nil
}
