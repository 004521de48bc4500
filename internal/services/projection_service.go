package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fincore/internal/core"
	"fincore/internal/projection"
)

// ProjectionService projects active recurring definitions into monthly
// amounts and manages the categories that flag passive income.
type ProjectionService struct {
	store      Store
	calculator projection.Calculator
}

// NewProjectionService uses lookup for category passivity. A nil lookup
// reads categories straight from the store.
func NewProjectionService(store Store, lookup projection.CategoryLookup) *ProjectionService {
	if lookup == nil {
		lookup = StoreCategories{Store: store}
	}
	return &ProjectionService{
		store:      store,
		calculator: projection.Calculator{Categories: lookup},
	}
}

// Project returns the monthly projection in currency.
func (s *ProjectionService) Project(ctx context.Context, currency string) (core.MonthlyProjection, error) {
	if err := core.ValidateCurrency(core.NormalizeCurrency(currency)); err != nil {
		return core.MonthlyProjection{}, invalid(err)
	}
	items, err := s.store.ListRecurring(ctx, RecurringFilter{ActiveOnly: true})
	if err != nil {
		return core.MonthlyProjection{}, storeErr("list recurring", err)
	}
	p, err := s.calculator.Project(ctx, currency, items)
	if err != nil {
		return core.MonthlyProjection{}, storeErr("project", err)
	}
	return p, nil
}

// CreateCategory validates and stores a category.
func (s *ProjectionService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.Name == "" {
		return core.Category{}, invalid(core.ErrEmptyName)
	}
	switch c.Type {
	case core.CategoryIncome, core.CategoryExpense, core.CategoryBoth:
	default:
		return core.Category{}, invalid(core.ErrInvalidType)
	}
	c.ID = uuid.NewString()
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return core.Category{}, storeErr("create category", err)
	}
	return c, nil
}

func (s *ProjectionService) ListCategories(ctx context.Context) ([]core.Category, error) {
	items, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	return items, nil
}

// StoreCategories adapts a Store to projection.CategoryLookup.
type StoreCategories struct {
	Store Tx
}

func (c StoreCategories) Category(ctx context.Context, id string) (core.Category, bool, error) {
	cat, err := c.Store.GetCategory(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, err
	}
	return cat, true, nil
}
