// Package projection turns recurring definitions into a monthly-equivalent
// income and expense projection.
package projection

import (
	"context"

	"github.com/shopspring/decimal"

	"fincore/internal/core"
)

// Monthly-equivalent multipliers per frequency. Yearly amounts are divided
// by monthsPerYear instead.
var multipliers = map[core.Frequency]decimal.Decimal{
	core.Daily:   decimal.NewFromInt(30),
	core.Weekly:  decimal.RequireFromString("4.345"),
	core.Monthly: decimal.NewFromInt(1),
}

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// CategoryLookup resolves categories by id. Unknown ids return ok=false.
type CategoryLookup interface {
	Category(ctx context.Context, id string) (core.Category, bool, error)
}

// Calculator aggregates recurring definitions. Categories is optional; without
// it no income counts as passive.
type Calculator struct {
	Categories CategoryLookup
}

// MonthlyAmount returns the monthly-equivalent of one definition's amount
// without rounding.
func MonthlyAmount(rt core.RecurringTransaction) decimal.Decimal {
	amount := decimal.NewFromInt(rt.Amount.Minor)
	if rt.Frequency == core.Yearly {
		return amount.Div(monthsPerYear)
	}
	m, ok := multipliers[rt.Frequency]
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(m)
}

// Project sums active definitions in currency. Sums are kept exact and
// rounded once, half away from zero, to integer minor units.
func (c Calculator) Project(ctx context.Context, currency string, recurrings []core.RecurringTransaction) (core.MonthlyProjection, error) {
	currency = core.NormalizeCurrency(currency)
	out := core.MonthlyProjection{Currency: currency}

	income, expense, passive := decimal.Zero, decimal.Zero, decimal.Zero
	for _, rt := range recurrings {
		if !rt.IsActive {
			continue
		}
		if rt.Amount.Currency != currency {
			out.Excluded++
			continue
		}
		amount := MonthlyAmount(rt)
		switch rt.Type {
		case core.Income:
			income = income.Add(amount)
			isPassive, err := c.isPassive(ctx, rt.CategoryID)
			if err != nil {
				return core.MonthlyProjection{}, err
			}
			if isPassive {
				passive = passive.Add(amount)
			}
		case core.Expense:
			expense = expense.Add(amount)
		}
	}

	out.MonthlyIncome = income.Round(0).IntPart()
	out.MonthlyExpense = expense.Round(0).IntPart()
	out.MonthlyNet = out.MonthlyIncome - out.MonthlyExpense
	out.PassiveIncome = passive.Round(0).IntPart()
	if !expense.IsZero() {
		out.PassiveCoverage = passive.Mul(hundred).Div(expense).Round(0).IntPart()
	}
	return out, nil
}

func (c Calculator) isPassive(ctx context.Context, categoryID *string) (bool, error) {
	if c.Categories == nil || categoryID == nil {
		return false, nil
	}
	cat, ok, err := c.Categories.Category(ctx, *categoryID)
	if err != nil || !ok {
		return false, err
	}
	return cat.IsPassive, nil
}
