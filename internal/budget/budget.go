// Package budget computes spend state for budgets from transaction sets.
package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fincore/internal/core"
)

var hundred = decimal.NewFromInt(100)

// ComputeStatus sums expense transactions inside the budget window (bounds
// included) and, when the budget has a category, only those of that
// category. Transactions in another currency are ignored. Percent is capped
// at 100; Spent and Remaining are not.
func ComputeStatus(b core.Budget, txs []core.Transaction) core.BudgetStatus {
	var spent int64
	for _, tx := range txs {
		if !matches(b, tx) {
			continue
		}
		spent += tx.Amount.Minor
	}
	return status(b, b.Amount.Minor, spent)
}

func matches(b core.Budget, tx core.Transaction) bool {
	if tx.Type != core.Expense {
		return false
	}
	if tx.Amount.Currency != b.Amount.Currency {
		return false
	}
	if !b.Contains(tx.TransactionDate) {
		return false
	}
	if b.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *b.CategoryID) {
		return false
	}
	return true
}

func status(b core.Budget, target, spent int64) core.BudgetStatus {
	currency := b.Amount.Currency
	return core.BudgetStatus{
		BudgetID:   b.ID,
		Amount:     core.Money{Minor: target, Currency: currency},
		Spent:      core.Money{Minor: spent, Currency: currency},
		Remaining:  core.Money{Minor: target - spent, Currency: currency},
		Percent:    Percent(spent, target),
		OverBudget: spent > target,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
	}
}

// Percent returns min(100, 100*spent/target) rounded to two decimals, or 0
// when target is not positive.
func Percent(spent, target int64) float64 {
	if target <= 0 || spent <= 0 {
		return 0
	}
	p := decimal.NewFromInt(spent).Mul(hundred).Div(decimal.NewFromInt(target))
	if p.GreaterThan(hundred) {
		p = hundred
	}
	return p.Round(2).InexactFloat64()
}

// RolloverPolicy decides how much of a previous period carries into the
// current one.
type RolloverPolicy interface {
	Carry(b core.Budget) int64
}

// NoRollover never carries anything over.
type NoRollover struct{}

func (NoRollover) Carry(core.Budget) int64 { return 0 }

// ComputeStatusWithRollover is ComputeStatus with the target raised by the
// policy's carry when the budget has rollover enabled.
func ComputeStatusWithRollover(b core.Budget, txs []core.Transaction, policy RolloverPolicy) core.BudgetStatus {
	st := ComputeStatus(b, txs)
	if !b.Rollover || policy == nil {
		return st
	}
	carry := policy.Carry(b)
	if carry == 0 {
		return st
	}
	return status(b, b.Amount.Minor+carry, st.Spent.Minor)
}

// PeriodWindow returns the calendar window of the given period type that
// contains ref. Weeks start on Monday.
func PeriodWindow(p core.PeriodType, ref core.Date) (core.Date, core.Date, error) {
	y, m := ref.Year(), ref.Month()
	switch p {
	case core.PeriodWeekly:
		offset := (int(ref.Weekday()) + 6) % 7
		start := ref.AddDays(-offset)
		return start, start.AddDays(6), nil
	case core.PeriodMonthly:
		return core.NewDate(y, int(m), 1), core.NewDate(y, int(m), core.DaysIn(y, m)), nil
	case core.PeriodQuarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		last := first + 2
		return core.NewDate(y, int(first), 1), core.NewDate(y, int(last), core.DaysIn(y, last)), nil
	case core.PeriodYearly:
		return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31), nil
	default:
		return core.Date{}, core.Date{}, fmt.Errorf("%w: no calendar window for %q", core.ErrInvalidPeriod, p)
	}
}
