package projection

import (
	"context"
	"errors"
	"testing"

	"fincore/internal/core"
)

type categories map[string]core.Category

func (c categories) Category(_ context.Context, id string) (core.Category, bool, error) {
	cat, ok := c[id]
	return cat, ok, nil
}

type failingLookup struct{}

func (failingLookup) Category(context.Context, string) (core.Category, bool, error) {
	return core.Category{}, false, errors.New("lookup down")
}

func recurring(typ core.TransactionType, freq core.Frequency, minor int64, category *string) core.RecurringTransaction {
	return core.RecurringTransaction{
		Type:       typ,
		Frequency:  freq,
		Amount:     core.NewMoney(minor, "VND"),
		CategoryID: category,
		IsActive:   true,
	}
}

func TestProjectMonthlyAndYearlyIncome(t *testing.T) {
	got, err := Calculator{}.Project(context.Background(), "VND", []core.RecurringTransaction{
		recurring(core.Income, core.Monthly, 10_000_000, nil),
		recurring(core.Income, core.Yearly, 12_000_000, nil),
	})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if got.MonthlyIncome != 11_000_000 {
		t.Errorf("MonthlyIncome = %d, want 11000000", got.MonthlyIncome)
	}
	if got.MonthlyExpense != 0 || got.PassiveCoverage != 0 {
		t.Errorf("expense/coverage = %d/%d, want 0/0", got.MonthlyExpense, got.PassiveCoverage)
	}
	if got.MonthlyNet != 11_000_000 {
		t.Errorf("MonthlyNet = %d, want 11000000", got.MonthlyNet)
	}
}

func TestMonthlyAmount(t *testing.T) {
	tests := []struct {
		freq  core.Frequency
		minor int64
		want  string
	}{
		{core.Daily, 100_000, "3000000"},
		{core.Weekly, 1_000, "4345"},
		{core.Monthly, 777, "777"},
		{core.Yearly, 1_200, "100"},
		{core.Frequency("hourly"), 1_000, "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			got := MonthlyAmount(recurring(core.Expense, tt.freq, tt.minor, nil))
			if got.String() != tt.want {
				t.Errorf("MonthlyAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProjectPassiveCoverage(t *testing.T) {
	dividends, salary, unknown := "dividends", "salary", "unknown"
	lookup := categories{
		dividends: {ID: dividends, Type: core.CategoryIncome, IsPassive: true},
		salary:    {ID: salary, Type: core.CategoryIncome},
	}
	paused := recurring(core.Income, core.Monthly, 50_000_000, &dividends)
	paused.IsActive = false

	got, err := Calculator{Categories: lookup}.Project(context.Background(), "vnd", []core.RecurringTransaction{
		recurring(core.Income, core.Monthly, 20_000_000, &salary),
		recurring(core.Income, core.Monthly, 3_000_000, &dividends),
		recurring(core.Income, core.Monthly, 1_000_000, &unknown),
		recurring(core.Expense, core.Monthly, 9_000_000, nil),
		paused,
	})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if got.PassiveIncome != 3_000_000 {
		t.Errorf("PassiveIncome = %d, want 3000000", got.PassiveIncome)
	}
	// 3,000,000 / 9,000,000 = 33.3%
	if got.PassiveCoverage != 33 {
		t.Errorf("PassiveCoverage = %d, want 33", got.PassiveCoverage)
	}
	if got.MonthlyIncome != 24_000_000 || got.MonthlyNet != 15_000_000 {
		t.Errorf("income/net = %d/%d, want 24000000/15000000", got.MonthlyIncome, got.MonthlyNet)
	}
}

func TestProjectRoundsOncePerSum(t *testing.T) {
	// Each 2/12 share rounds to 0 on its own; the sum is 8/12.
	items := []core.RecurringTransaction{
		recurring(core.Expense, core.Yearly, 2, nil),
		recurring(core.Expense, core.Yearly, 2, nil),
		recurring(core.Expense, core.Yearly, 2, nil),
		recurring(core.Expense, core.Yearly, 2, nil),
	}
	got, err := Calculator{}.Project(context.Background(), "VND", items)
	if err != nil {
		t.Fatal(err)
	}
	if got.MonthlyExpense != 1 {
		t.Errorf("MonthlyExpense = %d, want 1", got.MonthlyExpense)
	}
}

func TestProjectExcludesOtherCurrencies(t *testing.T) {
	eur := recurring(core.Income, core.Monthly, 100_00, nil)
	eur.Amount = core.NewMoney(100_00, "EUR")

	got, err := Calculator{}.Project(context.Background(), "VND", []core.RecurringTransaction{
		eur,
		recurring(core.Expense, core.Monthly, 500, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Excluded != 1 || got.MonthlyIncome != 0 || got.MonthlyExpense != 500 {
		t.Errorf("got %+v", got)
	}
}

func TestProjectLookupError(t *testing.T) {
	cat := "x"
	_, err := Calculator{Categories: failingLookup{}}.Project(context.Background(), "VND", []core.RecurringTransaction{
		recurring(core.Income, core.Monthly, 1, &cat),
	})
	if err == nil {
		t.Fatal("expected lookup error")
	}
}
