package core

// BudgetStatus is the derived spend state of a budget over its window.
type BudgetStatus struct {
	BudgetID   string  `json:"budget_id"`
	Amount     Money   `json:"amount"`
	Spent      Money   `json:"spent"`
	Remaining  Money   `json:"remaining"`
	Percent    float64 `json:"percent"` // capped at 100
	OverBudget bool    `json:"over_budget"`
	StartDate  Date    `json:"start_date"`
	EndDate    Date    `json:"end_date"`
}

// MonthlyProjection aggregates active recurring definitions into
// monthly-equivalent amounts.
type MonthlyProjection struct {
	Currency        string `json:"currency"`
	MonthlyIncome   int64  `json:"monthly_income"`
	MonthlyExpense  int64  `json:"monthly_expense"`
	MonthlyNet      int64  `json:"monthly_net"`
	PassiveIncome   int64  `json:"passive_income"`
	PassiveCoverage int64  `json:"passive_coverage"` // percent of expense covered by passive income
	Excluded        int    `json:"excluded"`         // active definitions in another currency
}
