package services_test

import (
	"context"
	"errors"
	"testing"

	"fincore/internal/core"
	"fincore/internal/services"
	"fincore/internal/storage/memory"
)

func TestTransactionServiceCreate(t *testing.T) {
	tests := []struct {
		name    string
		in      core.Transaction
		wantErr bool
	}{
		{
			name: "manual expense",
			in: core.Transaction{AccountID: "acc", Type: core.Expense, Amount: core.Money{Minor: 4500, Currency: "eur"},
				TransactionDate: day(2024, 5, 3), Description: "Groceries"},
		},
		{
			name: "zero amount transfer allowed",
			in:   core.Transaction{AccountID: "acc", Type: core.Transfer, Amount: core.NewMoney(0, "EUR"), TransactionDate: day(2024, 5, 3)},
		},
		{
			name:    "missing type",
			in:      core.Transaction{AccountID: "acc", Amount: core.NewMoney(100, "EUR"), TransactionDate: day(2024, 5, 3)},
			wantErr: true,
		},
		{
			name:    "bad currency",
			in:      core.Transaction{AccountID: "acc", Type: core.Income, Amount: core.NewMoney(100, "EURO"), TransactionDate: day(2024, 5, 3)},
			wantErr: true,
		},
		{
			name:    "missing date",
			in:      core.Transaction{AccountID: "acc", Type: core.Income, Amount: core.NewMoney(100, "EUR")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			pub := &recordingPublisher{}
			svc := services.NewTransactionService(store, pub)

			got, err := svc.Create(ctx, tt.in, at(2024, 5, 3))
			if tt.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				if len(pub.created) != 0 {
					t.Error("published an event for a rejected transaction")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if got.ID == "" || got.Source != core.SourceManual || got.CreatedAt.IsZero() {
				t.Errorf("created = %+v", got)
			}
			if got.Amount.Currency != core.NormalizeCurrency(tt.in.Amount.Currency) {
				t.Errorf("currency = %q", got.Amount.Currency)
			}
			stored, err := svc.Get(ctx, got.ID)
			if err != nil || stored.ID != got.ID {
				t.Errorf("Get = %+v, %v", stored, err)
			}
			if len(pub.created) != 1 {
				t.Errorf("published %d events, want 1", len(pub.created))
			}
		})
	}
}

func TestBudgetServiceStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	budgets := services.NewBudgetService(store, nil)
	txs := services.NewTransactionService(store, nil)
	food := "cat-food"

	b, err := budgets.Create(ctx, core.Budget{
		Name:       "Food",
		Amount:     core.NewMoney(1000000, "VND"),
		PeriodType: core.PeriodMonthly,
		CategoryID: &food,
		IsActive:   true,
	}, day(2024, 5, 17))
	if err != nil {
		t.Fatalf("Create budget: %v", err)
	}
	if !b.StartDate.Equal(day(2024, 5, 1)) || !b.EndDate.Equal(day(2024, 5, 31)) {
		t.Fatalf("window = %s..%s, want May 2024", b.StartDate, b.EndDate)
	}

	other := "cat-rent"
	for _, in := range []core.Transaction{
		{Type: core.Expense, Amount: core.NewMoney(700000, "VND"), TransactionDate: day(2024, 5, 1), CategoryID: &food},
		{Type: core.Expense, Amount: core.NewMoney(500000, "VND"), TransactionDate: day(2024, 5, 31), CategoryID: &food},
		{Type: core.Expense, Amount: core.NewMoney(900000, "VND"), TransactionDate: day(2024, 6, 1), CategoryID: &food},
		{Type: core.Expense, Amount: core.NewMoney(300000, "VND"), TransactionDate: day(2024, 5, 10), CategoryID: &other},
		{Type: core.Income, Amount: core.NewMoney(800000, "VND"), TransactionDate: day(2024, 5, 10), CategoryID: &food},
		{Type: core.Expense, Amount: core.NewMoney(50, "EUR"), TransactionDate: day(2024, 5, 10), CategoryID: &food},
	} {
		in.AccountID = "acc"
		if _, err := txs.Create(ctx, in, at(2024, 6, 1)); err != nil {
			t.Fatalf("Create transaction: %v", err)
		}
	}

	st, err := budgets.Status(ctx, b.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Spent != core.NewMoney(1200000, "VND") || st.Remaining != core.NewMoney(-200000, "VND") {
		t.Errorf("spent=%s remaining=%s", st.Spent, st.Remaining)
	}
	if st.Percent != 100 || !st.OverBudget {
		t.Errorf("percent=%v over=%v, want 100 and over budget", st.Percent, st.OverBudget)
	}

	if _, err := budgets.Status(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Status(missing) = %v, want ErrNotFound", err)
	}
}

func TestBudgetServiceCreateValidation(t *testing.T) {
	svc := services.NewBudgetService(memory.New(), nil)
	tests := []struct {
		name string
		in   core.Budget
	}{
		{"custom without dates", core.Budget{Name: "Trip", Amount: core.NewMoney(100, "EUR"), PeriodType: core.PeriodCustom}},
		{"empty name", core.Budget{Amount: core.NewMoney(100, "EUR"), PeriodType: core.PeriodMonthly}},
		{"negative amount", core.Budget{Name: "X", Amount: core.NewMoney(-1, "EUR"), PeriodType: core.PeriodMonthly}},
		{"end before start", core.Budget{Name: "X", Amount: core.NewMoney(1, "EUR"), PeriodType: core.PeriodCustom,
			StartDate: day(2024, 2, 1), EndDate: day(2024, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in, day(2024, 5, 1)); !errors.Is(err, services.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestProjectionService(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := services.NewProjectionService(store, nil)

	dividends, err := svc.CreateCategory(ctx, core.Category{Name: "Dividends", Type: core.CategoryIncome, IsPassive: true})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	salary := weeklyRent("salary")
	salary.Type, salary.Frequency, salary.Amount = core.Income, core.Monthly, core.NewMoney(20000000, "VND")
	rent := weeklyRent("rent")
	rent.Frequency, rent.Amount = core.Monthly, core.NewMoney(10000000, "VND")
	divs := weeklyRent("divs")
	divs.Type, divs.Frequency, divs.Amount, divs.CategoryID = core.Income, core.Yearly, core.NewMoney(12000000, "VND"), &dividends.ID
	paused := weeklyRent("paused")
	paused.IsActive = false
	euros := weeklyRent("euros")
	euros.Amount = core.NewMoney(100, "EUR")
	seed(t, store, salary, rent, divs, paused, euros)

	p, err := svc.Project(ctx, "vnd")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := core.MonthlyProjection{
		Currency:        "VND",
		MonthlyIncome:   21000000,
		MonthlyExpense:  10000000,
		MonthlyNet:      11000000,
		PassiveIncome:   1000000,
		PassiveCoverage: 10,
		Excluded:        1,
	}
	if p != want {
		t.Errorf("Project = %+v, want %+v", p, want)
	}

	if _, err := svc.Project(ctx, "dollars"); !errors.Is(err, services.ErrValidation) {
		t.Errorf("Project(dollars) = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateCategory(ctx, core.Category{Name: "X", Type: "misc"}); !errors.Is(err, services.ErrValidation) {
		t.Errorf("CreateCategory(bad type) = %v, want ErrValidation", err)
	}
}
