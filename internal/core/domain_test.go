package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	got := DateOf(time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC))
	if !got.Equal(NewDate(2024, 1, 15)) {
		t.Fatalf("DateOf = %s, want 2024-01-15", got)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date  `json:"d"`
		E *Date `json:"e"`
	}{D: NewDate(2024, 2, 29)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-02-29","e":null}` {
		t.Fatalf("unexpected json %s", b)
	}

	var out struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-01-31"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.D.Equal(NewDate(2024, 1, 31)) {
		t.Fatalf("got %s", out.D)
	}
}

func TestRecurringTransactionIsDue(t *testing.T) {
	rt := RecurringTransaction{NextRunDate: NewDate(2024, 1, 15)}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC), false},
		{"same day early", time.Date(2024, 1, 15, 0, 1, 0, 0, time.UTC), true},
		{"same day late", time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC), true},
		{"day after", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rt.IsDue(tc.now); got != tc.want {
				t.Errorf("IsDue() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRecurringTransactionHasEnded(t *testing.T) {
	end := NewDate(2024, 3, 31)
	rt := RecurringTransaction{EndDate: &end}
	if rt.HasEnded(time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC)) {
		t.Error("end date itself must not count as ended")
	}
	if !rt.HasEnded(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("day after end date must count as ended")
	}
	if (RecurringTransaction{}).HasEnded(time.Now()) {
		t.Error("no end date never ends")
	}
}

func TestRecurringTransactionValidate(t *testing.T) {
	good := RecurringTransaction{
		Name:      "Rent",
		AccountID: "acc-1",
		Type:      Expense,
		Amount:    NewMoney(5000000, "VND"),
		Frequency: Monthly,
		StartDate: NewDate(2024, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	before := NewDate(2023, 12, 31)
	cases := []struct {
		name   string
		mutate func(*RecurringTransaction)
		want   error
	}{
		{"empty name", func(r *RecurringTransaction) { r.Name = " " }, ErrEmptyName},
		{"name longer than a description", func(r *RecurringTransaction) { r.Name = strings.Repeat("x", 201) }, ErrNameLength},
		{"empty account", func(r *RecurringTransaction) { r.AccountID = "" }, ErrEmptyAccount},
		{"transfer type", func(r *RecurringTransaction) { r.Type = Transfer }, ErrInvalidType},
		{"zero amount", func(r *RecurringTransaction) { r.Amount.Minor = 0 }, ErrInvalidAmount},
		{"bad currency", func(r *RecurringTransaction) { r.Amount.Currency = "dong" }, ErrInvalidCurrency},
		{"bad frequency", func(r *RecurringTransaction) { r.Frequency = "hourly" }, ErrInvalidFrequency},
		{"end before start", func(r *RecurringTransaction) { r.EndDate = &before }, ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := good
			tc.mutate(&rt)
			if err := rt.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{
		AccountID:       "acc-1",
		Type:            Expense,
		Amount:          NewMoney(0, "VND"),
		TransactionDate: NewDate(2024, 1, 1),
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("zero amount is allowed for transactions: %v", err)
	}

	tx.Amount.Minor = -1
	if err := tx.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}

	tx.Amount.Minor = 10
	tx.Type = ""
	if err := tx.Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("missing type: got %v", err)
	}
}

func TestBudgetValidateAndContains(t *testing.T) {
	b := Budget{
		Name:       "Groceries",
		Amount:     NewMoney(1000000, "VND"),
		PeriodType: PeriodMonthly,
		StartDate:  NewDate(2024, 1, 1),
		EndDate:    NewDate(2024, 1, 31),
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !b.Contains(NewDate(2024, 1, 1)) || !b.Contains(NewDate(2024, 1, 31)) {
		t.Error("window bounds must be inclusive")
	}
	if b.Contains(NewDate(2024, 2, 1)) {
		t.Error("date after window must be excluded")
	}

	b.EndDate = NewDate(2023, 12, 1)
	if err := b.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}
