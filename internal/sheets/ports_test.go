package sheets

import (
	"testing"

	"fincore/internal/core"
)

func TestNewRow(t *testing.T) {
	cat := "cat-1"
	tests := []struct {
		name       string
		amount     core.Money
		wantAmount string
	}{
		{"two decimals", core.NewMoney(4505, "eur"), "45.05"},
		{"zero exponent", core.NewMoney(200000, "VND"), "200000"},
		{"whole euros keep decimals", core.NewMoney(1200, "EUR"), "12.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRow(core.Transaction{
				ID:              "tx-1",
				CategoryID:      &cat,
				Type:            core.Expense,
				Amount:          tt.amount,
				TransactionDate: core.NewDate(2024, 2, 29),
				Description:     "Cleaner",
				Source:          core.SourceRecurring,
			}, "Home")
			if r.Amount != tt.wantAmount {
				t.Errorf("Amount = %q, want %q", r.Amount, tt.wantAmount)
			}
			if r.Year != 2024 || r.Date != "2024-02-29" || r.Category != "Home" || r.Source != "recurring" {
				t.Errorf("row = %+v", r)
			}
			vals := r.Values()
			if len(vals) != len(Header) || vals[len(vals)-1] != "tx-1" {
				t.Errorf("Values = %v", vals)
			}
		})
	}
}
