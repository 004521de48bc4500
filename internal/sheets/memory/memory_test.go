package memory

import (
	"context"
	"testing"

	"fincore/internal/core"
	"fincore/internal/sheets"
)

func TestWriterAppendIsIdempotent(t *testing.T) {
	w := New()
	ctx := context.Background()
	tx := core.Transaction{
		ID:              "tx-1",
		Type:            core.Expense,
		Amount:          core.NewMoney(4500, "EUR"),
		TransactionDate: core.NewDate(2024, 5, 3),
		Source:          core.SourceManual,
	}

	ref, err := w.Append(ctx, sheets.NewRow(tx, "Food"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("first append: ref=%q err=%v", ref, err)
	}
	again, err := w.Append(ctx, sheets.NewRow(tx, "Food"))
	if err != nil || again != ref {
		t.Fatalf("second append: ref=%q err=%v, want %q", again, err, ref)
	}

	tx.ID = "tx-2"
	if ref, err := w.Append(ctx, sheets.NewRow(tx, "")); err != nil || ref != "mem:2" {
		t.Fatalf("other row: ref=%q err=%v", ref, err)
	}
	if n := len(w.Rows()); n != 2 {
		t.Errorf("stored %d rows, want 2", n)
	}
}

func TestWriterRejectsRowWithoutID(t *testing.T) {
	if _, err := New().Append(context.Background(), sheets.Row{Date: "2024-05-03"}); err == nil {
		t.Error("expected error for row without id")
	}
}
