// Package sheets defines the ledger export port and the row layout shared by
// its writers.
package sheets

import (
	"context"

	"fincore/internal/core"
)

// Header is the first row of every ledger sheet. The id column comes last
// and is what writers use to recognize rows they already exported.
var Header = []any{"Date", "Type", "Description", "Amount", "Currency", "Category", "Source", "ID"}

// TransactionWriter exports rows. Append must be idempotent on Row.ID:
// appending a row that is already present returns its existing reference.
type TransactionWriter interface {
	Append(ctx context.Context, r Row) (rowRef string, err error)
}

// Row is one exported transaction with every cell already rendered.
type Row struct {
	Year        int
	Date        string
	Type        string
	Description string
	Amount      string // major units, currency exponent digits
	Currency    string
	Category    string
	Source      string
	ID          string
}

// NewRow renders t. category is the display name of t's category, empty
// when it has none.
func NewRow(t core.Transaction, category string) Row {
	return Row{
		Year:        t.TransactionDate.Year(),
		Date:        t.TransactionDate.String(),
		Type:        string(t.Type),
		Description: t.Description,
		Amount:      t.Amount.Decimal().StringFixed(core.Exponent(t.Amount.Currency)),
		Currency:    t.Amount.Currency,
		Category:    category,
		Source:      string(t.Source),
		ID:          t.ID,
	}
}

// Values returns the cells in Header order.
func (r Row) Values() []any {
	return []any{r.Date, r.Type, r.Description, r.Amount, r.Currency, r.Category, r.Source, r.ID}
}
