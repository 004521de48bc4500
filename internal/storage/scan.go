package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fincore/internal/core"
)

// timestampLayout keeps a fixed fraction width so text timestamps sort the
// same way lexically and chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

// dateCol scans a DATE (postgres) or YYYY-MM-DD text (sqlite) column.
type dateCol struct {
	core.Date
	Valid bool
}

func (c *dateCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Date, c.Valid = core.Date{}, false
		return nil
	case time.Time:
		c.Date, c.Valid = core.DateOf(v), true
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (c *dateCol) parse(s string) error {
	// some drivers hand back a full timestamp for date-only values
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	c.Date, c.Valid = d, true
	return nil
}

func (c dateCol) ptr() *core.Date {
	if !c.Valid {
		return nil
	}
	d := c.Date
	return &d
}

// timeCol scans TIMESTAMPTZ (postgres) or text timestamps (sqlite).
type timeCol struct {
	time.Time
	Valid bool
}

func (c *timeCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Time, c.Valid = time.Time{}, false
		return nil
	case time.Time:
		c.Time, c.Valid = v.UTC(), true
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	}
	return fmt.Errorf("scan timestamp: unsupported type %T", src)
}

func (c *timeCol) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			c.Time, c.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("scan timestamp %q: unrecognised layout", s)
}

func timestampArg(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func dateArg(d core.Date) string {
	return d.String()
}

func nullableDate(d *core.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

const recurringColumns = `id, account_id, category_id, name, description, transaction_type,
	amount_minor, currency_code, frequency, day_of_week, day_of_month, month_of_year,
	start_date, end_date, is_active, auto_create, next_run_date, version, created_at, updated_at`

func scanRecurring(row rowScanner) (core.RecurringTransaction, error) {
	var (
		rt               core.RecurringTransaction
		category         sql.NullString
		typ, freq        string
		dow, dom, moy    sql.NullInt64
		start, end, next dateCol
		created, updated timeCol
	)
	err := row.Scan(&rt.ID, &rt.AccountID, &category, &rt.Name, &rt.Description, &typ,
		&rt.Amount.Minor, &rt.Amount.Currency, &freq, &dow, &dom, &moy,
		&start, &end, &rt.IsActive, &rt.AutoCreate, &next, &rt.Version, &created, &updated)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	rt.CategoryID = stringPtr(category)
	rt.Type = core.TransactionType(typ)
	rt.Frequency = core.Frequency(freq)
	rt.Amount.Currency = strings.TrimSpace(rt.Amount.Currency)
	rt.Anchors = core.Anchors{DayOfWeek: intPtr(dow), DayOfMonth: intPtr(dom), MonthOfYear: intPtr(moy)}
	rt.StartDate = start.Date
	rt.EndDate = end.ptr()
	rt.NextRunDate = next.Date
	rt.CreatedAt = created.Time
	rt.UpdatedAt = updated.Time
	return rt, nil
}

const transactionColumns = `id, account_id, category_id, recurring_transaction_id, transaction_type,
	amount_minor, currency_code, transaction_date, description, notes, source, created_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                   core.Transaction
		category, recurring sql.NullString
		typ, source         string
		date                dateCol
		created             timeCol
	)
	err := row.Scan(&t.ID, &t.AccountID, &category, &recurring, &typ,
		&t.Amount.Minor, &t.Amount.Currency, &date, &t.Description, &t.Notes, &source, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = stringPtr(category)
	t.RecurringTransactionID = stringPtr(recurring)
	t.Type = core.TransactionType(typ)
	t.Source = core.TransactionSource(source)
	t.Amount.Currency = strings.TrimSpace(t.Amount.Currency)
	t.TransactionDate = date.Date
	t.CreatedAt = created.Time
	return t, nil
}

const budgetColumns = `id, name, amount_minor, currency_code, period_type, start_date, end_date,
	category_id, rollover, is_active`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b          core.Budget
		period     string
		start, end dateCol
		category   sql.NullString
	)
	err := row.Scan(&b.ID, &b.Name, &b.Amount.Minor, &b.Amount.Currency, &period,
		&start, &end, &category, &b.Rollover, &b.IsActive)
	if err != nil {
		return core.Budget{}, err
	}
	b.PeriodType = core.PeriodType(period)
	b.Amount.Currency = strings.TrimSpace(b.Amount.Currency)
	b.StartDate, b.EndDate = start.Date, end.Date
	b.CategoryID = stringPtr(category)
	return b, nil
}

const categoryColumns = `id, name, type, is_passive`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.IsPassive); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}
