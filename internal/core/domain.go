package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	PeriodWeekly    PeriodType = "weekly"
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
	PeriodCustom    PeriodType = "custom"
)

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
	CategoryBoth    CategoryType = "both"
)

const (
	SourceManual     TransactionSource = "manual"
	SourceRecurring  TransactionSource = "recurring"
	SourceSmartInput TransactionSource = "smart_input"
)

type (
	Frequency         string
	TransactionType   string
	PeriodType        string
	CategoryType      string
	TransactionSource string

	Date struct {
		time.Time
	}

	// Anchors pins a recurrence to calendar positions. Which fields matter
	// depends on the frequency: DayOfWeek for weekly, DayOfMonth for monthly,
	// DayOfMonth and MonthOfYear for yearly.
	Anchors struct {
		DayOfWeek   *int // 0 = Sunday
		DayOfMonth  *int // 1-31
		MonthOfYear *int // 1-12
	}

	RecurringTransaction struct {
		ID          string
		AccountID   string
		CategoryID  *string
		Name        string
		Description string
		Type        TransactionType
		Amount      Money
		Frequency   Frequency
		Anchors     Anchors
		StartDate   Date
		EndDate     *Date
		IsActive    bool
		AutoCreate  bool
		NextRunDate Date
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Transaction struct {
		ID                     string
		AccountID              string
		CategoryID             *string
		RecurringTransactionID *string
		Type                   TransactionType
		Amount                 Money
		TransactionDate        Date
		Description            string
		Notes                  string
		Source                 TransactionSource
		CreatedAt              time.Time
	}

	Budget struct {
		ID         string
		Name       string
		Amount     Money
		PeriodType PeriodType
		StartDate  Date
		EndDate    Date
		CategoryID *string
		Rollover   bool
		IsActive   bool
	}

	Category struct {
		ID        string
		Name      string
		Type      CategoryType
		IsPassive bool
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidPeriod     = errors.New("invalid period type")
	ErrInvalidDateRange  = errors.New("end date must not be before start date")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyAccount      = errors.New("empty account")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
	ErrNameLength        = errors.New("name too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location and returns it as a UTC Date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o, ignoring time of day.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o, ignoring time of day.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Equal reports whether d and o fall on the same day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so dates travel as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts YYYY-MM-DD or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*d = Date{}
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// IntPtr is a small helper for optional anchor fields.
func IntPtr(v int) *int {
	return &v
}

// IsDue reports whether the definition's next run date has arrived at now.
// Only the calendar date of now is considered.
func (rt RecurringTransaction) IsDue(now time.Time) bool {
	return !rt.NextRunDate.After(DateOf(now))
}

// HasEnded reports whether now is past the definition's end date.
func (rt RecurringTransaction) HasEnded(now time.Time) bool {
	return rt.EndDate != nil && DateOf(now).After(*rt.EndDate)
}

// Validate checks the fields a user supplies. Anchor ranges are checked by
// the recurrence package, which knows the frequency rules.
func (rt RecurringTransaction) Validate() error {
	if strings.TrimSpace(rt.Name) == "" {
		return ErrEmptyName
	}
	// The name becomes the description of every materialized transaction.
	if len(rt.Name) > 200 {
		return ErrNameLength
	}
	if len(rt.Description) > 200 {
		return ErrDescriptionLength
	}
	if strings.TrimSpace(rt.AccountID) == "" {
		return ErrEmptyAccount
	}
	if rt.Type != Income && rt.Type != Expense {
		return fmt.Errorf("%w: %q", ErrInvalidType, rt.Type)
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if !rt.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, rt.Frequency)
	}
	if err := rt.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if rt.EndDate != nil {
		if err := rt.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if rt.EndDate.Before(rt.StartDate) {
			return ErrInvalidDateRange
		}
	}
	return nil
}

// Validate enforces the shared creation contract for every writer of the
// transactions table: explicit type, non-negative amount, known currency.
func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.Amount.Minor < 0 {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(t.Amount.Currency); err != nil {
		return err
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	if err := t.TransactionDate.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Amount.Minor < 0 {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(b.Amount.Currency); err != nil {
		return err
	}
	if !b.PeriodType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, b.PeriodType)
	}
	if err := b.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := b.EndDate.Validate(); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// Contains reports whether d falls inside the budget window, bounds included.
func (b Budget) Contains(d Date) bool {
	return !d.Before(b.StartDate) && !d.After(b.EndDate)
}
