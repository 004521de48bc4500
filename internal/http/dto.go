package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fincore/internal/core"
	"fincore/internal/recurrence"
	"fincore/internal/services"
)

// amountFields accepts either a decimal amount in major units ("12.50",
// 12.5) or an exact amount_minor. amount_minor wins when both are set.
type amountFields struct {
	Amount      json.Number `json:"amount"`
	AmountMinor *int64      `json:"amount_minor"`
	Currency    string      `json:"currency"`
}

func (a amountFields) money(defaultCurrency string) (core.Money, error) {
	cur := core.NormalizeCurrency(a.Currency)
	if cur == "" {
		cur = defaultCurrency
	}
	if err := core.ValidateCurrency(cur); err != nil {
		return core.Money{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	switch {
	case a.AmountMinor != nil:
		return core.NewMoney(*a.AmountMinor, cur), nil
	case a.Amount != "":
		minor, err := core.ParseAmount(a.Amount.String(), cur)
		if err != nil {
			return core.Money{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
		return core.NewMoney(minor, cur), nil
	}
	return core.NewMoney(0, cur), nil
}

func optionalID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

type recurringRequest struct {
	AccountID   string  `json:"account_id"`
	CategoryID  *string `json:"category_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	amountFields
	Frequency   string     `json:"frequency"`
	DayOfWeek   *int       `json:"day_of_week"`
	DayOfMonth  *int       `json:"day_of_month"`
	MonthOfYear *int       `json:"month_of_year"`
	StartDate   core.Date  `json:"start_date"`
	EndDate     *core.Date `json:"end_date"`
	IsActive    *bool      `json:"is_active"`
	AutoCreate  *bool      `json:"auto_create"`
	Version     int64      `json:"version"`
}

func (req recurringRequest) toDomain(defaultCurrency string) (core.RecurringTransaction, error) {
	amount, err := req.money(defaultCurrency)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	return core.RecurringTransaction{
		AccountID:   strings.TrimSpace(req.AccountID),
		CategoryID:  optionalID(req.CategoryID),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Type:        core.TransactionType(req.Type),
		Amount:      amount,
		Frequency:   core.Frequency(req.Frequency),
		Anchors: core.Anchors{
			DayOfWeek:   req.DayOfWeek,
			DayOfMonth:  req.DayOfMonth,
			MonthOfYear: req.MonthOfYear,
		},
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		IsActive:   boolOr(req.IsActive, true),
		AutoCreate: boolOr(req.AutoCreate, true),
		Version:    req.Version,
	}, nil
}

type recurringResponse struct {
	ID          string               `json:"id"`
	AccountID   string               `json:"account_id"`
	CategoryID  *string              `json:"category_id,omitempty"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	Frequency   core.Frequency       `json:"frequency"`
	DayOfWeek   *int                 `json:"day_of_week,omitempty"`
	DayOfMonth  *int                 `json:"day_of_month,omitempty"`
	MonthOfYear *int                 `json:"month_of_year,omitempty"`
	StartDate   core.Date            `json:"start_date"`
	EndDate     *core.Date           `json:"end_date,omitempty"`
	IsActive    bool                 `json:"is_active"`
	AutoCreate  bool                 `json:"auto_create"`
	NextRunDate core.Date            `json:"next_run_date"`
	Version     int64                `json:"version"`
	RRule       string               `json:"rrule,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func newRecurringResponse(rt core.RecurringTransaction) recurringResponse {
	rule, _ := recurrence.RRule(rt.Frequency, rt.Anchors, rt.StartDate, rt.EndDate)
	return recurringResponse{
		ID:          rt.ID,
		AccountID:   rt.AccountID,
		CategoryID:  rt.CategoryID,
		Name:        rt.Name,
		Description: rt.Description,
		Type:        rt.Type,
		Amount:      rt.Amount,
		Frequency:   rt.Frequency,
		DayOfWeek:   rt.Anchors.DayOfWeek,
		DayOfMonth:  rt.Anchors.DayOfMonth,
		MonthOfYear: rt.Anchors.MonthOfYear,
		StartDate:   rt.StartDate,
		EndDate:     rt.EndDate,
		IsActive:    rt.IsActive,
		AutoCreate:  rt.AutoCreate,
		NextRunDate: rt.NextRunDate,
		Version:     rt.Version,
		RRule:       rule,
		CreatedAt:   rt.CreatedAt,
		UpdatedAt:   rt.UpdatedAt,
	}
}

type transactionRequest struct {
	AccountID  string  `json:"account_id"`
	CategoryID *string `json:"category_id"`
	Type       string  `json:"type"`
	amountFields
	TransactionDate core.Date `json:"transaction_date"`
	Description     string    `json:"description"`
	Notes           string    `json:"notes"`
	Source          string    `json:"source"`
}

func (req transactionRequest) toDomain(defaultCurrency string, today core.Date) (core.Transaction, error) {
	amount, err := req.money(defaultCurrency)
	if err != nil {
		return core.Transaction{}, err
	}
	source := core.TransactionSource(req.Source)
	switch source {
	case "", core.SourceManual, core.SourceSmartInput:
	default:
		return core.Transaction{}, fmt.Errorf("%w: source %q cannot be set by clients", services.ErrValidation, req.Source)
	}
	date := req.TransactionDate
	if date.IsZero() {
		date = today
	}
	return core.Transaction{
		AccountID:       strings.TrimSpace(req.AccountID),
		CategoryID:      optionalID(req.CategoryID),
		Type:            core.TransactionType(req.Type),
		Amount:          amount,
		TransactionDate: date,
		Description:     strings.TrimSpace(req.Description),
		Notes:           req.Notes,
		Source:          source,
	}, nil
}

type transactionResponse struct {
	ID                     string                 `json:"id"`
	AccountID              string                 `json:"account_id"`
	CategoryID             *string                `json:"category_id,omitempty"`
	RecurringTransactionID *string                `json:"recurring_transaction_id,omitempty"`
	Type                   core.TransactionType   `json:"type"`
	Amount                 core.Money             `json:"amount"`
	TransactionDate        core.Date              `json:"transaction_date"`
	Description            string                 `json:"description,omitempty"`
	Notes                  string                 `json:"notes,omitempty"`
	Source                 core.TransactionSource `json:"source"`
	CreatedAt              time.Time              `json:"created_at"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                     t.ID,
		AccountID:              t.AccountID,
		CategoryID:             t.CategoryID,
		RecurringTransactionID: t.RecurringTransactionID,
		Type:                   t.Type,
		Amount:                 t.Amount,
		TransactionDate:        t.TransactionDate,
		Description:            t.Description,
		Notes:                  t.Notes,
		Source:                 t.Source,
		CreatedAt:              t.CreatedAt,
	}
}

func newTransactionResponses(items []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type outcomeResponse struct {
	Kind         services.OutcomeKind  `json:"kind"`
	Reason       services.SkipReason   `json:"reason,omitempty"`
	RecurringID  string                `json:"recurring_id"`
	NextRunDate  core.Date             `json:"next_run_date"`
	Transactions []transactionResponse `json:"transactions"`
}

func newOutcomeResponse(o services.Outcome) outcomeResponse {
	return outcomeResponse{
		Kind:         o.Kind,
		Reason:       o.Reason,
		RecurringID:  o.RecurringID,
		NextRunDate:  o.NextRunDate,
		Transactions: newTransactionResponses(o.Transactions),
	}
}

type budgetRequest struct {
	Name string `json:"name"`
	amountFields
	PeriodType string    `json:"period_type"`
	StartDate  core.Date `json:"start_date"`
	EndDate    core.Date `json:"end_date"`
	CategoryID *string   `json:"category_id"`
	Rollover   bool      `json:"rollover"`
	IsActive   *bool     `json:"is_active"`
}

func (req budgetRequest) toDomain(defaultCurrency string) (core.Budget, error) {
	amount, err := req.money(defaultCurrency)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		Name:       strings.TrimSpace(req.Name),
		Amount:     amount,
		PeriodType: core.PeriodType(req.PeriodType),
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		CategoryID: optionalID(req.CategoryID),
		Rollover:   req.Rollover,
		IsActive:   boolOr(req.IsActive, true),
	}, nil
}

type budgetResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Amount     core.Money      `json:"amount"`
	PeriodType core.PeriodType `json:"period_type"`
	StartDate  core.Date       `json:"start_date"`
	EndDate    core.Date       `json:"end_date"`
	CategoryID *string         `json:"category_id,omitempty"`
	Rollover   bool            `json:"rollover"`
	IsActive   bool            `json:"is_active"`
}

func newBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:         b.ID,
		Name:       b.Name,
		Amount:     b.Amount,
		PeriodType: b.PeriodType,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		CategoryID: b.CategoryID,
		Rollover:   b.Rollover,
		IsActive:   b.IsActive,
	}
}

type categoryRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsPassive bool   `json:"is_passive"`
}

type categoryResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      core.CategoryType `json:"type"`
	IsPassive bool              `json:"is_passive"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: c.Type, IsPassive: c.IsPassive}
}
