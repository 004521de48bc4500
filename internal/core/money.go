// Package core provides money parsing and handling utilities.
//
// Amounts are integer minor units tagged with an ISO 4217 currency code.
// The number of minor digits depends on the currency: VND has none, so one
// minor unit is one dong.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units of Currency.
type Money struct {
	Minor    int64  `json:"minor"`
	Currency string `json:"currency"`
}

// zeroExponent lists currencies without a minor unit.
var zeroExponent = map[string]bool{
	"VND": true,
	"JPY": true,
	"KRW": true,
	"CLP": true,
	"ISK": true,
}

// NewMoney returns an amount in minor units with a normalized currency code.
func NewMoney(minor int64, currency string) Money {
	return Money{Minor: minor, Currency: NormalizeCurrency(currency)}
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks the code looks like ISO 4217.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// Exponent returns the number of minor digits for a currency.
func Exponent(currency string) int32 {
	if zeroExponent[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// Validate requires a strictly positive amount and a valid currency.
func (m Money) Validate() error {
	if m.Minor <= 0 {
		return ErrInvalidAmount
	}
	return ValidateCurrency(m.Currency)
}

func (m Money) Add(o Money) Money {
	return Money{Minor: m.Minor + o.Minor, Currency: m.Currency}
}

func (m Money) Sub(o Money) Money {
	return Money{Minor: m.Minor - o.Minor, Currency: m.Currency}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -Exponent(m.Currency))
}

// String renders the amount in major units followed by the currency code.
func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.Currency)) + " " + m.Currency
}

// ParseAmount converts a decimal string to minor units of currency.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up at the currency's exponent. Negative, zero and malformed inputs are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.345", "EUR") -> 1235, nil
//	ParseAmount("500000", "VND") -> 500000, nil
//	ParseAmount("1,5", "VND")    -> 2, nil
func ParseAmount(s, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	exp := Exponent(currency)
	minor := d.Shift(exp).Round(0)
	if !minor.IsInteger() || minor.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if minor.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
