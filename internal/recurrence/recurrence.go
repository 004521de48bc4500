// Package recurrence computes occurrence dates for recurring transactions.
//
// Everything here is pure: no clock, no storage. Callers pass the reference
// date explicitly. Each frequency has its own Stepper; monthly and yearly
// steps clamp to the last day of shorter months.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"fincore/internal/core"
)

// ErrInvalidRecurrenceConfig reports anchor fields that do not fit the
// chosen frequency.
var ErrInvalidRecurrenceConfig = errors.New("invalid recurrence config")

// NextOccurrence returns the occurrence that follows from.
//
//	daily    from + 1 day
//	weekly   first day_of_week on or after from + 1, or from + 7 without anchor
//	monthly  day_of_month of the following month, clamped
//	yearly   month_of_year/day_of_month of the following year, clamped
//
// Missing monthly and yearly anchors fall back to from's own day and month.
func NextOccurrence(freq core.Frequency, a core.Anchors, from core.Date) (core.Date, error) {
	if err := ValidateAnchors(freq, a, false); err != nil {
		return core.Date{}, err
	}
	s, err := StepperFor(freq)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(a, from)
}

// FirstOccurrence returns the earliest occurrence on or after start.
func FirstOccurrence(freq core.Frequency, a core.Anchors, start core.Date) (core.Date, error) {
	if err := ValidateAnchors(freq, a, false); err != nil {
		return core.Date{}, err
	}
	s, err := StepperFor(freq)
	if err != nil {
		return core.Date{}, err
	}
	return s.First(a, start)
}

// ValidateAnchors rejects out-of-range anchors. With strict set, the anchors a
// frequency depends on must also be present.
func ValidateAnchors(freq core.Frequency, a core.Anchors, strict bool) error {
	if !freq.IsValid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrenceConfig, freq)
	}
	if a.DayOfWeek != nil && (*a.DayOfWeek < 0 || *a.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week %d out of range 0-6", ErrInvalidRecurrenceConfig, *a.DayOfWeek)
	}
	if a.DayOfMonth != nil && (*a.DayOfMonth < 1 || *a.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month %d out of range 1-31", ErrInvalidRecurrenceConfig, *a.DayOfMonth)
	}
	if a.MonthOfYear != nil && (*a.MonthOfYear < 1 || *a.MonthOfYear > 12) {
		return fmt.Errorf("%w: month_of_year %d out of range 1-12", ErrInvalidRecurrenceConfig, *a.MonthOfYear)
	}
	if freq == core.Yearly && a.MonthOfYear != nil && a.DayOfMonth != nil {
		// 2024 is a leap year, so Feb 29 stays legal and clamps in other years.
		if limit := core.DaysIn(2024, time.Month(*a.MonthOfYear)); *a.DayOfMonth > limit {
			return fmt.Errorf("%w: day_of_month %d never occurs in month %d", ErrInvalidRecurrenceConfig, *a.DayOfMonth, *a.MonthOfYear)
		}
	}
	if !strict {
		return nil
	}
	switch freq {
	case core.Weekly:
		if a.DayOfWeek == nil {
			return fmt.Errorf("%w: weekly requires day_of_week", ErrInvalidRecurrenceConfig)
		}
	case core.Monthly:
		if a.DayOfMonth == nil {
			return fmt.Errorf("%w: monthly requires day_of_month", ErrInvalidRecurrenceConfig)
		}
	case core.Yearly:
		if a.DayOfMonth == nil || a.MonthOfYear == nil {
			return fmt.Errorf("%w: yearly requires day_of_month and month_of_year", ErrInvalidRecurrenceConfig)
		}
	}
	return nil
}

// Normalize keeps only the anchors freq uses and fills missing ones from
// start. A monthly definition started on the 31st then keeps landing on the
// last day of the month instead of drifting to the 28th after February.
func Normalize(freq core.Frequency, a core.Anchors, start core.Date) core.Anchors {
	var out core.Anchors
	switch freq {
	case core.Weekly:
		out.DayOfWeek = a.DayOfWeek
		if out.DayOfWeek == nil {
			out.DayOfWeek = core.IntPtr(int(start.Weekday()))
		}
	case core.Monthly:
		out.DayOfMonth = a.DayOfMonth
		if out.DayOfMonth == nil {
			out.DayOfMonth = core.IntPtr(start.Day())
		}
	case core.Yearly:
		out.DayOfMonth = a.DayOfMonth
		out.MonthOfYear = a.MonthOfYear
		if out.DayOfMonth == nil {
			out.DayOfMonth = core.IntPtr(start.Day())
		}
		if out.MonthOfYear == nil {
			out.MonthOfYear = core.IntPtr(int(start.Month()))
		}
	}
	return out
}

var frequencies = map[core.Frequency]rrule.Frequency{
	core.Daily:   rrule.DAILY,
	core.Weekly:  rrule.WEEKLY,
	core.Monthly: rrule.MONTHLY,
	core.Yearly:  rrule.YEARLY,
}

// RRule renders a definition as RFC 5545 text (DTSTART plus RRULE lines) for
// calendar export. Clamped days are expressed with BYMONTHDAY=-1 plus BYSETPOS
// so short months still produce one occurrence.
func RRule(freq core.Frequency, a core.Anchors, start core.Date, until *core.Date) (string, error) {
	if err := ValidateAnchors(freq, a, false); err != nil {
		return "", err
	}
	opt := rrule.ROption{Freq: frequencies[freq], Dtstart: start.Time}
	switch freq {
	case core.Weekly:
		if a.DayOfWeek != nil {
			opt.Byweekday = []rrule.Weekday{weekdays[*a.DayOfWeek]}
		}
	case core.Monthly, core.Yearly:
		if a.DayOfMonth != nil {
			if *a.DayOfMonth > 28 {
				opt.Bymonthday = []int{*a.DayOfMonth, -1}
				opt.Bysetpos = []int{1}
			} else {
				opt.Bymonthday = []int{*a.DayOfMonth}
			}
		}
		if freq == core.Yearly && a.MonthOfYear != nil {
			opt.Bymonth = []int{*a.MonthOfYear}
		}
	}
	if until != nil {
		opt.Until = until.Time
	}
	return opt.String(), nil
}
