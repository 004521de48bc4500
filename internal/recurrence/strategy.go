package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"fincore/internal/core"
)

// Stepper is the strategy interface for one frequency. Each implementation
// encapsulates how occurrences of that frequency are laid out on the calendar.
type Stepper interface {
	// Next returns the occurrence following from.
	Next(a core.Anchors, from core.Date) (core.Date, error)
	// First returns the earliest occurrence on or after start.
	First(a core.Anchors, start core.Date) (core.Date, error)
}

type dailyStepper struct{}

func (dailyStepper) Next(_ core.Anchors, from core.Date) (core.Date, error) {
	return from.AddDays(1), nil
}

func (dailyStepper) First(_ core.Anchors, start core.Date) (core.Date, error) {
	return start, nil
}

// weeklyStepper delegates weekday matching to an RFC 5545 rule. Without a
// weekday anchor it steps a flat seven days.
type weeklyStepper struct{}

func (weeklyStepper) Next(a core.Anchors, from core.Date) (core.Date, error) {
	if a.DayOfWeek == nil {
		return from.AddDays(7), nil
	}
	return onOrAfterWeekday(*a.DayOfWeek, from.AddDays(1))
}

func (weeklyStepper) First(a core.Anchors, start core.Date) (core.Date, error) {
	if a.DayOfWeek == nil {
		return start, nil
	}
	return onOrAfterWeekday(*a.DayOfWeek, start)
}

type monthlyStepper struct{}

func (monthlyStepper) Next(a core.Anchors, from core.Date) (core.Date, error) {
	day := from.Day()
	if a.DayOfMonth != nil {
		day = *a.DayOfMonth
	}
	return clamped(from.Year(), from.Month()+1, day), nil
}

func (monthlyStepper) First(a core.Anchors, start core.Date) (core.Date, error) {
	day := start.Day()
	if a.DayOfMonth != nil {
		day = *a.DayOfMonth
	}
	candidate := clamped(start.Year(), start.Month(), day)
	if candidate.Before(start) {
		candidate = clamped(start.Year(), start.Month()+1, day)
	}
	return candidate, nil
}

type yearlyStepper struct{}

func (yearlyStepper) Next(a core.Anchors, from core.Date) (core.Date, error) {
	month, day := yearlyTarget(a, from)
	return clamped(from.Year()+1, month, day), nil
}

func (yearlyStepper) First(a core.Anchors, start core.Date) (core.Date, error) {
	month, day := yearlyTarget(a, start)
	candidate := clamped(start.Year(), month, day)
	if candidate.Before(start) {
		candidate = clamped(start.Year()+1, month, day)
	}
	return candidate, nil
}

func yearlyTarget(a core.Anchors, ref core.Date) (time.Month, int) {
	month, day := ref.Month(), ref.Day()
	if a.MonthOfYear != nil {
		month = time.Month(*a.MonthOfYear)
	}
	if a.DayOfMonth != nil {
		day = *a.DayOfMonth
	}
	return month, day
}

// clamped builds year/month/day, pulling day back to the month's last day
// when the month is shorter. month may overflow into the next year.
func clamped(year int, month time.Month, day int) core.Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := core.DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// weekdays maps Go's Sunday-based numbering to rrule weekdays.
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func onOrAfterWeekday(wd int, from core.Date) (core.Date, error) {
	if wd < 0 || wd > 6 {
		return core.Date{}, fmt.Errorf("%w: day_of_week %d", ErrInvalidRecurrenceConfig, wd)
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{weekdays[wd]},
		Dtstart:   from.Time,
	})
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", ErrInvalidRecurrenceConfig, err)
	}
	next := rule.After(from.Time, true)
	if next.IsZero() {
		return core.Date{}, fmt.Errorf("%w: no weekly occurrence after %s", ErrInvalidRecurrenceConfig, from)
	}
	return core.DateOf(next), nil
}

// steppers maps frequencies to their strategies.
var steppers = map[core.Frequency]Stepper{
	core.Daily:   dailyStepper{},
	core.Weekly:  weeklyStepper{},
	core.Monthly: monthlyStepper{},
	core.Yearly:  yearlyStepper{},
}

// StepperFor returns the strategy for a frequency.
func StepperFor(freq core.Frequency) (Stepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrenceConfig, freq)
	}
	return s, nil
}
