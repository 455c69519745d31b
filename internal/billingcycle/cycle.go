// Package billingcycle resolves a fee cycle and a reference instant into the
// concrete measurement window for one bill, and decides whether the instant
// sits on that cycle's billing boundary. Everything here is pure; callers pass
// literal instants and the package never consults a clock of its own.
package billingcycle

import (
	"fmt"
	"time"
)

// FeeCycle combines a period unit with an accumulation mode. TOTAL cycles
// measure everything in existence up to the reference instant; NEW cycles
// measure only what appeared within the most recent one period.
type FeeCycle string

const (
	TotalByYear  FeeCycle = "total-by-year"
	TotalByMonth FeeCycle = "total-by-month"
	TotalByDay   FeeCycle = "total-by-day"
	TotalByHour  FeeCycle = "total-by-hour"
	NewByYear    FeeCycle = "new-by-year"
	NewByMonth   FeeCycle = "new-by-month"
	NewByDay     FeeCycle = "new-by-day"
	NewByHour    FeeCycle = "new-by-hour"
)

// Epoch is the "beginning of time" sentinel used as the start of TOTAL
// windows. Nothing billable predates it.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Window is the half-open measurement interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (c FeeCycle) Valid() bool {
	switch c {
	case TotalByYear, TotalByMonth, TotalByDay, TotalByHour,
		NewByYear, NewByMonth, NewByDay, NewByHour:
		return true
	}
	return false
}

func (c FeeCycle) String() string { return string(c) }

// Cumulative reports whether the cycle accumulates since Epoch.
func (c FeeCycle) Cumulative() bool {
	switch c {
	case TotalByYear, TotalByMonth, TotalByDay, TotalByHour:
		return true
	}
	return false
}

// Resolve returns the measurement window for the cycle at reference instant t.
func Resolve(cycle FeeCycle, t time.Time) (Window, error) {
	t = t.UTC()

	if cycle.Cumulative() {
		return Window{Start: Epoch, End: t}, nil
	}

	switch cycle {
	case NewByHour:
		return Window{Start: t.Add(-time.Hour), End: t}, nil
	case NewByDay:
		return Window{Start: t.AddDate(0, 0, -1), End: t}, nil
	case NewByMonth:
		return Window{Start: t.AddDate(0, -1, 0), End: t}, nil
	case NewByYear:
		return Window{Start: t.AddDate(-1, 0, 0), End: t}, nil
	}

	return Window{}, fmt.Errorf("unknown fee cycle %q", cycle)
}

// ShouldBill reports whether t lands on the cycle's period boundary. The
// sweep evaluates this once per tick; ticks between boundaries are no-ops
// for the configuration.
func ShouldBill(cycle FeeCycle, t time.Time) bool {
	t = t.UTC()

	switch cycle {
	case TotalByHour, NewByHour:
		return t.Minute() == 0
	case TotalByDay, NewByDay:
		return t.Hour() == 0
	case TotalByMonth, NewByMonth:
		return t.Day() == 1 && t.Hour() == 0
	case TotalByYear, NewByYear:
		return t.Month() == time.January && t.Day() == 1 && t.Hour() == 0
	}
	return false
}
