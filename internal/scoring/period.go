package scoring

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period identifies a scoring window kind.
type Period string

const (
	// PeriodWeekly scores a Monday through Sunday ISO week.
	PeriodWeekly Period = "WEEKLY"
	// PeriodMonthly scores a full calendar month.
	PeriodMonthly Period = "MONTHLY"
)

// Periods lists every supported period kind in processing order.
var Periods = []Period{PeriodWeekly, PeriodMonthly}

var (
	// ErrInvalidPeriod indicates an unsupported period kind.
	ErrInvalidPeriod = errors.New("scoring: invalid period")
	// ErrInvalidWindow indicates malformed window boundaries.
	ErrInvalidWindow = errors.New("scoring: invalid period window")
)

// ParsePeriod normalizes raw input into a Period.
func ParsePeriod(rawInput string) (Period, error) {
	switch strings.ToUpper(strings.TrimSpace(rawInput)) {
	case string(PeriodWeekly):
		return PeriodWeekly, nil
	case string(PeriodMonthly):
		return PeriodMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, rawInput)
	}
}

// String returns the period's wire value.
func (p Period) String() string {
	return string(p)
}

// Window is an inclusive [Start, End] scoring interval in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowContaining returns the weekly or monthly window that covers the
// reference instant. Weeks start Monday 00:00 UTC; months on the first.
// The end bound is the last second of the window.
func WindowContaining(period Period, reference time.Time) (Window, error) {
	ref := reference.UTC()
	switch period {
	case PeriodWeekly:
		weekday := ref.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, -(int(weekday) - int(time.Monday)))
		return Window{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Second)}, nil
	case PeriodMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}, nil
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

// Validate rejects windows with zero or inverted boundaries.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: zero boundary", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s not after start %s", ErrInvalidWindow, w.End, w.Start)
	}
	return nil
}
