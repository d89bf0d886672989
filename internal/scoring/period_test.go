package scoring

import (
	"errors"
	"testing"
	"time"
)

func TestWindowContainingWeekly(t *testing.T) {
	tests := []struct {
		name          string
		reference     time.Time
		expectedStart time.Time
	}{
		{
			name:          "wednesday",
			reference:     time.Date(2026, time.January, 7, 12, 30, 0, 0, time.UTC),
			expectedStart: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:          "monday-is-its-own-start",
			reference:     time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
			expectedStart: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:          "sunday-belongs-to-preceding-monday",
			reference:     time.Date(2026, time.January, 11, 23, 59, 59, 0, time.UTC),
			expectedStart: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, err := WindowContaining(PeriodWeekly, tt.reference)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !window.Start.Equal(tt.expectedStart) {
				t.Fatalf("expected start %s, got %s", tt.expectedStart, window.Start)
			}
			expectedEnd := tt.expectedStart.AddDate(0, 0, 7).Add(-time.Second)
			if !window.End.Equal(expectedEnd) {
				t.Fatalf("expected end %s, got %s", expectedEnd, window.End)
			}
			if err := window.Validate(); err != nil {
				t.Fatalf("expected valid window: %v", err)
			}
		})
	}
}

func TestWindowContainingMonthly(t *testing.T) {
	window, err := WindowContaining(PeriodMonthly, time.Date(2026, time.February, 15, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	expectedEnd := time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC)
	if !window.Start.Equal(expectedStart) {
		t.Fatalf("expected start %s, got %s", expectedStart, window.Start)
	}
	if !window.End.Equal(expectedEnd) {
		t.Fatalf("expected end %s, got %s", expectedEnd, window.End)
	}
}

func TestWindowContainingRejectsUnknownPeriod(t *testing.T) {
	if _, err := WindowContaining(Period("DAILY"), time.Now()); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	period, err := ParsePeriod(" weekly ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period != PeriodWeekly {
		t.Fatalf("expected WEEKLY, got %s", period)
	}
	if _, err := ParsePeriod("quarterly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestWindowValidateRejectsInvertedBoundaries(t *testing.T) {
	window := Window{
		Start: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := window.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if err := (Window{}).Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for zero window, got %v", err)
	}
}
