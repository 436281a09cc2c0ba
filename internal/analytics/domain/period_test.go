package domain

import (
	"testing"
	"time"
)

func TestPeriodStartWeekBeginsMonday(t *testing.T) {
	// Wednesday 2025-06-11
	wednesday := time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)
	got := PeriodStart(wednesday, PeriodWeek)
	want := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected week start %v, got %v", want, got)
	}
}

func TestPeriodStartSundayBelongsToPriorMonday(t *testing.T) {
	sunday := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	got := PeriodStart(sunday, PeriodWeek)
	want := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected week start %v, got %v", want, got)
	}
}

func TestPeriodStartMonthAndQuarter(t *testing.T) {
	ts := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)

	if got := PeriodStart(ts, PeriodMonth); !got.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %v", got)
	}
	if got := PeriodStart(ts, PeriodQuarter); !got.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected quarter start %v", got)
	}
}

func TestPeriodEndIsExclusiveBoundary(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := PeriodEnd(start, PeriodWeek); !got.Equal(start.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected week end %v", got)
	}
	if got := PeriodEnd(start, PeriodMonth); !got.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month end %v", got)
	}
	if got := PeriodEnd(start, PeriodQuarter); !got.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected quarter end %v", got)
	}
}

func TestParsePeriodTypeRejectsUnknown(t *testing.T) {
	for _, valid := range []string{"week", "month", "quarter"} {
		if _, err := ParsePeriodType(valid); err != nil {
			t.Fatalf("expected %q to parse, got %v", valid, err)
		}
	}
	if _, err := ParsePeriodType("fortnight"); err == nil {
		t.Fatal("expected error for unsupported period type")
	}
}
