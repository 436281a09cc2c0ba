package domain

import (
	"fmt"
	"time"
)

// PeriodType is the granularity of a sales forecast period.
type PeriodType string

const (
	PeriodWeek    PeriodType = "week"
	PeriodMonth   PeriodType = "month"
	PeriodQuarter PeriodType = "quarter"
)

// ParsePeriodType validates a raw period type string.
func ParsePeriodType(raw string) (PeriodType, error) {
	switch PeriodType(raw) {
	case PeriodWeek, PeriodMonth, PeriodQuarter:
		return PeriodType(raw), nil
	default:
		return "", fmt.Errorf("unsupported period type %q", raw)
	}
}

// PeriodStart truncates t to the start of its period in UTC.
// Weeks start on Monday; quarters on Jan/Apr/Jul/Oct 1st.
func PeriodStart(t time.Time, pt PeriodType) time.Time {
	t = t.UTC()
	switch pt {
	case PeriodWeek:
		day := t.Truncate(24 * time.Hour)
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the week that started the prior Monday
		}
		return day.AddDate(0, 0, -(weekday - 1))
	case PeriodQuarter:
		quarterMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// PeriodEnd returns the exclusive end of the period beginning at start.
func PeriodEnd(start time.Time, pt PeriodType) time.Time {
	switch pt {
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodQuarter:
		return start.AddDate(0, 3, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
