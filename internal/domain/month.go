package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	monthDateLayout = "2006-01-02"
	monthKeyLayout  = "2006-01"
)

// Accepted year range for budget months
const (
	MinMonthYear = 1900
	MaxMonthYear = 2100
)

// Month is a calendar month, held as midnight UTC on its first day.
type Month time.Time

// NewMonth returns the Month for the given year and month.
func NewMonth(year int, month time.Month) Month {
	return Month(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf truncates t to the month it falls in. The calendar date of t is used as-is,
// without converting to UTC first.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth parses "YYYY-MM-DD" (day must be 01) or "YYYY-MM".
// Years outside MinMonthYear..MaxMonthYear are rejected, so a parsed Month is never zero.
func ParseMonth(value string) (Month, error) {
	m, err := parseMonth(value)
	if err != nil {
		return Month{}, err
	}
	if year := m.Time().Year(); year < MinMonthYear || year > MaxMonthYear {
		return Month{}, NewValidationError("month", fmt.Sprintf("year must be between %d and %d", MinMonthYear, MaxMonthYear))
	}
	return m, nil
}

func parseMonth(value string) (Month, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Month{}, NewValidationError("month", "month is required")
	}

	if len(value) == len(monthKeyLayout) {
		t, err := time.Parse(monthKeyLayout, value)
		if err != nil {
			return Month{}, NewValidationError("month", "month must be formatted as YYYY-MM-DD")
		}
		return MonthOf(t), nil
	}

	t, err := time.Parse(monthDateLayout, value)
	if err != nil {
		return Month{}, NewValidationError("month", "month must be formatted as YYYY-MM-DD")
	}
	if t.Day() != 1 {
		return Month{}, NewValidationError("month", "month must be the first day of a month")
	}
	return MonthOf(t), nil
}

// Time returns the first instant of the month.
func (m Month) Time() time.Time {
	return time.Time(m)
}

// End returns the first instant of the following month.
func (m Month) End() time.Time {
	return time.Time(m).AddDate(0, 1, 0)
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool {
	return time.Time(m).IsZero()
}

// Equal reports whether both values denote the same month.
func (m Month) Equal(other Month) bool {
	return time.Time(m).Equal(time.Time(other))
}

// Before reports whether m is earlier than other.
func (m Month) Before(other Month) bool {
	return time.Time(m).Before(time.Time(other))
}

// String returns the month as YYYY-MM-DD.
func (m Month) String() string {
	return time.Time(m).Format(monthDateLayout)
}

// Key returns the month as YYYY-MM, used to address per-month event topics.
func (m Month) Key() string {
	return time.Time(m).Format(monthKeyLayout)
}

// MarshalJSON renders the month as "YYYY-MM-DD".
func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// UnmarshalJSON accepts the same formats as ParseMonth. null leaves m unchanged.
func (m *Month) UnmarshalJSON(data []byte) error {
	var value *string
	if err := json.Unmarshal(data, &value); err != nil {
		return NewValidationError("month", "month must be a string formatted as YYYY-MM-DD")
	}
	if value == nil {
		return nil
	}

	parsed, err := ParseMonth(*value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
