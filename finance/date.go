package finance

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date (no time of day)
// =============================================================================

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date is a calendar date normalized to UTC midnight.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Value: s, Err: ErrInvalidDate}
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.Time.AddDate(0, n, 0)) }

// Properties
func (d Date) Year() int      { return d.Time.Year() }
func (d Date) Day() int       { return d.Time.Day() }
func (d Date) IsZero() bool   { return d.Time.IsZero() }
func (d Date) Month() Month   { return NewMonth(d.Time.Year(), d.Time.Month()) }
func (d Date) String() string { return d.Time.Format(DateLayout) }

// =============================================================================
// MONTH - Year + month key for budgets and aggregation windows
// =============================================================================

// Month is a (year, month) key. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	// Normalize overflow such as month 13.
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month { return NewMonth(t.Year(), t.Month()) }

// CurrentMonth returns the month containing now.
func CurrentMonth() Month { return MonthOf(time.Now()) }

// ParseMonth parses a month key (YYYY-MM).
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, &ValidationError{Field: "month", Value: s, Err: ErrInvalidDate}
	}
	return MonthOf(t), nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
func (m Month) IsZero() bool   { return m.Year == 0 && m.Month == 0 }

func (m Month) AddMonths(n int) Month { return NewMonth(m.Year, m.Month+time.Month(n)) }

// Compare returns -1, 0 or +1.
func (m Month) Compare(other Month) int {
	switch {
	case m.Year < other.Year:
		return -1
	case m.Year > other.Year:
		return 1
	case m.Month < other.Month:
		return -1
	case m.Month > other.Month:
		return 1
	}
	return 0
}

func (m Month) Before(other Month) bool { return m.Compare(other) < 0 }
func (m Month) After(other Month) bool  { return m.Compare(other) > 0 }

// First and Last return the inclusive date bounds of the month.
func (m Month) First() Date { return NewDate(m.Year, m.Month, 1) }
func (m Month) Last() Date  { return m.First().AddMonths(1).AddDays(-1) }

// Contains reports whether d falls in the month.
func (m Month) Contains(d Date) bool { return d.Month() == m }
