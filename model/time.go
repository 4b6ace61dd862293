package model

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (this engine never needs sub-day precision)
// =============================================================================

// Date is a calendar day normalized to midnight UTC.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, &InputError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
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
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int              { return d.Time.Year() }
func (d Date) Month() time.Month      { return d.Time.Month() }
func (d Date) Day() int               { return d.Time.Day() }
func (d Date) Weekday() time.Weekday  { return d.Time.Weekday() }
func (d Date) IsZero() bool           { return d.Time.IsZero() }
func (d Date) YearMonth() YearMonth   { return YearMonth{Year: d.Year(), Month: d.Month()} }
func (d Date) String() string         { return d.Time.Format(dateLayout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// YEAR MONTH - The planning unit for monthly targets
// =============================================================================

// YearMonth identifies a calendar month, serialized as "YYYY-MM".
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, &InputError{Field: "yearMonth", Reason: fmt.Sprintf("%q is not a YYYY-MM month", s)}
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool   { return ym.Year == 0 && ym.Month == 0 }
func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }
func (ym YearMonth) Start() Date    { return NewDate(ym.Year, ym.Month, 1) }
func (ym YearMonth) End() Date      { return ym.Start().AddDays(ym.DaysInMonth() - 1) }
func (ym YearMonth) Range() DateRange {
	return DateRange{From: ym.Start(), To: ym.End()}
}

// DaysInMonth returns 28..31.
func (ym YearMonth) DaysInMonth() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysPassed is the elapsed-day count used for linear projection: 0 before the
// month starts, the full month after it ends, otherwise the day-of-month of asOf.
func (ym YearMonth) DaysPassed(asOf Date) int {
	switch {
	case asOf.Before(ym.Start()):
		return 0
	case asOf.After(ym.End()):
		return ym.DaysInMonth()
	default:
		return asOf.Day()
	}
}

func (ym YearMonth) MarshalText() ([]byte, error) { return []byte(ym.String()), nil }

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// =============================================================================
// DATE RANGE - Inclusive [From, To]
// =============================================================================

type DateRange struct {
	From Date
	To   Date
}

// Validate rejects zero bounds and inverted ranges.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return &InputError{Field: "period", Reason: "both start and end dates are required"}
	}
	if r.To.Before(r.From) {
		return &InputError{Field: "period", Reason: fmt.Sprintf("end %s is before start %s", r.To, r.From)}
	}
	return nil
}

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.From) && d.BeforeOrEqual(r.To)
}

// Days returns every day in the range.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}
