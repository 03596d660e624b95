package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in query strings and loan records.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t as seen in loc, as midnight UTC.
// A nil loc uses t's own location.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from start to end.
// It is negative when end is before start.
func DaysBetween(start, end time.Time) int64 {
	from := DateOf(start, nil)
	to := DateOf(end, nil)
	return int64(to.Sub(from).Hours() / 24)
}

// IsDateOverdue checks if dueDate is strictly before the calendar date asOf
func IsDateOverdue(dueDate, asOf time.Time) bool {
	return DateOf(asOf, nil).After(DateOf(dueDate, nil))
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
