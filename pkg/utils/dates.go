// Package utils provides calendar-date keys and US market-session helpers
// shared across eventpulse.
package utils

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates (ISO-8601, date only).
const DateLayout = "2006-01-02"

// DateKey is a calendar date normalized to YYYY-MM-DD. It is the join key
// for bar series, option expirations, and snapshot history: two DateKeys
// compare equal iff they name the same trading day, regardless of the
// timezone or clock time of the source timestamp.
type DateKey string

// NewDateKey truncates a timestamp to its calendar date in the given location.
func NewDateKey(t time.Time, loc *time.Location) DateKey {
	if loc == nil {
		loc = time.UTC
	}
	return DateKey(t.In(loc).Format(DateLayout))
}

// DateKeyUTC truncates a timestamp to its UTC calendar date.
func DateKeyUTC(t time.Time) DateKey {
	return NewDateKey(t, time.UTC)
}

// ParseDateKey validates and normalizes a YYYY-MM-DD string.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateKey(t.Format(DateLayout)), nil
}

// String returns the YYYY-MM-DD form.
func (d DateKey) String() string { return string(d) }

// IsZero reports whether the key is unset.
func (d DateKey) IsZero() bool { return d == "" }

// Time returns the date at midnight UTC. Invalid keys return the zero time.
func (d DateKey) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Before reports whether d is an earlier calendar date than other.
// Lexicographic order on YYYY-MM-DD is chronological order.
func (d DateKey) Before(other DateKey) bool { return d < other }

// After reports whether d is a later calendar date than other.
func (d DateKey) After(other DateKey) bool { return d > other }

// AddDays returns the key for d shifted by n calendar days.
func (d DateKey) AddDays(n int) DateKey {
	return DateKey(d.Time().AddDate(0, 0, n).Format(DateLayout))
}

// DaysUntil returns the whole calendar days from d to other (negative when
// other is earlier).
func (d DateKey) DaysUntil(other DateKey) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}
