package utils

import (
	"time"
)

// Eastern is the US market timezone.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST offset if the tz database is not available.
		Eastern = time.FixedZone("EST", -5*60*60)
	}
}

// NowEastern returns the current time in the US market timezone.
func NowEastern() time.Time {
	return time.Now().In(Eastern)
}

// MarketOpenTime returns the NYSE opening time (9:30 AM ET) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, Eastern)
}

// MarketCloseTime returns the NYSE closing time (4:00 PM ET) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, Eastern)
}

// IsMarketOpenAt checks whether the NYSE would be open at the given time.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(Eastern)
	if !IsTradingDay(t) {
		return false
	}
	open := MarketOpenTime(t)
	close := MarketCloseTime(t)
	return !t.Before(open) && !t.After(close)
}

// IsTradingDay checks if the given date is a trading day (not weekend, not holiday).
func IsTradingDay(t time.Time) bool {
	t = t.In(Eastern)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsMarketHoliday(t)
}

// PrevTradingDay returns the trading day preceding the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(Eastern).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// LastTradingDateKey returns the DateKey of the most recent completed or
// current trading day as of t.
func LastTradingDateKey(t time.Time) DateKey {
	d := t.In(Eastern)
	if !IsTradingDay(d) {
		d = PrevTradingDay(d)
	}
	return NewDateKey(d, Eastern)
}

// IsMarketHoliday checks if the given date is a US market holiday.
func IsMarketHoliday(t time.Time) bool {
	dateStr := t.In(Eastern).Format(DateLayout)
	_, isHoliday := nyseHolidays2026[dateStr]
	return isHoliday
}

// NYSE full-day holidays for 2026 (update annually).
var nyseHolidays2026 = map[string]string{
	"2026-01-01": "New Year's Day",
	"2026-01-19": "Martin Luther King, Jr. Day",
	"2026-02-16": "Washington's Birthday",
	"2026-04-03": "Good Friday",
	"2026-05-25": "Memorial Day",
	"2026-06-19": "Juneteenth",
	"2026-07-03": "Independence Day (observed)",
	"2026-09-07": "Labor Day",
	"2026-11-26": "Thanksgiving Day",
	"2026-12-25": "Christmas Day",
}

// MarketStatus returns the current market status string.
func MarketStatus() string {
	now := NowEastern()

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	if IsMarketHoliday(now) {
		return "CLOSED (" + nyseHolidays2026[now.Format(DateLayout)] + ")"
	}

	switch {
	case now.Before(MarketOpenTime(now)):
		return "PRE-MARKET"
	case !now.After(MarketCloseTime(now)):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
