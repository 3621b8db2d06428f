package utils

import (
	"testing"
	"time"
)

// ── DateKey ──

func TestNewDateKeyNormalizesTimezone(t *testing.T) {
	// 11 PM Eastern on Mar 3 is already Mar 4 in UTC; the key must follow
	// the requested location, not the clock.
	late := time.Date(2026, 3, 3, 23, 0, 0, 0, Eastern)
	if got := NewDateKey(late, Eastern); got != "2026-03-03" {
		t.Errorf("NewDateKey(Eastern) = %s, want 2026-03-03", got)
	}
	if got := DateKeyUTC(late); got != "2026-03-04" {
		t.Errorf("DateKeyUTC = %s, want 2026-03-04", got)
	}
}

func TestParseDateKey(t *testing.T) {
	d, err := ParseDateKey("2026-02-18")
	if err != nil {
		t.Fatalf("ParseDateKey error: %v", err)
	}
	if d.String() != "2026-02-18" {
		t.Errorf("String() = %s, want 2026-02-18", d)
	}

	if _, err := ParseDateKey("18/02/2026"); err == nil {
		t.Error("ParseDateKey should reject non-ISO dates")
	}
}

func TestDateKeyOrdering(t *testing.T) {
	a, b := DateKey("2026-01-31"), DateKey("2026-02-01")
	if !a.Before(b) {
		t.Error("2026-01-31 should sort before 2026-02-01")
	}
	if !b.After(a) {
		t.Error("2026-02-01 should sort after 2026-01-31")
	}
}

func TestDateKeyArithmetic(t *testing.T) {
	d := DateKey("2026-02-27")
	if got := d.AddDays(2); got != "2026-03-01" {
		t.Errorf("AddDays(2) = %s, want 2026-03-01", got)
	}
	if got := d.DaysUntil(DateKey("2026-03-13")); got != 14 {
		t.Errorf("DaysUntil = %d, want 14", got)
	}
	if got := d.DaysUntil(DateKey("2026-02-20")); got != -7 {
		t.Errorf("DaysUntil (past) = %d, want -7", got)
	}
}

// ── Market calendar ──

func TestIsMarketOpenAt(t *testing.T) {
	// Wednesday at 10:00 AM ET, market open.
	weekday := time.Date(2026, 2, 18, 10, 0, 0, 0, Eastern)
	if !IsMarketOpenAt(weekday) {
		t.Error("expected market open on Wednesday 10:00 AM ET")
	}

	// Saturday, closed.
	saturday := time.Date(2026, 2, 21, 10, 0, 0, 0, Eastern)
	if IsMarketOpenAt(saturday) {
		t.Error("expected market closed on Saturday")
	}

	// Before the bell.
	early := time.Date(2026, 2, 18, 9, 0, 0, 0, Eastern)
	if IsMarketOpenAt(early) {
		t.Error("expected market closed at 9:00 AM ET")
	}

	// Good Friday 2026, a holiday.
	holiday := time.Date(2026, 4, 3, 11, 0, 0, 0, Eastern)
	if IsMarketOpenAt(holiday) {
		t.Error("expected market closed on Good Friday")
	}
}

func TestPrevTradingDay(t *testing.T) {
	// Monday Feb 23 → previous trading day is Friday Feb 20.
	monday := time.Date(2026, 2, 23, 12, 0, 0, 0, Eastern)
	prev := PrevTradingDay(monday)
	if prev.Weekday() != time.Friday {
		t.Errorf("PrevTradingDay(Monday) = %v, want a Friday", prev.Weekday())
	}
	if got := NewDateKey(prev, Eastern); got != "2026-02-20" {
		t.Errorf("PrevTradingDay = %s, want 2026-02-20", got)
	}
}

func TestLastTradingDateKey(t *testing.T) {
	// Sunday Feb 22 → last trading day is Friday Feb 20.
	sunday := time.Date(2026, 2, 22, 15, 0, 0, 0, Eastern)
	if got := LastTradingDateKey(sunday); got != "2026-02-20" {
		t.Errorf("LastTradingDateKey(Sunday) = %s, want 2026-02-20", got)
	}
	// A regular Wednesday maps to itself.
	wednesday := time.Date(2026, 2, 18, 15, 0, 0, 0, Eastern)
	if got := LastTradingDateKey(wednesday); got != "2026-02-18" {
		t.Errorf("LastTradingDateKey(Wednesday) = %s, want 2026-02-18", got)
	}
}
