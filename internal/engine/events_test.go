package engine

import (
	"testing"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// makeRecords builds return records directly from OHLCV tuples, computing
// stock returns off consecutive closes the way FilterReturns would.
func makeRecords(bars []models.Bar) []models.ReturnRecord {
	records := make([]models.ReturnRecord, len(bars))
	for i, b := range bars {
		records[i] = models.ReturnRecord{Bar: b}
		if i > 0 && bars[i-1].Close > 0 {
			records[i].StockReturn = (b.Close - bars[i-1].Close) / bars[i-1].Close
			records[i].ResidualReturn = records[i].StockReturn
			records[i].ReturnDefined = true
		}
	}
	return records
}

func bar(date string, open, high, low, close float64, volume int64) models.Bar {
	return models.Bar{
		Date: utils.DateKey(date), Open: open, High: high, Low: low,
		Close: close, Volume: volume,
	}
}

// ── Detection ──

func TestDetectEventsGapUpOnVolume(t *testing.T) {
	// A 30%+ gap up on 10× average volume must be the top event when K=1,
	// and classify surprising_positive since it closed above its open.
	bars := []models.Bar{
		bar("2026-01-05", 100, 101, 99, 100, 1_000_000),
		bar("2026-01-06", 100, 101, 99, 100, 1_000_000),
		bar("2026-01-07", 99, 100, 97, 98, 1_000_000),
		bar("2026-01-08", 98, 99, 97, 98, 1_000_000),
		bar("2026-01-09", 128, 131, 127, 130, 10_000_000),
	}

	events := DetectEvents(makeRecords(bars), 1, false)

	var flagged []int
	for i, e := range events {
		if e.IsEvent {
			flagged = append(flagged, i)
		}
	}
	if len(flagged) != 1 || flagged[0] != 4 {
		t.Fatalf("flagged indices = %v, want [4]", flagged)
	}
	if events[4].Classification != models.SurprisingPositive {
		t.Errorf("classification = %s, want surprising_positive", events[4].Classification)
	}
	if events[4].EventStrength <= 0 {
		t.Errorf("event strength = %v, want > 0", events[4].EventStrength)
	}
}

func TestDetectEventsCountAndClamping(t *testing.T) {
	// Distinct products: exactly min(K, n−1) events, K clamped to [1, n−1].
	bars := make([]models.Bar, 0, 8)
	date := utils.DateKey("2026-01-05")
	closes := []float64{100, 102, 105, 101, 108, 103, 111, 104}
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1] * (1 + 0.002*float64(i)) // distinct gaps
		}
		bars = append(bars, bar(date.String(), open, c+2, c-2, c, int64(1_000_000+i*50_000)))
		date = date.AddDays(1)
	}
	records := makeRecords(bars)

	cases := []struct {
		k    int
		want int
	}{
		{3, 3},
		{0, 1},   // clamped up to 1
		{100, 7}, // clamped down to n−1
	}
	for _, tc := range cases {
		events := DetectEvents(records, tc.k, false)
		count := 0
		for _, e := range events {
			if e.IsEvent {
				count++
			}
		}
		if count != tc.want {
			t.Errorf("K=%d: flagged %d events, want %d", tc.k, count, tc.want)
		}
	}
}

func TestDetectEventsIncludesThresholdTies(t *testing.T) {
	// Two days with identical products at the K=1 boundary: both included.
	bars := []models.Bar{
		bar("2026-01-05", 100, 101, 99, 100, 1_000_000),
		bar("2026-01-06", 105, 106, 104, 105, 2_000_000), // 5% gap × 2M
		bar("2026-01-07", 105, 106, 104, 105, 1_000_000),
		bar("2026-01-08", 110.25, 111, 109, 110, 2_000_000), // 5% gap × 2M
	}
	events := DetectEvents(makeRecords(bars), 1, false)

	count := 0
	for _, e := range events {
		if e.IsEvent {
			count++
		}
	}
	if count != 2 {
		t.Errorf("flagged %d events, want 2 (ties at threshold are included)", count)
	}
}

func TestDetectEventsFlatSeriesTiesAtZero(t *testing.T) {
	// Flat prices on zero volume score every day at a zero product. They
	// all tie at the threshold, and ties are included, never excluded.
	bars := []models.Bar{
		bar("2026-01-05", 100, 100, 100, 100, 0),
		bar("2026-01-06", 100, 100, 100, 100, 0),
		bar("2026-01-07", 100, 100, 100, 100, 0),
		bar("2026-01-08", 100, 100, 100, 100, 0),
	}
	events := DetectEvents(makeRecords(bars), 1, false)

	count := 0
	for _, e := range events {
		if e.IsEvent {
			count++
		}
	}
	if count != len(bars) {
		t.Errorf("flagged %d events, want %d (zero-product days all tie at the threshold)",
			count, len(bars))
	}
}

func TestDetectEventsResidualScoring(t *testing.T) {
	// In residual mode the first bar has no residual and can never win.
	bars := []models.Bar{
		bar("2026-01-05", 100, 101, 99, 100, 50_000_000),
		bar("2026-01-06", 100, 102, 99, 101, 1_000_000),
		bar("2026-01-07", 101, 110, 100, 109, 4_000_000),
	}
	events := DetectEvents(makeRecords(bars), 1, true)

	if events[0].IsEvent {
		t.Error("first bar flagged in residual mode despite undefined residual")
	}
	if !events[2].IsEvent {
		t.Error("largest residual×volume day should be the event")
	}
}

func TestDetectEventsShortSeries(t *testing.T) {
	single := makeRecords([]models.Bar{bar("2026-01-05", 100, 101, 99, 100, 1_000_000)})
	events := DetectEvents(single, 5, false)
	if len(events) != 1 || events[0].IsEvent {
		t.Errorf("single-bar series should produce no events, got %+v", events)
	}
	if events[0].Classification != models.ClassNone {
		t.Errorf("non-event classification = %s, want none", events[0].Classification)
	}

	if events := DetectEvents(nil, 5, false); len(events) != 0 {
		t.Errorf("nil series should produce empty output, got %d records", len(events))
	}
}

// ── Classification ──

func TestClassifyEventDirections(t *testing.T) {
	cases := []struct {
		name  string
		open  float64
		close float64
		want  models.Classification
	}{
		{"gap up, closes up", 110, 115, models.SurprisingPositive},
		{"gap up, closes down", 110, 105, models.PositiveAnticipated},
		{"gap down, closes up", 90, 95, models.NegativeAnticipated},
		{"gap down, closes down", 90, 85, models.SurprisingNegative},
		{"flat open, flat close", 100, 100, models.SurprisingPositive}, // ties count as up
	}

	for _, tc := range cases {
		bars := []models.Bar{
			bar("2026-01-05", 100, 101, 99, 100, 1_000_000),
			bar("2026-01-06", tc.open, tc.open+6, tc.open-6, tc.close, 8_000_000),
		}
		events := DetectEvents(makeRecords(bars), 1, false)

		got := events[1].Classification
		if tc.open == 100 {
			// No gap, no volume×gap product: day never becomes an event.
			if events[1].IsEvent {
				t.Errorf("%s: zero-gap day should not be an event", tc.name)
			}
			continue
		}
		if !events[1].IsEvent {
			t.Fatalf("%s: expected day 2 to be the event", tc.name)
		}
		if got != tc.want {
			t.Errorf("%s: classification = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestClassifyFirstBarUnknown(t *testing.T) {
	// Force the first bar to be an event via residual mode on a crafted
	// series: not possible (no residual), so use raw mode with a huge
	// gapless product tie. Verify through direct construction instead.
	records := makeRecords([]models.Bar{
		bar("2026-01-05", 100, 120, 95, 118, 90_000_000),
		bar("2026-01-06", 118, 119, 117, 118, 1_000_000),
		bar("2026-01-07", 118.5, 119, 117, 118, 1_000_000),
	})
	// Give the first bar a synthetic residual so raw-product ranking can
	// select it; the classifier must still refuse to label it.
	records[0].ResidualReturn = 0.5
	records[0].ReturnDefined = true

	events := DetectEvents(records, 1, true)
	if !events[0].IsEvent {
		t.Fatal("expected first bar to be selected")
	}
	if events[0].Classification != models.ClassUnknown {
		t.Errorf("first-bar classification = %s, want unknown", events[0].Classification)
	}
	if events[0].EventStrength != 0 {
		t.Errorf("first-bar strength = %v, want 0", events[0].EventStrength)
	}
}
