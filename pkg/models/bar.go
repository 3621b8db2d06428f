// Package models defines the core data structures used throughout eventpulse.
package models

import (
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// Bar represents a single daily OHLCV bar. Bars are immutable once fetched
// and ordered ascending by date, one per trading day per symbol.
type Bar struct {
	Date   utils.DateKey `json:"date"`
	Open   float64       `json:"open"`
	High   float64       `json:"high"`
	Low    float64       `json:"low"`
	Close  float64       `json:"close"`
	Volume int64         `json:"volume"`
}

// ReturnRecord extends a Bar with daily return decomposition.
// StockReturn, MarketReturn and ResidualReturn are undefined for the first
// bar of a series (no prior close); ReturnDefined is false there.
type ReturnRecord struct {
	Bar

	StockReturn    float64 `json:"stock_return"`
	MarketReturn   float64 `json:"market_return"`
	ResidualReturn float64 `json:"residual_return"`
	ReturnDefined  bool    `json:"return_defined"`
}

// Classification labels the reaction shape of an event day from its opening
// gap direction and intraday direction.
type Classification string

const (
	// SurprisingPositive: gapped up and kept climbing into the close.
	SurprisingPositive Classification = "surprising_positive"
	// PositiveAnticipated: gapped up but sold off from the open.
	PositiveAnticipated Classification = "positive_anticipated"
	// NegativeAnticipated: gapped down but recovered from the open.
	NegativeAnticipated Classification = "negative_anticipated"
	// SurprisingNegative: gapped down and kept falling into the close.
	SurprisingNegative Classification = "surprising_negative"
	// ClassUnknown: first bar of a series, no prior close to gap against.
	ClassUnknown Classification = "unknown"
	// ClassNone: not an event day.
	ClassNone Classification = "none"
)

// EventRecord is a ReturnRecord annotated by event detection. Non-event
// bars carry IsEvent=false, ClassNone and zero strength, so a full series
// of EventRecords is self-describing.
type EventRecord struct {
	ReturnRecord

	VolumeGapProduct float64        `json:"volume_gap_product"`
	IsEvent          bool           `json:"is_event"`
	Classification   Classification `json:"classification"`
	EventStrength    float64        `json:"event_strength"` // (high-low)/low × 100
}

// RegressionStats holds the fitted market-beta regression diagnostics.
type RegressionStats struct {
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
	R2         float64 `json:"r2"`
	SampleSize int     `json:"sample_size"`
}

// VolatilityStats holds realized (historical) volatility for a window.
// SampleSize below the minimum usable count yields a zeroed result, which
// downstream scorers treat as "unknown" rather than zero volatility.
type VolatilityStats struct {
	AnnualizedHV float64 `json:"annualized_hv"` // decimal, e.g. 0.35
	DailyStdDev  float64 `json:"daily_std_dev"`
	SampleSize   int     `json:"sample_size"`
}

// RollingPoint is one point of a rolling historical-volatility series.
type RollingPoint struct {
	Date utils.DateKey `json:"date"`
	HV   float64       `json:"hv"`
}
