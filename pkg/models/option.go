package models

import (
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionContract represents a single listed option quote.
type OptionContract struct {
	Strike float64    `json:"strike"`
	Type   OptionType `json:"type"`

	LastPrice    float64 `json:"last_price"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	// ImpliedVolatilityRaw is the vendor value as delivered; its encoding
	// (annualized decimal vs daily variance) is resolved by NormalizeIV.
	ImpliedVolatilityRaw float64       `json:"implied_volatility_raw"`
	LastTradeDate        utils.DateKey `json:"last_trade_date"`
	ContractSymbol       string        `json:"contract_symbol,omitempty"`
}

// OptionsChain is one expiration's raw chain plus the underlying context
// needed to analyze it.
type OptionsChain struct {
	Symbol     string           `json:"symbol"`
	SpotPrice  float64          `json:"spot_price"`
	Expiration utils.DateKey    `json:"expiration"`
	Expiries   []utils.DateKey  `json:"expiries"` // all expirations the vendor lists
	Calls      []OptionContract `json:"calls"`
	Puts       []OptionContract `json:"puts"`
}

// HotContract identifies the single highest-dollar-volume contract seen in
// an expiration's chain.
type HotContract struct {
	Type         OptionType `json:"type"`
	Strike       float64    `json:"strike"`
	LastPrice    float64    `json:"last_price"`
	Volume       int64      `json:"volume"`
	DollarVolume float64    `json:"dollar_volume"`
}

// ConvictionBreakdown is the 0-9 volume-conviction sub-score with its three
// 0-3 buckets.
type ConvictionBreakdown struct {
	UnusualVolumeScore int     `json:"unusual_volume_score"` // contracts with volume > 2×OI
	TurnoverScore      int     `json:"turnover_score"`       // total volume / total OI
	ConcentrationScore int     `json:"concentration_score"`  // top-5 dollar-volume share
	Total              int     `json:"total"`                // 0-9
	UnusualFraction    float64 `json:"unusual_fraction"`
	VolumeOIRatio      float64 `json:"volume_oi_ratio"`
	Top5Concentration  float64 `json:"top5_concentration"`
}

// ExpirationMetrics reduces one expiration's chain to sentiment/flow metrics.
type ExpirationMetrics struct {
	Expiration   utils.DateKey `json:"expiration"`
	DaysToExpiry int           `json:"days_to_expiry"`
	SpotPrice    float64       `json:"spot_price"`

	TotalCallVolume int64   `json:"total_call_volume"`
	TotalPutVolume  int64   `json:"total_put_volume"`
	TotalCallOI     int64   `json:"total_call_oi"`
	TotalPutOI      int64   `json:"total_put_oi"`
	PutCallRatio    float64 `json:"put_call_ratio"`    // volume based
	PutCallOIRatio  float64 `json:"put_call_oi_ratio"` // open-interest based

	ATMStrike       float64       `json:"atm_strike"`
	ATMCallIV       float64       `json:"atm_call_iv"` // normalized annualized decimal
	ATMPutIV        float64       `json:"atm_put_iv"`
	ATMIV           float64       `json:"atm_iv"`
	AvgCallIV       float64       `json:"avg_call_iv"` // volume-weighted, OTM-only, fresh trades
	AvgPutIV        float64       `json:"avg_put_iv"`
	LatestTradeDate utils.DateKey `json:"latest_trade_date"`

	// OTM-only dollar flow (contracts ≥5% out of the money).
	OTMCallDollarVolume float64 `json:"otm_call_dollar_volume"`
	OTMPutDollarVolume  float64 `json:"otm_put_dollar_volume"`
	OTMConvictionRatio  float64 `json:"otm_conviction_ratio"` // call$/put$

	// Full-chain dollar flow (ITM + OTM).
	TotalCallDollarVolume float64 `json:"total_call_dollar_volume"`
	TotalPutDollarVolume  float64 `json:"total_put_dollar_volume"`
	ConvictionRatio       float64 `json:"conviction_ratio"`

	UnusualCallContracts int `json:"unusual_call_contracts"` // volume > 2×OI
	UnusualPutContracts  int `json:"unusual_put_contracts"`

	HottestContract *HotContract `json:"hottest_contract,omitempty"`

	// Expected move from the ATM straddle.
	StraddlePrice  float64 `json:"straddle_price"`   // atm call + atm put
	ImpliedMove    float64 `json:"implied_move"`     // dollars
	ImpliedMovePct float64 `json:"implied_move_pct"` // percent of spot

	Conviction ConvictionBreakdown `json:"conviction"`
}

// TermPoint is one expiration on the implied-volatility term structure.
type TermPoint struct {
	Expiration   utils.DateKey `json:"expiration"`
	DaysToExpiry int           `json:"days_to_expiry"`
	ATMIV        float64       `json:"atm_iv"`
	CallIV       float64       `json:"call_iv"`
	PutIV        float64       `json:"put_iv"`
}

// TermShape classifies the slope of the IV term structure.
type TermShape string

const (
	Contango      TermShape = "contango"
	Backwardation TermShape = "backwardation"
	FlatTerm      TermShape = "flat"
)

// Sentiment is the directional read of the aggregate options flow.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// AggregateSummary is the cross-expiration reduction of ExpirationMetrics.
type AggregateSummary struct {
	Symbol    string  `json:"symbol"`
	SpotPrice float64 `json:"spot_price"`

	PutCallRatio   float64 `json:"put_call_ratio"`
	PutCallOIRatio float64 `json:"put_call_oi_ratio"`
	BlendedATMIV   float64 `json:"blended_atm_iv"`

	TermStructure []TermPoint `json:"term_structure"`
	// TermSlope is the ATM IV change in percentage points per 30 days
	// between the nearest and farthest analyzed expirations.
	TermSlope float64   `json:"term_slope"`
	Shape     TermShape `json:"shape"`
	HasKink   bool      `json:"has_kink"`

	TotalCallDollarVolume float64 `json:"total_call_dollar_volume"`
	TotalPutDollarVolume  float64 `json:"total_put_dollar_volume"`
	ConvictionRatio       float64 `json:"conviction_ratio"`
	UnusualCallContracts  int     `json:"unusual_call_contracts"`
	UnusualPutContracts   int     `json:"unusual_put_contracts"`
	MaxConviction         int     `json:"max_conviction"` // highest 0-9 sub-score

	Sentiment      Sentiment `json:"sentiment"`
	SentimentScore int       `json:"sentiment_score"`
}
