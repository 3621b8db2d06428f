// Package options reduces raw option chains into per-expiration flow
// metrics, a cross-expiration summary, and the anticipation composite
// index. Like engine, everything here is pure computation.
package options

// ScoringParams collects every empirically chosen threshold used by the
// aggregator and the anticipation scorer. The defaults mirror the values
// the system was calibrated with; they are surfaced through configuration
// rather than hard-coded so they can be tuned per instrument.
type ScoringParams struct {
	// OTMThreshold is how far out of the money a contract must be (as a
	// fraction of spot) to count toward the volume-weighted IV and the
	// OTM dollar-flow subset. Filters illiquid deep-ITM/far-OTM noise.
	OTMThreshold float64

	// DailyVarCutoff separates the two vendor IV encodings: raw values at
	// or below it are treated as daily variance, larger values as
	// already-annualized decimals.
	DailyVarCutoff float64

	// UnusualVolumeMult flags a contract as unusually active when its
	// volume exceeds this multiple of its open interest.
	UnusualVolumeMult float64

	// Conviction bucket cut-offs (each bucket scores 0-3).
	UnusualFractionCuts [3]float64 // fraction of contracts with unusual volume
	TurnoverCuts        [3]float64 // total volume / total open interest
	ConcentrationCuts   [3]float64 // top-5 dollar-volume share

	// Term-structure classification, percentage points of IV per 30 days.
	SlopeContango      float64
	SlopeBackwardation float64
	SlopeMagnitudeCap  float64 // slope at which the magnitude bonus saturates
	KinkPP             float64 // adjacent-expiration IV jump flagging a dated catalyst

	// Sentiment rule cut-offs.
	PCRBearish         float64 // P/C volume or OI ratio above this → −1
	PCRBullish         float64 // below this → +1
	ConvictionBullish  float64 // call$/put$ above this → +1
	ConvictionBearish  float64 // below this → −1
	UnusualCountMargin int     // call-vs-put unusual contract count edge for ±1
	SentimentThreshold int     // |score| needed for a directional label

	// Anticipation component shaping.
	VRPFloor   float64 // IV/HV ratio where the VRP component starts scoring
	VRPCap     float64 // ratio where it saturates
	VRPCallout float64 // ratio at which the premium earns a callout
	MoveCap    float64 // implied/normal move ratio where that component saturates
	FlowHigh   float64 // dollar-volume magnitude buckets
	FlowMid    float64
	FlowLow    float64
	TrendSpike float64 // today/trailing-mean ratio for the full trend bonus
	TrendRise  float64 // ratio for the partial bonus
}

// DefaultScoringParams returns the calibrated defaults.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		OTMThreshold:      0.05,
		DailyVarCutoff:    0.02,
		UnusualVolumeMult: 2.0,

		UnusualFractionCuts: [3]float64{0.05, 0.15, 0.25},
		TurnoverCuts:        [3]float64{0.25, 0.5, 1.0},
		ConcentrationCuts:   [3]float64{0.4, 0.6, 0.8},

		SlopeContango:      0.5,
		SlopeBackwardation: -0.5,
		SlopeMagnitudeCap:  5.0,
		KinkPP:             3.0,

		PCRBearish:         1.2,
		PCRBullish:         0.7,
		ConvictionBullish:  1.5,
		ConvictionBearish:  0.67,
		UnusualCountMargin: 3,
		SentimentThreshold: 2,

		VRPFloor:   0.8,
		VRPCap:     2.0,
		VRPCallout: 1.5,
		MoveCap:    3.0,
		FlowHigh:   10_000_000,
		FlowMid:    1_000_000,
		FlowLow:    100_000,
		TrendSpike: 1.5,
		TrendRise:  1.1,
	}
}

// bucket scores a value 0-3 against ascending cut-offs.
func bucket(v float64, cuts [3]float64) int {
	switch {
	case v >= cuts[2]:
		return 3
	case v >= cuts[1]:
		return 2
	case v >= cuts[0]:
		return 1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
