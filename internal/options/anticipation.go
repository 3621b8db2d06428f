package options

import (
	"fmt"
	"math"

	"github.com/arkad-labs/eventpulse/pkg/models"
)

// Component caps. The five components sum to the 0-100 composite.
const (
	maxVRPScore        = 25.0
	maxEventMoveScore  = 25.0
	maxTermScore       = 20.0
	maxConvictionScore = 15.0
	maxDollarFlowScore = 15.0

	termBackwardationBase = 8.0
	termSlopeBonusMax     = 8.0
	termKinkBonus         = 4.0

	convictionScaleMax = 9.0

	flowSkewBonusMax  = 5.0
	flowTrendSpikePts = 4.0
	flowTrendRisePts  = 2.0
)

// Score combines volatility risk premium, implied event move, term
// structure, volume conviction, and dollar-flow trend into the bounded
// anticipation composite. Every component is computable independently: a
// missing input (unknown realized volatility, no snapshot history, no
// analyzed expirations) degrades only its own component to zero and never
// aborts the computation.
func Score(summary models.AggregateSummary, expirations []models.ExpirationMetrics,
	vol models.VolatilityStats, history []models.FlowSnapshot, p ScoringParams) *models.AnticipationResult {

	var callouts []string

	vrp := scoreVRP(summary, vol, p, &callouts)
	move := scoreEventMove(expirations, vol, p, &callouts)
	term := scoreTermStructure(summary, p, &callouts)
	conviction := scoreConviction(summary)
	flow := scoreDollarFlow(summary, expirations, history, p, &callouts)

	components := []models.ScoreComponent{vrp, move, term, conviction, flow}
	composite := 0.0
	for _, c := range components {
		composite += c.Score
	}
	if composite < 0 {
		composite = 0
	}
	if composite > 100 {
		composite = 100
	}

	return &models.AnticipationResult{
		Symbol:         summary.Symbol,
		CompositeIndex: composite,
		Level:          levelFor(composite),
		Components:     components,
		Callouts:       callouts,
	}
}

func levelFor(composite float64) models.AnticipationLevel {
	switch {
	case composite >= 70:
		return models.LevelExtreme
	case composite >= 50:
		return models.LevelHigh
	case composite >= 30:
		return models.LevelModerate
	case composite >= 15:
		return models.LevelLow
	default:
		return models.LevelNone
	}
}

// scoreVRP scores the ratio of blended implied vol to realized vol,
// piecewise-linear above the floor and saturating at the cap.
func scoreVRP(summary models.AggregateSummary, vol models.VolatilityStats, p ScoringParams, callouts *[]string) models.ScoreComponent {
	c := models.ScoreComponent{Name: models.ComponentVRP, MaxScore: maxVRPScore}

	if vol.AnnualizedHV <= 0 || summary.BlendedATMIV <= 0 {
		c.Signal = "realized volatility unavailable"
		return c
	}

	ratio := summary.BlendedATMIV / vol.AnnualizedHV
	c.Score = clamp01((ratio-p.VRPFloor)/(p.VRPCap-p.VRPFloor)) * maxVRPScore
	c.Signal = fmt.Sprintf("implied vol %.2fx realized (%.1f%% vs %.1f%%)",
		ratio, summary.BlendedATMIV*100, vol.AnnualizedHV*100)

	if ratio >= p.VRPCallout {
		*callouts = append(*callouts, fmt.Sprintf("options price volatility at %.1fx realized", ratio))
	}
	return c
}

// scoreEventMove compares the nearest expiration's straddle-implied move
// against the volatility-implied "normal" move over the same horizon.
func scoreEventMove(expirations []models.ExpirationMetrics, vol models.VolatilityStats, p ScoringParams, callouts *[]string) models.ScoreComponent {
	c := models.ScoreComponent{Name: models.ComponentEventMove, MaxScore: maxEventMoveScore}

	nearest := nearestExpiration(expirations)
	if nearest == nil {
		c.Signal = "no straddle-implied move available"
		return c
	}
	if vol.AnnualizedHV <= 0 {
		c.Signal = "realized volatility unavailable"
		return c
	}

	normalPct := vol.AnnualizedHV * math.Sqrt(float64(nearest.DaysToExpiry)/252) * 100
	if normalPct <= 0 {
		c.Signal = "no usable volatility baseline"
		return c
	}

	ratio := nearest.ImpliedMovePct / normalPct
	c.Score = clamp01((ratio-1)/(p.MoveCap-1)) * maxEventMoveScore
	c.Signal = fmt.Sprintf("straddle prices %.1f%% move vs %.1f%% historical",
		nearest.ImpliedMovePct, normalPct)

	if ratio >= 1.5 {
		*callouts = append(*callouts, c.Signal)
	}
	return c
}

func nearestExpiration(expirations []models.ExpirationMetrics) *models.ExpirationMetrics {
	var nearest *models.ExpirationMetrics
	for i := range expirations {
		m := &expirations[i]
		if m.ImpliedMovePct <= 0 || m.DaysToExpiry <= 0 {
			continue
		}
		if nearest == nil || m.DaysToExpiry < nearest.DaysToExpiry {
			nearest = m
		}
	}
	return nearest
}

// scoreTermStructure rewards backwardation, slope magnitude, and a kink.
func scoreTermStructure(summary models.AggregateSummary, p ScoringParams, callouts *[]string) models.ScoreComponent {
	c := models.ScoreComponent{Name: models.ComponentTermShape, MaxScore: maxTermScore}

	if summary.Shape == models.Backwardation {
		mag := -summary.TermSlope // positive magnitude
		c.Score = termBackwardationBase + clamp01(mag/p.SlopeMagnitudeCap)*termSlopeBonusMax
		c.Signal = fmt.Sprintf("backwardation %.1fpp/30d", summary.TermSlope)
		*callouts = append(*callouts, "IV term structure inverted: near-dated move priced above later expirations")
	} else {
		c.Signal = string(summary.Shape)
	}

	if summary.HasKink {
		c.Score += termKinkBonus
		c.Signal += ", kink between adjacent expirations"
	}
	if c.Score > maxTermScore {
		c.Score = maxTermScore
	}
	return c
}

// scoreConviction scales the best 0-9 per-expiration conviction sub-score.
func scoreConviction(summary models.AggregateSummary) models.ScoreComponent {
	c := models.ScoreComponent{Name: models.ComponentConviction, MaxScore: maxConvictionScore}
	c.Score = float64(summary.MaxConviction) / convictionScaleMax * maxConvictionScore
	c.Signal = fmt.Sprintf("volume conviction %d/9", summary.MaxConviction)
	return c
}

// scoreDollarFlow scores today's total options dollar volume (magnitude
// buckets), the call/put skew, and the trend against trailing snapshot
// history. Absent history the trend part contributes zero and the other
// parts stand on their own.
func scoreDollarFlow(summary models.AggregateSummary, expirations []models.ExpirationMetrics,
	history []models.FlowSnapshot, p ScoringParams, callouts *[]string) models.ScoreComponent {

	c := models.ScoreComponent{Name: models.ComponentDollarFlow, MaxScore: maxDollarFlowScore}

	total := summary.TotalCallDollarVolume + summary.TotalPutDollarVolume
	if total <= 0 {
		c.Signal = "no options dollar flow"
		return c
	}

	switch {
	case total >= p.FlowHigh:
		c.Score = 6
	case total >= p.FlowMid:
		c.Score = 4
	case total >= p.FlowLow:
		c.Score = 2
	}

	skew := math.Abs(summary.TotalCallDollarVolume-summary.TotalPutDollarVolume) / total
	c.Score += skew * flowSkewBonusMax

	side := "call"
	if summary.TotalPutDollarVolume > summary.TotalCallDollarVolume {
		side = "put"
	}
	c.Signal = fmt.Sprintf("$%.1fM dollar flow, %.0f%% %s-skewed", total/1e6, skew*100, side)

	if trailing := trailingDailyMean(history); trailing > 0 {
		ratio := total / trailing
		if ratio >= p.TrendSpike {
			c.Score += flowTrendSpikePts
			*callouts = append(*callouts, fmt.Sprintf("options dollar flow %.1fx trailing average", ratio))
		} else if ratio >= p.TrendRise {
			c.Score += flowTrendRisePts
		}
	}

	if c.Score > maxDollarFlowScore {
		c.Score = maxDollarFlowScore
	}

	if hot := hottestAcross(expirations); hot != nil && hot.DollarVolume >= p.FlowMid {
		*callouts = append(*callouts, fmt.Sprintf("hottest contract: %.0f %s, $%.1fM traded",
			hot.Strike, hot.Type, hot.DollarVolume/1e6))
	}
	return c
}

// trailingDailyMean averages total dollar flow per snapshot date.
func trailingDailyMean(history []models.FlowSnapshot) float64 {
	if len(history) == 0 {
		return 0
	}
	byDate := make(map[string]float64)
	for _, s := range history {
		byDate[s.SnapshotDate.String()] += s.TotalCallDollarVolume + s.TotalPutDollarVolume
	}
	var sum float64
	for _, v := range byDate {
		sum += v
	}
	return sum / float64(len(byDate))
}

func hottestAcross(expirations []models.ExpirationMetrics) *models.HotContract {
	var hot *models.HotContract
	for _, m := range expirations {
		if m.HottestContract != nil && (hot == nil || m.HottestContract.DollarVolume > hot.DollarVolume) {
			hot = m.HottestContract
		}
	}
	return hot
}
