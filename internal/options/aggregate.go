package options

import (
	"math"
	"sort"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// contractMultiplier converts per-share option prices to contract dollars.
const contractMultiplier = 100

// NormalizeIV resolves the vendor's undeclared IV encoding by magnitude:
// values at or below the cutoff are taken as daily variance and converted
// to an annualized decimal via sqrt(raw×252); larger values are assumed
// already annualized and pass through unchanged. Non-positive input maps
// to zero.
func NormalizeIV(raw, cutoff float64) float64 {
	if raw <= 0 {
		return 0
	}
	if raw <= cutoff {
		return math.Sqrt(raw * 252)
	}
	return raw
}

// AnalyzeExpiration reduces one expiration's chain to per-expiration
// sentiment and flow metrics.
//
// asOf anchors days-to-expiry. anchor, when non-zero, overrides the
// fresh-trade cut-off; otherwise the most recent trade date observed
// anywhere in the chain is used. Contracts that last traded before the
// cut-off still count toward raw volume and open-interest totals, but are
// excluded from the volume-weighted IV and the unusual-volume counts so
// stale multi-day-old quotes cannot dilute current sentiment.
func AnalyzeExpiration(chain *models.OptionsChain, asOf, anchor utils.DateKey, p ScoringParams) models.ExpirationMetrics {
	m := models.ExpirationMetrics{
		Expiration: chain.Expiration,
		SpotPrice:  chain.SpotPrice,
	}
	if !asOf.IsZero() && !chain.Expiration.IsZero() {
		m.DaysToExpiry = asOf.DaysUntil(chain.Expiration)
	}

	latest := anchor
	if latest.IsZero() {
		for _, c := range chain.Calls {
			if c.LastTradeDate.After(latest) {
				latest = c.LastTradeDate
			}
		}
		for _, c := range chain.Puts {
			if c.LastTradeDate.After(latest) {
				latest = c.LastTradeDate
			}
		}
	}
	m.LatestTradeDate = latest

	spot := chain.SpotPrice

	// Raw participation totals over the full chain.
	for _, c := range chain.Calls {
		m.TotalCallVolume += c.Volume
		m.TotalCallOI += c.OpenInterest
	}
	for _, c := range chain.Puts {
		m.TotalPutVolume += c.Volume
		m.TotalPutOI += c.OpenInterest
	}
	if m.TotalCallVolume > 0 {
		m.PutCallRatio = float64(m.TotalPutVolume) / float64(m.TotalCallVolume)
	}
	if m.TotalCallOI > 0 {
		m.PutCallOIRatio = float64(m.TotalPutOI) / float64(m.TotalCallOI)
	}

	// ATM legs and the straddle-implied move.
	atmCall := nearestStrike(chain.Calls, spot)
	atmPut := nearestStrike(chain.Puts, spot)
	if atmCall != nil {
		m.ATMStrike = atmCall.Strike
		m.ATMCallIV = NormalizeIV(atmCall.ImpliedVolatilityRaw, p.DailyVarCutoff)
	}
	if atmPut != nil {
		m.ATMPutIV = NormalizeIV(atmPut.ImpliedVolatilityRaw, p.DailyVarCutoff)
	}
	switch {
	case m.ATMCallIV > 0 && m.ATMPutIV > 0:
		m.ATMIV = (m.ATMCallIV + m.ATMPutIV) / 2
	case m.ATMCallIV > 0:
		m.ATMIV = m.ATMCallIV
	default:
		m.ATMIV = m.ATMPutIV
	}
	if atmCall != nil && atmPut != nil {
		m.StraddlePrice = atmCall.LastPrice + atmPut.LastPrice
		m.ImpliedMove = m.StraddlePrice
		if spot > 0 {
			m.ImpliedMovePct = m.StraddlePrice / spot * 100
		}
	}

	// Volume-weighted IV over fresh, ≥5%-OTM contracts on each side.
	otmCallFloor := spot * (1 + p.OTMThreshold)
	otmPutCeil := spot * (1 - p.OTMThreshold)
	m.AvgCallIV = weightedIV(chain.Calls, latest, p, func(c models.OptionContract) bool {
		return c.Strike >= otmCallFloor
	})
	m.AvgPutIV = weightedIV(chain.Puts, latest, p, func(c models.OptionContract) bool {
		return c.Strike <= otmPutCeil
	})

	// Dollar flow, OTM-only and full-chain subsets, plus the hottest
	// contract and top-5 concentration.
	var dollarVolumes []float64
	var totalDollar float64
	tally := func(contracts []models.OptionContract, isOTM func(models.OptionContract) bool, call bool) {
		for _, c := range contracts {
			dv := float64(c.Volume) * c.LastPrice * contractMultiplier
			if dv <= 0 {
				continue
			}
			dollarVolumes = append(dollarVolumes, dv)
			totalDollar += dv
			if call {
				m.TotalCallDollarVolume += dv
				if isOTM(c) {
					m.OTMCallDollarVolume += dv
				}
			} else {
				m.TotalPutDollarVolume += dv
				if isOTM(c) {
					m.OTMPutDollarVolume += dv
				}
			}
			if m.HottestContract == nil || dv > m.HottestContract.DollarVolume {
				hot := models.HotContract{
					Strike: c.Strike, LastPrice: c.LastPrice,
					Volume: c.Volume, DollarVolume: dv,
				}
				if call {
					hot.Type = models.Call
				} else {
					hot.Type = models.Put
				}
				m.HottestContract = &hot
			}
		}
	}
	tally(chain.Calls, func(c models.OptionContract) bool { return c.Strike >= otmCallFloor }, true)
	tally(chain.Puts, func(c models.OptionContract) bool { return c.Strike <= otmPutCeil }, false)

	m.OTMConvictionRatio = convictionRatio(m.OTMCallDollarVolume, m.OTMPutDollarVolume)
	m.ConvictionRatio = convictionRatio(m.TotalCallDollarVolume, m.TotalPutDollarVolume)

	// Unusual activity: fresh contracts trading well beyond their open
	// interest.
	m.UnusualCallContracts = countUnusual(chain.Calls, latest, p)
	m.UnusualPutContracts = countUnusual(chain.Puts, latest, p)

	m.Conviction = convictionScore(m, len(chain.Calls)+len(chain.Puts), dollarVolumes, totalDollar, p)
	return m
}

// convictionScore combines unusual-volume breadth, chain turnover, and
// dollar concentration into the 0-9 sub-score.
func convictionScore(m models.ExpirationMetrics, contractCount int, dollarVolumes []float64, totalDollar float64, p ScoringParams) models.ConvictionBreakdown {
	var b models.ConvictionBreakdown

	if contractCount > 0 {
		b.UnusualFraction = float64(m.UnusualCallContracts+m.UnusualPutContracts) / float64(contractCount)
	}
	totalOI := m.TotalCallOI + m.TotalPutOI
	if totalOI > 0 {
		b.VolumeOIRatio = float64(m.TotalCallVolume+m.TotalPutVolume) / float64(totalOI)
	}
	if totalDollar > 0 && len(dollarVolumes) > 0 {
		sorted := append([]float64(nil), dollarVolumes...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		top := 0.0
		for i := 0; i < 5 && i < len(sorted); i++ {
			top += sorted[i]
		}
		b.Top5Concentration = top / totalDollar
	}

	b.UnusualVolumeScore = bucket(b.UnusualFraction, p.UnusualFractionCuts)
	b.TurnoverScore = bucket(b.VolumeOIRatio, p.TurnoverCuts)
	b.ConcentrationScore = bucket(b.Top5Concentration, p.ConcentrationCuts)
	b.Total = b.UnusualVolumeScore + b.TurnoverScore + b.ConcentrationScore
	return b
}

func countUnusual(contracts []models.OptionContract, fresh utils.DateKey, p ScoringParams) int {
	count := 0
	for _, c := range contracts {
		if c.LastTradeDate.Before(fresh) {
			continue
		}
		if c.OpenInterest >= 0 && c.Volume > 0 &&
			float64(c.Volume) > p.UnusualVolumeMult*float64(c.OpenInterest) {
			count++
		}
	}
	return count
}

// weightedIV is the volume-weighted normalized IV over fresh contracts
// passing the strike filter.
func weightedIV(contracts []models.OptionContract, fresh utils.DateKey, p ScoringParams, keep func(models.OptionContract) bool) float64 {
	var weighted, totalWeight float64
	for _, c := range contracts {
		if c.Volume <= 0 || c.LastTradeDate.Before(fresh) || !keep(c) {
			continue
		}
		iv := NormalizeIV(c.ImpliedVolatilityRaw, p.DailyVarCutoff)
		if iv <= 0 {
			continue
		}
		weighted += iv * float64(c.Volume)
		totalWeight += float64(c.Volume)
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

func nearestStrike(contracts []models.OptionContract, spot float64) *models.OptionContract {
	if len(contracts) == 0 || spot <= 0 {
		return nil
	}
	best := 0
	bestDiff := math.Abs(contracts[0].Strike - spot)
	for i, c := range contracts {
		if diff := math.Abs(c.Strike - spot); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return &contracts[best]
}

// convictionRatio is call dollar flow over put dollar flow, capped so a
// one-sided chain stays JSON-representable.
func convictionRatio(callDollar, putDollar float64) float64 {
	const ratioCap = 999
	if putDollar > 0 {
		r := callDollar / putDollar
		if r > ratioCap {
			return ratioCap
		}
		return r
	}
	if callDollar > 0 {
		return ratioCap
	}
	return 0
}
