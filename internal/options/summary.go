package options

import (
	"sort"

	"github.com/arkad-labs/eventpulse/pkg/models"
)

// Summarize reduces per-expiration metrics into the cross-expiration
// AggregateSummary: blended ratios and IV, the term structure with its
// shape, and the directional sentiment label.
func Summarize(symbol string, spot float64, expirations []models.ExpirationMetrics, p ScoringParams) models.AggregateSummary {
	s := models.AggregateSummary{
		Symbol:    symbol,
		SpotPrice: spot,
		Sentiment: models.Neutral,
		Shape:     models.FlatTerm,
	}
	if len(expirations) == 0 {
		return s
	}

	var callVol, putVol, callOI, putOI int64
	var ivWeighted, ivWeight, ivSum float64
	ivCount := 0

	for _, m := range expirations {
		callVol += m.TotalCallVolume
		putVol += m.TotalPutVolume
		callOI += m.TotalCallOI
		putOI += m.TotalPutOI

		s.TotalCallDollarVolume += m.TotalCallDollarVolume
		s.TotalPutDollarVolume += m.TotalPutDollarVolume
		s.UnusualCallContracts += m.UnusualCallContracts
		s.UnusualPutContracts += m.UnusualPutContracts
		if m.Conviction.Total > s.MaxConviction {
			s.MaxConviction = m.Conviction.Total
		}

		if m.ATMIV > 0 {
			w := float64(m.TotalCallVolume + m.TotalPutVolume)
			ivWeighted += m.ATMIV * w
			ivWeight += w
			ivSum += m.ATMIV
			ivCount++
			s.TermStructure = append(s.TermStructure, models.TermPoint{
				Expiration:   m.Expiration,
				DaysToExpiry: m.DaysToExpiry,
				ATMIV:        m.ATMIV,
				CallIV:       m.ATMCallIV,
				PutIV:        m.ATMPutIV,
			})
		}
	}

	if callVol > 0 {
		s.PutCallRatio = float64(putVol) / float64(callVol)
	}
	if callOI > 0 {
		s.PutCallOIRatio = float64(putOI) / float64(callOI)
	}
	switch {
	case ivWeight > 0:
		s.BlendedATMIV = ivWeighted / ivWeight
	case ivCount > 0:
		s.BlendedATMIV = ivSum / float64(ivCount)
	}
	s.ConvictionRatio = convictionRatio(s.TotalCallDollarVolume, s.TotalPutDollarVolume)

	sort.Slice(s.TermStructure, func(i, j int) bool {
		return s.TermStructure[i].DaysToExpiry < s.TermStructure[j].DaysToExpiry
	})

	s.TermSlope, s.Shape = termShape(s.TermStructure, p)
	s.HasKink = hasKink(s.TermStructure, p)
	s.SentimentScore, s.Sentiment = sentiment(s, p)
	return s
}

// termShape computes the IV slope in percentage points per 30 days between
// the nearest and farthest expirations and classifies it.
func termShape(points []models.TermPoint, p ScoringParams) (float64, models.TermShape) {
	if len(points) < 2 {
		return 0, models.FlatTerm
	}
	first, last := points[0], points[len(points)-1]
	dteSpan := last.DaysToExpiry - first.DaysToExpiry
	if dteSpan <= 0 {
		return 0, models.FlatTerm
	}
	slope := (last.ATMIV - first.ATMIV) * 100 / float64(dteSpan) * 30

	switch {
	case slope > p.SlopeContango:
		return slope, models.Contango
	case slope < p.SlopeBackwardation:
		return slope, models.Backwardation
	default:
		return slope, models.FlatTerm
	}
}

// hasKink flags an IV jump between adjacent expirations larger than the
// kink threshold, which usually marks a dated catalyst between the two.
func hasKink(points []models.TermPoint, p ScoringParams) bool {
	for i := 1; i < len(points); i++ {
		diff := (points[i].ATMIV - points[i-1].ATMIV) * 100
		if diff < 0 {
			diff = -diff
		}
		if diff > p.KinkPP {
			return true
		}
	}
	return false
}

// sentiment applies the bounded additive rule: each of the four signals
// contributes ±1, and the label requires the score to clear the threshold.
// Put-heavy flow reads bearish; call-heavy dollar conviction reads bullish.
func sentiment(s models.AggregateSummary, p ScoringParams) (int, models.Sentiment) {
	score := 0

	if s.PutCallRatio > p.PCRBearish {
		score--
	} else if s.PutCallRatio > 0 && s.PutCallRatio < p.PCRBullish {
		score++
	}

	if s.PutCallOIRatio > p.PCRBearish {
		score--
	} else if s.PutCallOIRatio > 0 && s.PutCallOIRatio < p.PCRBullish {
		score++
	}

	diff := s.UnusualCallContracts - s.UnusualPutContracts
	if diff >= p.UnusualCountMargin {
		score++
	} else if -diff >= p.UnusualCountMargin {
		score--
	}

	if s.ConvictionRatio > p.ConvictionBullish {
		score++
	} else if s.ConvictionRatio > 0 && s.ConvictionRatio < p.ConvictionBearish {
		score--
	}

	switch {
	case score >= p.SentimentThreshold:
		return score, models.Bullish
	case score <= -p.SentimentThreshold:
		return score, models.Bearish
	default:
		return score, models.Neutral
	}
}
