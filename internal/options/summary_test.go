package options

import (
	"math"
	"testing"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

func expMetrics(exp utils.DateKey, dte int, atmIV float64, callVol, putVol int64) models.ExpirationMetrics {
	return models.ExpirationMetrics{
		Expiration:      exp,
		DaysToExpiry:    dte,
		ATMIV:           atmIV,
		ATMCallIV:       atmIV,
		ATMPutIV:        atmIV,
		TotalCallVolume: callVol,
		TotalPutVolume:  putVol,
		TotalCallOI:     callVol * 4,
		TotalPutOI:      putVol * 4,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("ACME", 100, nil, DefaultScoringParams())
	if s.Sentiment != models.Neutral || s.Shape != models.FlatTerm {
		t.Errorf("empty summary = %s/%s, want neutral/flat", s.Sentiment, s.Shape)
	}
	if len(s.TermStructure) != 0 || s.HasKink {
		t.Errorf("empty summary grew a term structure: %+v", s)
	}
}

func TestSummarizeBlendedIVIsVolumeWeighted(t *testing.T) {
	exps := []models.ExpirationMetrics{
		expMetrics("2026-03-06", 14, 0.30, 1000, 1000),
		expMetrics("2026-04-03", 42, 0.40, 500, 500),
	}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())

	want := (0.30*2000 + 0.40*1000) / 3000
	if math.Abs(s.BlendedATMIV-want) > 1e-12 {
		t.Errorf("BlendedATMIV = %v, want %v", s.BlendedATMIV, want)
	}
	if s.PutCallRatio != 1 || s.PutCallOIRatio != 1 {
		t.Errorf("blended P/C = %v/%v, want 1/1", s.PutCallRatio, s.PutCallOIRatio)
	}
}

func TestSummarizeTermStructureSortedAndZeroIVDropped(t *testing.T) {
	exps := []models.ExpirationMetrics{
		expMetrics("2026-04-03", 42, 0.34, 500, 500),
		expMetrics("2026-05-01", 70, 0, 100, 100), // no fresh ATM quote
		expMetrics("2026-03-06", 14, 0.40, 1000, 1000),
	}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())

	if len(s.TermStructure) != 2 {
		t.Fatalf("term structure has %d points, want 2", len(s.TermStructure))
	}
	if s.TermStructure[0].DaysToExpiry != 14 || s.TermStructure[1].DaysToExpiry != 42 {
		t.Errorf("term structure not sorted by expiry: %+v", s.TermStructure)
	}
}

func TestTermShapeClassification(t *testing.T) {
	p := DefaultScoringParams()
	cases := []struct {
		name      string
		nearIV    float64
		farIV     float64
		wantSlope float64
		wantShape models.TermShape
	}{
		// (far-near)*100/28*30 pp per 30 days
		{"backwardation", 0.40, 0.34, -6.0 / 28 * 30, models.Backwardation},
		{"contango", 0.30, 0.36, 6.0 / 28 * 30, models.Contango},
		{"flat", 0.30, 0.301, 0.1 / 28 * 30, models.FlatTerm},
	}
	for _, tc := range cases {
		exps := []models.ExpirationMetrics{
			expMetrics("2026-03-06", 14, tc.nearIV, 1000, 1000),
			expMetrics("2026-04-03", 42, tc.farIV, 500, 500),
		}
		s := Summarize("ACME", 100, exps, p)
		if s.Shape != tc.wantShape {
			t.Errorf("%s: shape = %s, want %s", tc.name, s.Shape, tc.wantShape)
		}
		if math.Abs(s.TermSlope-tc.wantSlope) > 1e-9 {
			t.Errorf("%s: slope = %v, want %v", tc.name, s.TermSlope, tc.wantSlope)
		}
	}
}

func TestTermShapeSinglePointIsFlat(t *testing.T) {
	exps := []models.ExpirationMetrics{expMetrics("2026-03-06", 14, 0.40, 1000, 1000)}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())
	if s.Shape != models.FlatTerm || s.TermSlope != 0 {
		t.Errorf("single point: shape=%s slope=%v, want flat 0", s.Shape, s.TermSlope)
	}
}

func TestHasKink(t *testing.T) {
	p := DefaultScoringParams()

	// 0.30 → 0.34 is a 4pp jump between adjacent expirations.
	exps := []models.ExpirationMetrics{
		expMetrics("2026-03-06", 14, 0.30, 1000, 1000),
		expMetrics("2026-04-03", 42, 0.34, 500, 500),
		expMetrics("2026-05-01", 70, 0.33, 400, 400),
	}
	if s := Summarize("ACME", 100, exps, p); !s.HasKink {
		t.Error("4pp adjacent IV jump should flag a kink")
	}

	// A smooth 2pp per step does not.
	exps = []models.ExpirationMetrics{
		expMetrics("2026-03-06", 14, 0.30, 1000, 1000),
		expMetrics("2026-04-03", 42, 0.32, 500, 500),
		expMetrics("2026-05-01", 70, 0.34, 400, 400),
	}
	if s := Summarize("ACME", 100, exps, p); s.HasKink {
		t.Error("2pp adjacent IV steps should not flag a kink")
	}
}

func TestSentimentBearishOnPutHeavyFlow(t *testing.T) {
	// Puts trade and hold 2× calls, and put dollars dominate: three
	// bearish signals clear the ±2 threshold.
	exps := []models.ExpirationMetrics{
		func() models.ExpirationMetrics {
			m := expMetrics("2026-03-06", 14, 0.35, 1000, 2000)
			m.TotalCallDollarVolume = 100_000
			m.TotalPutDollarVolume = 400_000
			return m
		}(),
	}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())
	if s.Sentiment != models.Bearish {
		t.Errorf("sentiment = %s (score %d), want bearish", s.Sentiment, s.SentimentScore)
	}
	if s.SentimentScore != -3 {
		t.Errorf("SentimentScore = %d, want -3", s.SentimentScore)
	}
}

func TestSentimentBullishOnCallHeavyFlow(t *testing.T) {
	exps := []models.ExpirationMetrics{
		func() models.ExpirationMetrics {
			m := expMetrics("2026-03-06", 14, 0.35, 2000, 1000)
			m.TotalCallDollarVolume = 500_000
			m.TotalPutDollarVolume = 100_000
			m.UnusualCallContracts = 5
			m.UnusualPutContracts = 1
			return m
		}(),
	}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())
	// P/C 0.5 on volume and OI, conviction 5×, unusual margin 4: +4.
	if s.Sentiment != models.Bullish || s.SentimentScore != 4 {
		t.Errorf("sentiment = %s (score %d), want bullish +4", s.Sentiment, s.SentimentScore)
	}
}

func TestSentimentNeutralNearBalance(t *testing.T) {
	exps := []models.ExpirationMetrics{
		expMetrics("2026-03-06", 14, 0.35, 1000, 1000),
	}
	s := Summarize("ACME", 100, exps, DefaultScoringParams())
	if s.Sentiment != models.Neutral || s.SentimentScore != 0 {
		t.Errorf("sentiment = %s (score %d), want neutral 0", s.Sentiment, s.SentimentScore)
	}
}
