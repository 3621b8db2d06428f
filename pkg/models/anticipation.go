package models

import (
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// AnticipationLevel buckets the composite index.
type AnticipationLevel string

const (
	LevelExtreme  AnticipationLevel = "extreme"  // ≥ 70
	LevelHigh     AnticipationLevel = "high"     // ≥ 50
	LevelModerate AnticipationLevel = "moderate" // ≥ 30
	LevelLow      AnticipationLevel = "low"      // ≥ 15
	LevelNone     AnticipationLevel = "none"
)

// ScoreComponent is one independently capped contributor to the composite.
type ScoreComponent struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Signal   string  `json:"signal"`
}

// Component names, in composite order.
const (
	ComponentVRP        = "volatility_risk_premium"
	ComponentEventMove  = "implied_event_move"
	ComponentTermShape  = "term_structure"
	ComponentConviction = "volume_conviction"
	ComponentDollarFlow = "dollar_flow_trend"
)

// AnticipationResult is the bounded composite estimate of how strongly the
// options market is pricing in an upcoming event. It is a pure function of
// its inputs and holds no independent state.
type AnticipationResult struct {
	Symbol         string            `json:"symbol"`
	CompositeIndex float64           `json:"composite_index"` // 0-100
	Level          AnticipationLevel `json:"level"`
	Components     []ScoreComponent  `json:"components"`
	Callouts       []string          `json:"callouts"`
}

// FlowSnapshot is one day's options dollar-flow observation for a symbol,
// persisted so the dollar-flow trend component has history to compare
// against. Keyed by (symbol, snapshot date, expiration date).
type FlowSnapshot struct {
	Symbol                string        `json:"symbol" badgerhold:"index"`
	SnapshotDate          utils.DateKey `json:"snapshot_date"`
	ExpirationDate        utils.DateKey `json:"expiration_date"`
	TotalCallDollarVolume float64       `json:"total_call_dollar_volume"`
	TotalPutDollarVolume  float64       `json:"total_put_dollar_volume"`
}

// Key returns the unique store key for the snapshot.
func (s FlowSnapshot) Key() string {
	return s.Symbol + "|" + s.SnapshotDate.String() + "|" + s.ExpirationDate.String()
}
