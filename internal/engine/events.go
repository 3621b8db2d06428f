package engine

import (
	"sort"

	"github.com/arkad-labs/eventpulse/pkg/models"
)

// DefaultEventCount is the number of events selected when the caller does
// not ask for a specific count.
const DefaultEventCount = 15

// DetectEvents scores every trading day by a volume×gap product and flags
// the top eventCount days as events.
//
// The gap percentage is |residualReturn|×100 when useResidual is set,
// otherwise the raw price gap at the open, |open − prevClose|/prevClose×100.
// Multiplying by volume rewards days that combine unusual price dislocation
// with unusual participation, filtering out both low-volume noise spikes
// and high-volume drift days.
//
// The threshold is the eventCount-th largest product (eventCount clamped to
// [1, n−1]); every record at or above it is flagged, so ties at the boundary
// are all included. A degenerate series where every product is zero ties
// every day at the threshold, and all of them are flagged. Returned records
// also carry their classification.
func DetectEvents(records []models.ReturnRecord, eventCount int, useResidual bool) []models.EventRecord {
	n := len(records)
	out := make([]models.EventRecord, n)
	for i, r := range records {
		out[i] = models.EventRecord{
			ReturnRecord:   r,
			Classification: models.ClassNone,
		}
	}
	if n < 2 {
		return out
	}

	if eventCount < 1 {
		eventCount = 1
	}
	if eventCount > n-1 {
		eventCount = n - 1
	}

	products := make([]float64, n)
	for i := range out {
		gapPct := 0.0
		if useResidual {
			if out[i].ReturnDefined {
				gapPct = abs(out[i].ResidualReturn) * 100
			}
		} else if i > 0 {
			prevClose := records[i-1].Close
			if prevClose > 0 {
				gapPct = abs(out[i].Open-prevClose) / prevClose * 100
			}
		}
		products[i] = gapPct * float64(out[i].Volume)
		out[i].VolumeGapProduct = products[i]
	}

	ranked := append([]float64(nil), products...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	threshold := ranked[eventCount-1]

	for i := range out {
		if products[i] >= threshold {
			out[i].IsEvent = true
		}
	}

	classifyEvents(out)
	return out
}

// classifyEvents labels each event day's reaction shape from its gap and
// intraday directions. Pure state rule, no history beyond the immediately
// preceding bar:
//
//	gap down, closes up from open   → negative_anticipated
//	gap down, closes down from open → surprising_negative
//	gap up,   closes up from open   → surprising_positive
//	gap up,   closes down from open → positive_anticipated
//
// An opening exactly at the prior close counts as a gap up, and a close
// exactly at the open counts as an intraday up move, keeping the four
// outcomes total and mutually exclusive. The first bar of a series has no
// prior close and is always unknown with zero strength.
func classifyEvents(records []models.EventRecord) {
	for i := range records {
		if !records[i].IsEvent {
			records[i].Classification = models.ClassNone
			records[i].EventStrength = 0
			continue
		}
		if i == 0 {
			records[i].Classification = models.ClassUnknown
			records[i].EventStrength = 0
			continue
		}

		prevClose := records[i-1].Close
		gapUp := records[i].Open >= prevClose
		closedUp := records[i].Close >= records[i].Open

		switch {
		case gapUp && closedUp:
			records[i].Classification = models.SurprisingPositive
		case gapUp && !closedUp:
			records[i].Classification = models.PositiveAnticipated
		case !gapUp && closedUp:
			records[i].Classification = models.NegativeAnticipated
		default:
			records[i].Classification = models.SurprisingNegative
		}

		if records[i].Low > 0 {
			records[i].EventStrength = (records[i].High - records[i].Low) / records[i].Low * 100
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
