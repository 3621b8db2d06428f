package engine

import (
	"math"

	"github.com/arkad-labs/eventpulse/pkg/models"
)

const (
	// TradingDaysPerYear is the standard annualization base.
	TradingDaysPerYear = 252

	// minVolatilitySamples is the smallest usable return count. Below it
	// the estimator returns a zeroed result flagged via SampleSize rather
	// than an error: downstream scoring treats zero-HV as "unknown".
	minVolatilitySamples = 5

	// DefaultRollingWindow is the rolling estimator's trading-day window.
	DefaultRollingWindow = 20

	// minRollingFill is the fraction of a rolling window that must carry
	// defined returns for the point to be emitted. Skipping sparse windows
	// handles missing/holiday gaps without biasing the estimate toward zero.
	minRollingFill = 0.6
)

// Volatility computes realized volatility over the full series: population
// standard deviation of daily stock returns, annualized by √252.
func Volatility(records []models.ReturnRecord) models.VolatilityStats {
	var returns []float64
	for _, r := range records {
		if r.ReturnDefined {
			returns = append(returns, r.StockReturn)
		}
	}
	if len(returns) < minVolatilitySamples {
		return models.VolatilityStats{SampleSize: len(returns)}
	}

	sd := populationStdDev(returns)
	return models.VolatilityStats{
		AnnualizedHV: sd * math.Sqrt(TradingDaysPerYear),
		DailyStdDev:  sd,
		SampleSize:   len(returns),
	}
}

// RollingVolatility computes an annualized HV series over a fixed
// trading-day window. A point is emitted only when the window is at least
// 60% populated with defined returns.
func RollingVolatility(records []models.ReturnRecord, window int) []models.RollingPoint {
	if window <= 1 {
		window = DefaultRollingWindow
	}
	if len(records) < window {
		return nil
	}

	minCount := int(math.Ceil(minRollingFill * float64(window)))
	var series []models.RollingPoint

	for end := window - 1; end < len(records); end++ {
		var returns []float64
		for i := end - window + 1; i <= end; i++ {
			if records[i].ReturnDefined {
				returns = append(returns, records[i].StockReturn)
			}
		}
		if len(returns) < minCount {
			continue
		}
		sd := populationStdDev(returns)
		series = append(series, models.RollingPoint{
			Date: records[end].Date,
			HV:   sd * math.Sqrt(TradingDaysPerYear),
		})
	}
	return series
}

// populationStdDev is the population (not sample) standard deviation.
func populationStdDev(data []float64) float64 {
	n := float64(len(data))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	mean := sum / n

	var sumSq float64
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / n)
}
