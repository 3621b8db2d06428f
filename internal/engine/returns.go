// Package engine implements the pure computation core: market-adjusted
// residual returns, event detection and classification, and realized
// volatility. Nothing in this package performs I/O or holds state across
// invocations.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/arkad-labs/eventpulse/pkg/models"
)

// ErrInsufficientData is returned when a series carries too few defined
// returns for the regression to be fitted.
var ErrInsufficientData = errors.New("insufficient data: need at least 2 aligned bars with defined returns")

// minRegressionSamples is the smallest defined-return count the OLS fit accepts.
const minRegressionSamples = 2

// FilterReturns converts time-aligned subject/benchmark bar series into
// market-adjusted residual returns.
//
// The two series are inner-joined on calendar date; dates missing in either
// series are dropped. Daily simple returns are regressed (subject on
// benchmark) by ordinary least squares, and each record's residual return
// is its stock return with the market-explained component removed:
//
//	residual = stockReturn − (β·marketReturn + α)
//
// R² is reported for diagnostics only.
func FilterReturns(subject, benchmark []models.Bar) ([]models.ReturnRecord, models.RegressionStats, error) {
	records := buildReturns(subject, benchmark)

	var xs, ys []float64
	for _, r := range records {
		if r.ReturnDefined {
			xs = append(xs, r.MarketReturn)
			ys = append(ys, r.StockReturn)
		}
	}
	if len(xs) < minRegressionSamples {
		return nil, models.RegressionStats{}, fmt.Errorf("%w (have %d)", ErrInsufficientData, len(xs))
	}

	alpha, beta, r2, err := fitOLS(xs, ys)
	if err != nil {
		return nil, models.RegressionStats{}, err
	}

	for i := range records {
		if records[i].ReturnDefined {
			records[i].ResidualReturn = records[i].StockReturn - (beta*records[i].MarketReturn + alpha)
		}
	}

	stats := models.RegressionStats{
		Alpha:      alpha,
		Beta:       beta,
		R2:         r2,
		SampleSize: len(xs),
	}
	return records, stats, nil
}

// buildReturns inner-joins the two series on date and computes daily simple
// returns. The first aligned bar has no prior close, so its returns stay
// undefined. Bars with a non-positive close never produce a return.
func buildReturns(subject, benchmark []models.Bar) []models.ReturnRecord {
	benchByDate := make(map[string]models.Bar, len(benchmark))
	for _, b := range benchmark {
		benchByDate[b.Date.String()] = b
	}

	type alignedPair struct {
		stock models.Bar
		bench models.Bar
	}
	var aligned []alignedPair
	for _, s := range subject {
		b, ok := benchByDate[s.Date.String()]
		if !ok {
			continue
		}
		aligned = append(aligned, alignedPair{stock: s, bench: b})
	}

	records := make([]models.ReturnRecord, 0, len(aligned))
	for i, p := range aligned {
		rec := models.ReturnRecord{Bar: p.stock}
		if i > 0 {
			prev := aligned[i-1]
			if prev.stock.Close > 0 && prev.bench.Close > 0 {
				rec.StockReturn = (p.stock.Close - prev.stock.Close) / prev.stock.Close
				rec.MarketReturn = (p.bench.Close - prev.bench.Close) / prev.bench.Close
				rec.ReturnDefined = true
			}
		}
		records = append(records, rec)
	}
	return records
}

// fitOLS fits y = α + β·x by ordinary least squares and reports R².
func fitOLS(xs, ys []float64) (alpha, beta, r2 float64, err error) {
	n := float64(len(xs))

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return 0, 0, 0, errors.New("benchmark returns are constant: regression undefined")
	}

	beta = sxy / sxx
	alpha = meanY - beta*meanX

	var ssRes, ssTot float64
	for i := range xs {
		fit := alpha + beta*xs[i]
		ssRes += (ys[i] - fit) * (ys[i] - fit)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return alpha, beta, r2, nil
}
