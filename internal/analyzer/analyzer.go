// Package analyzer orchestrates the full pipeline: price history in,
// event detection and volatility out, options chains in, anticipation
// score out. It owns no math; the engine and options packages do.
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arkad-labs/eventpulse/internal/config"
	"github.com/arkad-labs/eventpulse/internal/datasource"
	"github.com/arkad-labs/eventpulse/internal/engine"
	"github.com/arkad-labs/eventpulse/internal/options"
	"github.com/arkad-labs/eventpulse/internal/snapshot"
	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// MarketData is the slice of the datasource aggregator the analyzer uses.
// Tests substitute fakes.
type MarketData interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	OptionsChains(ctx context.Context, symbol string, maxExpirations int) (*datasource.ChainSet, error)
}

// FlowHistory is the slice of the snapshot store the analyzer uses.
type FlowHistory interface {
	Record(snaps []models.FlowSnapshot) error
	History(symbol string, days int) ([]models.FlowSnapshot, error)
}

// Analyzer runs analyses against a provider set and optional flow store.
type Analyzer struct {
	cfg   *config.Config
	data  MarketData
	flows FlowHistory // nil disables the dollar-flow trend input
	log   zerolog.Logger
}

// New creates an analyzer. flows may be nil; the anticipation composite
// then scores without its flow-trend input.
func New(cfg *config.Config, data MarketData, flows FlowHistory, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		cfg:   cfg,
		data:  data,
		flows: flows,
		log:   log.With().Str("component", "analyzer").Logger(),
	}
}

// EventAnalysis is the price-history half of an analysis run.
type EventAnalysis struct {
	Symbol    string `json:"symbol"`
	Benchmark string `json:"benchmark"`

	Regression models.RegressionStats `json:"regression"`
	Volatility models.VolatilityStats `json:"volatility"`
	RollingHV  []models.RollingPoint  `json:"rolling_hv,omitempty"`

	Records []models.EventRecord `json:"records"`
	Events  []models.EventRecord `json:"events"` // flagged subset, newest last
}

// OptionsAnalysis is the options-chain half of an analysis run.
type OptionsAnalysis struct {
	Symbol    string        `json:"symbol"`
	SpotPrice float64       `json:"spot_price"`
	AsOf      utils.DateKey `json:"as_of"`

	Expirations []models.ExpirationMetrics `json:"expirations"`
	Summary     models.AggregateSummary    `json:"summary"`

	// Errors records expirations that were skipped, not fatal failures.
	Errors []string `json:"errors,omitempty"`
}

// AnticipationReport combines both halves with the composite score.
type AnticipationReport struct {
	Symbol       string                     `json:"symbol"`
	Events       *EventAnalysis             `json:"events,omitempty"`
	Options      *OptionsAnalysis           `json:"options,omitempty"`
	Anticipation *models.AnticipationResult `json:"anticipation"`

	// Errors records degraded inputs; the composite still computes.
	Errors []string `json:"errors,omitempty"`
}

// AnalyzeEvents fetches price history for the symbol and its benchmark and
// runs regression, event detection, and volatility.
func (a *Analyzer) AnalyzeEvents(ctx context.Context, symbol string) (*EventAnalysis, error) {
	to := time.Now()
	// Calendar padding so the lookback covers enough trading days.
	from := to.AddDate(0, 0, -(a.cfg.Market.LookbackDays*7/5 + 14))

	var subject, benchmark []models.Bar
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bars, err := a.data.DailyBars(gctx, symbol, from, to)
		if err != nil {
			return fmt.Errorf("bars for %s: %w", symbol, err)
		}
		subject = bars
		return nil
	})
	g.Go(func() error {
		bars, err := a.data.DailyBars(gctx, a.cfg.Market.Benchmark, from, to)
		if err != nil {
			return fmt.Errorf("benchmark bars for %s: %w", a.cfg.Market.Benchmark, err)
		}
		benchmark = bars
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records, stats, err := engine.FilterReturns(subject, benchmark)
	if err != nil {
		return nil, fmt.Errorf("market filter %s vs %s: %w", symbol, a.cfg.Market.Benchmark, err)
	}

	flagged := engine.DetectEvents(records, a.cfg.Market.EventCount, a.cfg.Market.UseResidual)

	analysis := &EventAnalysis{
		Symbol:     symbol,
		Benchmark:  a.cfg.Market.Benchmark,
		Regression: stats,
		Volatility: engine.Volatility(records),
		RollingHV:  engine.RollingVolatility(records, a.cfg.Market.RollingWindow),
		Records:    flagged,
	}
	for _, r := range flagged {
		if r.IsEvent {
			analysis.Events = append(analysis.Events, r)
		}
	}

	a.log.Info().
		Str("symbol", symbol).
		Int("bars", len(records)).
		Int("events", len(analysis.Events)).
		Float64("beta", stats.Beta).
		Msg("event analysis complete")
	return analysis, nil
}

// AnalyzeOptions fetches the nearest expirations and reduces them to
// per-expiration metrics plus the cross-expiration summary. Fetched flow
// is recorded to the snapshot store when one is attached.
func (a *Analyzer) AnalyzeOptions(ctx context.Context, symbol string) (*OptionsAnalysis, error) {
	set, err := a.data.OptionsChains(ctx, symbol, a.cfg.Options.MaxExpirations)
	if err != nil {
		return nil, err
	}

	p := a.cfg.ScoringParams()
	asOf := utils.LastTradingDateKey(time.Now())

	// Anchor freshness on the most recent trade seen across all fetched
	// expirations, so a quiet far-dated chain is judged against the
	// session the near chain traded in.
	var anchor utils.DateKey
	for _, chain := range set.Chains {
		m := latestTradeDate(chain)
		if m.After(anchor) {
			anchor = m
		}
	}

	analysis := &OptionsAnalysis{
		Symbol:    symbol,
		SpotPrice: set.SpotPrice,
		AsOf:      asOf,
		Errors:    set.Errors,
	}
	for _, chain := range set.Chains {
		analysis.Expirations = append(analysis.Expirations,
			options.AnalyzeExpiration(chain, asOf, anchor, p))
	}
	analysis.Summary = options.Summarize(symbol, set.SpotPrice, analysis.Expirations, p)

	if a.flows != nil {
		if err := a.flows.Record(flowSnapshots(symbol, asOf, analysis.Expirations)); err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("recording flow snapshots failed")
			analysis.Errors = append(analysis.Errors, fmt.Sprintf("snapshot store: %v", err))
		}
	}

	a.log.Info().
		Str("symbol", symbol).
		Int("expirations", len(analysis.Expirations)).
		Str("sentiment", string(analysis.Summary.Sentiment)).
		Msg("options analysis complete")
	return analysis, nil
}

// ScoreAnticipation runs both halves and combines them into the composite.
// Either half may fail without aborting: a missing half zeroes only the
// components that depend on it, and the failure is recorded.
func (a *Analyzer) ScoreAnticipation(ctx context.Context, symbol string) (*AnticipationReport, error) {
	report := &AnticipationReport{Symbol: symbol}

	events, err := a.AnalyzeEvents(ctx, symbol)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("event analysis unavailable")
		report.Errors = append(report.Errors, fmt.Sprintf("events: %v", err))
	} else {
		report.Events = events
	}

	opts, err := a.AnalyzeOptions(ctx, symbol)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("options analysis unavailable")
		report.Errors = append(report.Errors, fmt.Sprintf("options: %v", err))
	} else {
		report.Options = opts
	}

	if report.Events == nil && report.Options == nil {
		return nil, fmt.Errorf("no data for %s: %s", symbol, report.Errors)
	}

	var vol models.VolatilityStats
	if report.Events != nil {
		vol = report.Events.Volatility
	}
	var summary models.AggregateSummary
	var expirations []models.ExpirationMetrics
	if report.Options != nil {
		summary = report.Options.Summary
		expirations = report.Options.Expirations
	} else {
		summary.Symbol = symbol
	}

	var history []models.FlowSnapshot
	if a.flows != nil {
		history, err = a.flows.History(symbol, a.cfg.Snapshot.TrailingDays)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("flow history unavailable")
			report.Errors = append(report.Errors, fmt.Sprintf("history: %v", err))
		}
		// AnalyzeOptions has already recorded today's flow, so the stored
		// window contains the day being scored. The trend compares today
		// against prior sessions only.
		history = priorSessions(history, utils.LastTradingDateKey(time.Now()))
	}

	report.Anticipation = options.Score(summary, expirations, vol, history, a.cfg.ScoringParams())
	report.Anticipation.Symbol = symbol

	a.log.Info().
		Str("symbol", symbol).
		Float64("composite", report.Anticipation.CompositeIndex).
		Str("level", string(report.Anticipation.Level)).
		Msg("anticipation scored")
	return report, nil
}

// AnalyzeBatch scores several symbols. Fetch-heavy work is bounded so the
// upstream sees a trickle, not a burst.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, symbols []string) ([]*AnticipationReport, error) {
	reports := make([]*AnticipationReport, len(symbols))
	var mu sync.Mutex
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			report, err := a.ScoreAnticipation(gctx, symbol)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", symbol, err))
				mu.Unlock()
				return nil // keep scoring the rest
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("every symbol failed: %s", failures)
	}
	if len(failures) > 0 {
		a.log.Warn().Strs("failures", failures).Msg("some symbols failed in batch")
	}
	return out, nil
}

// priorSessions drops snapshots taken on or after asOf, leaving only the
// trailing observations a same-day flow can meaningfully be compared to.
func priorSessions(history []models.FlowSnapshot, asOf utils.DateKey) []models.FlowSnapshot {
	trailing := make([]models.FlowSnapshot, 0, len(history))
	for _, snap := range history {
		if snap.SnapshotDate.Before(asOf) {
			trailing = append(trailing, snap)
		}
	}
	return trailing
}

// flowSnapshots converts per-expiration metrics to storable observations.
func flowSnapshots(symbol string, asOf utils.DateKey, expirations []models.ExpirationMetrics) []models.FlowSnapshot {
	snaps := make([]models.FlowSnapshot, 0, len(expirations))
	for _, m := range expirations {
		snaps = append(snaps, models.FlowSnapshot{
			Symbol:                symbol,
			SnapshotDate:          asOf,
			ExpirationDate:        m.Expiration,
			TotalCallDollarVolume: m.TotalCallDollarVolume,
			TotalPutDollarVolume:  m.TotalPutDollarVolume,
		})
	}
	return snaps
}

// latestTradeDate scans a chain for its most recent trade date.
func latestTradeDate(chain *models.OptionsChain) utils.DateKey {
	var latest utils.DateKey
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
	return latest
}

// ensure Aggregator and Store satisfy the analyzer's interfaces.
var (
	_ MarketData  = (*datasource.Aggregator)(nil)
	_ FlowHistory = (*snapshot.Store)(nil)
)
