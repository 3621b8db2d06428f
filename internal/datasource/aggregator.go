package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

const (
	fetchAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// Aggregator fronts the concrete providers: Yahoo for bars and options,
// Stooq as the bars fallback. Transient upstream failures are retried with
// linear backoff; client errors and empty responses fail over immediately.
type Aggregator struct {
	primary  MarketDataProvider
	fallback MarketDataProvider
	options  OptionsDataProvider

	// chainDelay spaces consecutive per-expiration chain fetches so a
	// multi-expiration pull does not read as a burst upstream.
	chainDelay time.Duration

	log zerolog.Logger
}

// NewAggregator wires the default provider set.
func NewAggregator(cacheTTL, chainDelay time.Duration, rps int, log zerolog.Logger) *Aggregator {
	yahoo := NewYahoo(cacheTTL, rps)
	return &Aggregator{
		primary:    yahoo,
		fallback:   NewStooq(cacheTTL),
		options:    yahoo,
		chainDelay: chainDelay,
		log:        log.With().Str("component", "datasource").Logger(),
	}
}

// NewAggregatorWith wires an explicit provider set. Tests use it to
// substitute fakes.
func NewAggregatorWith(primary, fallback MarketDataProvider, options OptionsDataProvider, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		primary:  primary,
		fallback: fallback,
		options:  options,
		log:      log.With().Str("component", "datasource").Logger(),
	}
}

// DailyBars fetches daily history from the primary provider, falling back
// to the secondary when the primary fails.
func (a *Aggregator) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	bars, err := a.fetchBars(ctx, a.primary, symbol, from, to)
	if err == nil {
		return bars, nil
	}
	if a.fallback == nil {
		return nil, err
	}

	a.log.Warn().Err(err).
		Str("symbol", symbol).
		Str("provider", a.primary.Name()).
		Msg("primary bars fetch failed, trying fallback")

	bars, ferr := a.fetchBars(ctx, a.fallback, symbol, from, to)
	if ferr != nil {
		return nil, fmt.Errorf("all bar providers failed for %s: %w", symbol, errors.Join(err, ferr))
	}
	return bars, nil
}

// fetchBars retries transient failures. Client errors (bad symbol, auth,
// throttle) are not retried against the same provider.
func (a *Aggregator) fetchBars(ctx context.Context, p MarketDataProvider, symbol string, from, to time.Time) ([]models.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		bars, err := p.DailyBars(ctx, symbol, from, to)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if !retryable(err) || attempt == fetchAttempts {
			break
		}
		a.log.Debug().Err(err).
			Str("symbol", symbol).
			Str("provider", p.Name()).
			Int("attempt", attempt).
			Msg("retrying bars fetch")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return nil, lastErr
}

// ChainSet is a multi-expiration options pull. Expirations that failed to
// fetch are recorded rather than failing the set.
type ChainSet struct {
	Symbol    string
	SpotPrice float64
	Chains    []*models.OptionsChain
	Errors    []string
}

// OptionsChains fetches up to maxExpirations nearest expirations for the
// symbol. A failed expiration is skipped and recorded; the pull only errors
// when the expiration listing itself cannot be fetched.
func (a *Aggregator) OptionsChains(ctx context.Context, symbol string, maxExpirations int) (*ChainSet, error) {
	if a.options == nil {
		return nil, ErrNotSupported
	}

	expiries, spot, err := a.options.Expirations(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list expirations for %s: %w", symbol, err)
	}
	if len(expiries) == 0 {
		return nil, fmt.Errorf("%w: %s has no listed expirations", ErrNoData, symbol)
	}
	if maxExpirations > 0 && len(expiries) > maxExpirations {
		expiries = expiries[:maxExpirations]
	}

	set := &ChainSet{Symbol: symbol, SpotPrice: spot}
	for i, exp := range expiries {
		if i > 0 && a.chainDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.chainDelay):
			}
		}

		chain, err := a.fetchChain(ctx, symbol, exp)
		if err != nil {
			a.log.Warn().Err(err).
				Str("symbol", symbol).
				Str("expiration", exp.String()).
				Msg("skipping expiration")
			set.Errors = append(set.Errors, fmt.Sprintf("expiration %s: %v", exp, err))
			continue
		}
		if chain.SpotPrice == 0 {
			chain.SpotPrice = spot
		}
		set.Chains = append(set.Chains, chain)
	}

	if len(set.Chains) == 0 {
		return nil, fmt.Errorf("%w: every expiration fetch failed for %s", ErrNoData, symbol)
	}
	return set, nil
}

func (a *Aggregator) fetchChain(ctx context.Context, symbol string, exp utils.DateKey) (*models.OptionsChain, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		chain, err := a.options.Chain(ctx, symbol, exp)
		if err == nil {
			return chain, nil
		}
		lastErr = err
		if !retryable(err) || attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return nil, lastErr
}

// retryable reports whether an error is worth retrying against the same
// provider. 4xx responses and definitive no-data answers are not.
func retryable(err error) bool {
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return !httpErr.ClientError()
	}
	switch {
	case errors.Is(err, ErrSymbolNotFound),
		errors.Is(err, ErrNoData),
		errors.Is(err, ErrNotSupported),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
