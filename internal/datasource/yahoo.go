package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// Yahoo serves daily bars from the v8 chart API and options chains from
// the v7 options API. Both endpoints are public and keyless.
type Yahoo struct {
	baseURL string
	cache   *Cache
	limiter *rate.Limiter
}

// NewYahoo creates a Yahoo Finance provider. cacheTTL bounds how long
// fetched chains and bars are reused; rps caps upstream request rate.
func NewYahoo(cacheTTL time.Duration, rps int) *Yahoo {
	if rps < 1 {
		rps = 1
	}
	return &Yahoo{
		baseURL: "https://query1.finance.yahoo.com",
		cache:   NewCache(cacheTTL),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Name returns the provider name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfOptionsResponse struct {
	OptionChain struct {
		Result []yfOptionsResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"optionChain"`
}

type yfOptionsResult struct {
	UnderlyingSymbol string      `json:"underlyingSymbol"`
	ExpirationDates  []int64     `json:"expirationDates"`
	Quote            yfSpotQuote `json:"quote"`
	Options          []yfOptions `json:"options"`
}

type yfSpotQuote struct {
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type yfOptions struct {
	ExpirationDate int64        `json:"expirationDate"`
	Calls          []yfContract `json:"calls"`
	Puts           []yfContract `json:"puts"`
}

type yfContract struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	LastPrice         float64 `json:"lastPrice"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	LastTradeDate     int64   `json:"lastTradeDate"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// DailyBars returns daily candles from the Yahoo chart API.
func (y *Yahoo) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	sym := normalizeSymbol(symbol)

	cacheKey := fmt.Sprintf("bars:%s:%d:%d", sym, from.Unix(), to.Unix())
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.Bar), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, url.PathEscape(sym), from.Unix(), to.Unix())

	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", sym, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	bars := parseYFBars(resp.Chart.Result[0])
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	y.cache.Set(cacheKey, bars)
	return bars, nil
}

// Expirations returns the listed expiration dates and spot price from the
// Yahoo options API.
func (y *Yahoo) Expirations(ctx context.Context, symbol string) ([]utils.DateKey, float64, error) {
	chain, err := y.Chain(ctx, symbol, "")
	if err != nil {
		return nil, 0, err
	}
	return chain.Expiries, chain.SpotPrice, nil
}

// Chain returns one expiration's chain from the Yahoo options API. A zero
// expiration fetches the nearest listed expiration.
func (y *Yahoo) Chain(ctx context.Context, symbol string, expiration utils.DateKey) (*models.OptionsChain, error) {
	sym := normalizeSymbol(symbol)

	cacheKey := "chain:" + sym + ":" + expiration.String()
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.OptionsChain), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v7/finance/options/%s", y.baseURL, url.PathEscape(sym))
	if !expiration.IsZero() {
		ts := expiration.Time()
		if ts.IsZero() {
			return nil, fmt.Errorf("bad expiration %q", expiration)
		}
		u += fmt.Sprintf("?date=%d", ts.Unix())
	}

	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo options %s: %w", sym, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfOptionsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo options: %w", err)
	}

	if resp.OptionChain.Error != nil {
		return nil, fmt.Errorf("yahoo options error: %s", resp.OptionChain.Error.Description)
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	result := resp.OptionChain.Result[0]
	chain := &models.OptionsChain{
		Symbol:    strings.ToUpper(symbol),
		SpotPrice: result.Quote.RegularMarketPrice,
	}
	for _, ts := range result.ExpirationDates {
		chain.Expiries = append(chain.Expiries, expiryKey(ts))
	}

	if len(result.Options) == 0 {
		return nil, fmt.Errorf("%w: %s has no listed options", ErrNoData, symbol)
	}
	opt := result.Options[0]
	chain.Expiration = expiryKey(opt.ExpirationDate)
	chain.Calls = parseYFContracts(opt.Calls, models.Call)
	chain.Puts = parseYFContracts(opt.Puts, models.Put)

	y.cache.Set(cacheKey, chain)
	return chain, nil
}

// --- Helpers ---

func parseYFBars(result yfChartResult) []models.Bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Drop rows with any missing OHLC field: a half-filled candle
		// poisons gap and return computations downstream.
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) {
			break
		}
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		b := models.Bar{
			Date:  utils.NewDateKey(time.Unix(ts, 0), utils.Eastern),
			Open:  *q.Open[i],
			High:  *q.High[i],
			Low:   *q.Low[i],
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		bars = append(bars, b)
	}
	return bars
}

func parseYFContracts(raw []yfContract, typ models.OptionType) []models.OptionContract {
	contracts := make([]models.OptionContract, 0, len(raw))
	for _, c := range raw {
		contracts = append(contracts, models.OptionContract{
			Strike:               c.Strike,
			Type:                 typ,
			LastPrice:            c.LastPrice,
			Volume:               c.Volume,
			OpenInterest:         c.OpenInterest,
			ImpliedVolatilityRaw: c.ImpliedVolatility,
			LastTradeDate:        utils.NewDateKey(time.Unix(c.LastTradeDate, 0), utils.Eastern),
			ContractSymbol:       c.ContractSymbol,
		})
	}
	return contracts
}

// expiryKey converts an expiration timestamp to a calendar date. Yahoo
// stamps expirations at UTC midnight, so the conversion must stay in UTC
// or the date slips back a day.
func expiryKey(ts int64) utils.DateKey {
	return utils.DateKeyUTC(time.Unix(ts, 0))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
