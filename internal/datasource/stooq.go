package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// Stooq serves daily bars from stooq.com's CSV download endpoint. It needs
// no API key, which makes it the fallback when Yahoo throttles or errors.
// It carries no options data.
type Stooq struct {
	baseURL string
	cache   *Cache
	limiter *rate.Limiter
}

// NewStooq creates a Stooq provider.
func NewStooq(cacheTTL time.Duration) *Stooq {
	return &Stooq{
		baseURL: "https://stooq.com",
		cache:   NewCache(cacheTTL),
		limiter: rate.NewLimiter(rate.Limit(2), 2),
	}
}

// Name returns the provider name.
func (s *Stooq) Name() string { return "Stooq" }

// DailyBars returns daily candles from the Stooq CSV endpoint.
func (s *Stooq) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	sym := stooqSymbol(symbol)

	cacheKey := fmt.Sprintf("bars:%s:%s:%s", sym, from.Format("20060102"), to.Format("20060102"))
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]models.Bar), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		s.baseURL, sym, from.Format("20060102"), to.Format("20060102"))

	body, _, err := doGet(ctx, u, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, fmt.Errorf("stooq daily %s: %w", sym, err)
	}
	defer body.Close()

	bars, err := parseStooqCSV(body)
	if err != nil {
		return nil, fmt.Errorf("stooq daily %s: %w", sym, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	s.cache.Set(cacheKey, bars)
	return bars, nil
}

// parseStooqCSV reads the Date,Open,High,Low,Close,Volume download format.
// Stooq answers unknown symbols with a one-line "No data" body instead of
// an HTTP error.
func parseStooqCSV(r io.Reader) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 5 || !strings.EqualFold(header[0], "Date") {
		return nil, ErrNoData
	}

	var bars []models.Bar
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) < 5 {
			continue
		}

		date, err := utils.ParseDateKey(row[0])
		if err != nil {
			continue
		}
		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		closePx, err4 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}

		b := models.Bar{Date: date, Open: open, High: high, Low: low, Close: closePx}
		if len(row) > 5 {
			if vol, err := strconv.ParseFloat(row[5], 64); err == nil {
				b.Volume = int64(vol)
			}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// stooqSymbol maps a US ticker to Stooq's naming: lowercase with a ".us"
// suffix. Symbols already carrying an exchange suffix pass through.
func stooqSymbol(symbol string) string {
	sym := strings.ToLower(strings.TrimSpace(symbol))
	if strings.Contains(sym, ".") {
		return sym
	}
	return sym + ".us"
}
