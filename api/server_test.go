package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arkad-labs/eventpulse/internal/analyzer"
	"github.com/arkad-labs/eventpulse/internal/config"
	"github.com/arkad-labs/eventpulse/internal/datasource"
	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// ============================================================
// Fixtures
// ============================================================

type fakeData struct {
	bars   map[string][]models.Bar
	chains *datasource.ChainSet
}

func (f *fakeData) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, datasource.ErrSymbolNotFound
	}
	return bars, nil
}

func (f *fakeData) OptionsChains(ctx context.Context, symbol string, max int) (*datasource.ChainSet, error) {
	if f.chains == nil {
		return nil, datasource.ErrNoData
	}
	return f.chains, nil
}

func genBars(n int) (subject, benchmark []models.Bar) {
	date := utils.DateKey("2026-01-05")
	subjPx, benchPx := 100.0, 400.0
	for i := 0; i < n; i++ {
		for {
			wd := date.Time().Weekday()
			if wd != time.Saturday && wd != time.Sunday {
				break
			}
			date = date.AddDays(1)
		}

		benchRet := 0.002
		if i%3 == 0 {
			benchRet = -0.004
		}
		subjRet := 2 * benchRet
		gapOpen := subjPx * (1 + subjRet)
		volume := int64(1_000_000)
		if i == n-4 {
			subjRet = 0.06
			gapOpen = subjPx * 1.05
			volume = 9_000_000
		}

		subjPx *= 1 + subjRet
		benchPx *= 1 + benchRet

		subject = append(subject, models.Bar{
			Date: date, Open: gapOpen,
			High: subjPx * 1.01, Low: gapOpen * 0.99, Close: subjPx,
			Volume: volume,
		})
		benchmark = append(benchmark, models.Bar{
			Date: date, Open: benchPx, High: benchPx * 1.005,
			Low: benchPx * 0.995, Close: benchPx, Volume: 50_000_000,
		})
		date = date.AddDays(1)
	}
	return subject, benchmark
}

func chainSet(spot float64) *datasource.ChainSet {
	traded := utils.DateKeyUTC(utils.NowEastern())
	today := utils.DateKeyUTC(utils.NowEastern())
	mkChain := func(exp utils.DateKey) *models.OptionsChain {
		chain := &models.OptionsChain{
			Symbol: "ACME", SpotPrice: spot, Expiration: exp,
		}
		for _, k := range []float64{90, 95, 100, 105, 110} {
			chain.Calls = append(chain.Calls, models.OptionContract{
				Strike: k, Type: models.Call, LastPrice: 2.0,
				Volume: 500, OpenInterest: 400, ImpliedVolatilityRaw: 0.35,
				LastTradeDate: traded,
			})
			chain.Puts = append(chain.Puts, models.OptionContract{
				Strike: k, Type: models.Put, LastPrice: 2.0,
				Volume: 500, OpenInterest: 400, ImpliedVolatilityRaw: 0.35,
				LastTradeDate: traded,
			})
		}
		return chain
	}
	return &datasource.ChainSet{
		Symbol:    "ACME",
		SpotPrice: spot,
		Chains: []*models.OptionsChain{
			mkChain(today.AddDays(10)),
			mkChain(today.AddDays(38)),
		},
	}
}

func testServer(t *testing.T, data analyzer.MarketData) *Server {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	cfg.Market.LookbackDays = 60
	cfg.Market.EventCount = 3
	an := analyzer.New(cfg, data, nil, zerolog.Nop())
	return NewServer(cfg, an, zerolog.Nop())
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid JSON response: %v\nbody: %s", method, path, err, rec.Body.String())
	}
	return rec, resp
}

// ============================================================
// Tests
// ============================================================

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, &fakeData{})

	rec, resp := doRequest(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if !resp.Success {
		t.Errorf("health success: got false, want true")
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("health data: got %T, want object", resp.Data)
	}
	if data["status"] != "ok" {
		t.Errorf("health status field: got %v, want ok", data["status"])
	}
	if _, ok := data["market_status"]; !ok {
		t.Errorf("health response missing market_status")
	}

	// The versioned alias serves the same handler.
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/v1/health status: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	subj, bench := genBars(80)
	srv := testServer(t, &fakeData{
		bars: map[string][]models.Bar{"ACME": subj, "SPY": bench},
	})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/v1/analyze/acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/analyze status: got %d, want %d; error: %s",
			rec.Code, http.StatusOK, resp.Error)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("events data: got %T, want object", resp.Data)
	}
	if data["symbol"] != "ACME" {
		t.Errorf("symbol: got %v, want ACME (uppercased from path)", data["symbol"])
	}
	if data["records"] != nil {
		t.Errorf("records should be omitted without ?full=true, got %v", data["records"])
	}
	events, ok := data["events"].([]any)
	if !ok || len(events) == 0 {
		t.Errorf("events: got %v, want non-empty list", data["events"])
	}

	// full=true keeps the per-bar records.
	_, resp = doRequest(t, srv, http.MethodGet, "/api/v1/analyze/ACME?full=true", "")
	data = resp.Data.(map[string]any)
	if recs, ok := data["records"].([]any); !ok || len(recs) == 0 {
		t.Errorf("records with ?full=true: got %v, want non-empty list", data["records"])
	}
}

func TestAnalyzeEndpointUpstreamFailure(t *testing.T) {
	srv := testServer(t, &fakeData{bars: map[string][]models.Bar{}})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/v1/analyze/MISSING", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if resp.Success {
		t.Errorf("success: got true, want false")
	}
	if resp.Error == "" {
		t.Errorf("error message: got empty, want populated")
	}
}

func TestOptionsEndpoint(t *testing.T) {
	srv := testServer(t, &fakeData{chains: chainSet(100)})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/v1/options/ACME", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; error: %s", rec.Code, http.StatusOK, resp.Error)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("options data: got %T, want object", resp.Data)
	}
	exps, ok := data["expirations"].([]any)
	if !ok || len(exps) != 2 {
		t.Errorf("expirations: got %v, want 2 entries", data["expirations"])
	}
	if _, ok := data["summary"]; !ok {
		t.Errorf("options response missing summary")
	}
}

func TestAnticipationEndpoint(t *testing.T) {
	subj, bench := genBars(80)
	srv := testServer(t, &fakeData{
		bars:   map[string][]models.Bar{"ACME": subj, "SPY": bench},
		chains: chainSet(100),
	})

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/v1/anticipation/ACME", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; error: %s", rec.Code, http.StatusOK, resp.Error)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("anticipation data: got %T, want object", resp.Data)
	}
	score, ok := data["anticipation"].(map[string]any)
	if !ok {
		t.Fatalf("anticipation score: got %T, want object", data["anticipation"])
	}
	composite, ok := score["composite_index"].(float64)
	if !ok || composite < 0 || composite > 100 {
		t.Errorf("composite_index: got %v, want value in [0, 100]", score["composite_index"])
	}
}

func TestBatchEndpoint(t *testing.T) {
	subj, bench := genBars(80)
	srv := testServer(t, &fakeData{
		bars:   map[string][]models.Bar{"ACME": subj, "SPY": bench},
		chains: chainSet(100),
	})

	rec, resp := doRequest(t, srv, http.MethodPost, "/api/v1/anticipation/batch",
		`{"symbols": ["acme", " ACME ", ""]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; error: %s", rec.Code, http.StatusOK, resp.Error)
	}
	reports, ok := resp.Data.([]any)
	if !ok || len(reports) != 2 {
		t.Errorf("batch reports: got %v, want 2 (blank symbol dropped)", resp.Data)
	}
}

func TestBatchEndpointValidation(t *testing.T) {
	srv := testServer(t, &fakeData{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"symbols": `},
		{"empty symbols", `{"symbols": []}`},
		{"too many symbols", `{"symbols": [` + strings.Repeat(`"A",`, 20) + `"A"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, srv, http.MethodPost, "/api/v1/anticipation/batch", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp.Success || resp.Error == "" {
				t.Errorf("response: got success=%v error=%q, want failure with message",
					resp.Success, resp.Error)
			}
		})
	}
}
