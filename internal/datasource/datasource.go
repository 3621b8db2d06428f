// Package datasource fetches price history and options chains from public
// market data endpoints. It defines provider interfaces and implements
// concrete sources for Yahoo Finance (bars and options) and Stooq (bars
// only, used as a keyless fallback).
package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// MarketDataProvider serves daily OHLCV history.
type MarketDataProvider interface {
	// Name returns the human-readable name of this provider.
	Name() string

	// DailyBars returns daily candles for the symbol over [from, to],
	// oldest first. Bars with incomplete OHLC data are dropped.
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// OptionsDataProvider serves listed options chains.
type OptionsDataProvider interface {
	// Name returns the human-readable name of this provider.
	Name() string

	// Expirations returns the listed expiration dates for the symbol,
	// nearest first, along with the current spot price.
	Expirations(ctx context.Context, symbol string) ([]utils.DateKey, float64, error)

	// Chain returns one expiration's full chain. A zero expiration asks
	// for the provider's default (nearest) expiration.
	Chain(ctx context.Context, symbol string, expiration utils.DateKey) (*models.OptionsChain, error)
}

// --- Sentinel errors ---

// ErrNotSupported is returned when a provider does not support a method.
var ErrNotSupported = fmt.Errorf("operation not supported by this provider")

// ErrSymbolNotFound is returned when a symbol cannot be resolved.
var ErrSymbolNotFound = fmt.Errorf("symbol not found")

// ErrNoData is returned when a provider responds but has no usable rows.
var ErrNoData = fmt.Errorf("no data returned")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// ClientError reports whether the status code marks a non-retryable
// request problem.
func (e *ErrHTTP) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/csv, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or
// expired. Expired entries are evicted on read; the working set is a
// handful of symbols per run, so no sweeper is needed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && time.Now().After(e.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
