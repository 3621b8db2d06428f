package datasource

import (
	"testing"
	"time"
)

// ── Cache ──

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(time.Minute)

	if _, ok := c.Get("chart:ACME"); ok {
		t.Error("empty cache returned a hit")
	}

	c.Set("chart:ACME", 42)
	v, ok := c.Get("chart:ACME")
	if !ok || v != 42 {
		t.Errorf("Get after Set: got %v, %v, want 42, true", v, ok)
	}
}

func TestCacheExpiryEvictsOnRead(t *testing.T) {
	// A negative TTL makes every entry already expired at write time.
	c := NewCache(-time.Second)
	c.Set("chart:ACME", 42)

	if _, ok := c.Get("chart:ACME"); ok {
		t.Error("expired entry returned a hit")
	}
	c.mu.RLock()
	_, still := c.entries["chart:ACME"]
	c.mu.RUnlock()
	if still {
		t.Error("expired entry not evicted by the read")
	}
}
