package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ccexpense/internal/core"
)

func quoteServer(t *testing.T, bid string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"USDBRL":{"bid":"` + bid + `"}}`))
	}))
}

func TestRateBaseCurrency(t *testing.T) {
	p := NewProvider()
	if got := p.Rate(context.Background(), core.BRL); got != 1 {
		t.Errorf("Rate(BRL) = %f, want 1", got)
	}
	if got := p.Rate(context.Background(), ""); got != 1 {
		t.Errorf("Rate(empty) = %f, want 1", got)
	}
}

func TestRateFetchAndCache(t *testing.T) {
	var hits int32
	srv := quoteServer(t, "5.43", &hits)
	defer srv.Close()

	p := NewProvider(WithEndpoint(srv.URL))

	if got := p.Rate(context.Background(), core.USD); got != 5.43 {
		t.Errorf("Rate(USD) = %f, want 5.43", got)
	}
	// Second call must come from cache.
	if got := p.Rate(context.Background(), core.USD); got != 5.43 {
		t.Errorf("cached Rate(USD) = %f, want 5.43", got)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("quote API hit %d times, want 1", n)
	}
}

func TestRateCacheExpiry(t *testing.T) {
	var hits int32
	srv := quoteServer(t, "5.43", &hits)
	defer srv.Close()

	now := time.Now()
	p := NewProvider(WithEndpoint(srv.URL), WithClock(func() time.Time { return now }))

	p.Rate(context.Background(), core.USD)
	now = now.Add(13 * time.Hour)
	p.Rate(context.Background(), core.USD)

	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("quote API hit %d times after expiry, want 2", n)
	}
}

func TestRateFallbackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(WithEndpoint(srv.URL))
	if got := p.Rate(context.Background(), core.USD); got != fallbackRates[core.USD] {
		t.Errorf("Rate(USD) on failure = %f, want fallback %f", got, fallbackRates[core.USD])
	}
}

func TestRateStaleCacheBeatsFallback(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"USDBRL":{"bid":"5.10"}}`))
	}))
	defer srv.Close()

	now := time.Now()
	p := NewProvider(WithEndpoint(srv.URL), WithClock(func() time.Time { return now }))

	p.Rate(context.Background(), core.USD)
	healthy.Store(false)
	now = now.Add(13 * time.Hour)

	if got := p.Rate(context.Background(), core.USD); got != 5.10 {
		t.Errorf("stale Rate(USD) = %f, want 5.10", got)
	}
}
