// Package exchange provides conversion rates into the base currency (BRL).
//
// Rates come from an external quote API and are cached for 12 hours per
// currency code. A fetch failure degrades to a fixed conservative fallback
// rate instead of an error: expense entry must never be blocked by a
// third-party outage.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"ccexpense/internal/core"
)

const (
	// DefaultEndpoint serves quotes as {"USDBRL": {"bid": "5.43", ...}}.
	DefaultEndpoint = "https://economia.awesomeapi.com.br/json/last"

	// DefaultTTL is the cache validity window.
	DefaultTTL = 12 * time.Hour

	fetchTimeout = 5 * time.Second
)

// Fallback rates used when the quote API is unreachable.
var fallbackRates = map[core.Currency]float64{
	core.USD: 5.00,
	core.EUR: 6.00,
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// Provider fetches and caches conversion rates.
type Provider struct {
	endpoint string
	ttl      time.Duration
	client   *http.Client
	now      func() time.Time

	mu    sync.Mutex
	cache map[core.Currency]cachedRate
}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the quote API base URL.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// WithTTL overrides the cache validity window.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		endpoint: DefaultEndpoint,
		ttl:      DefaultTTL,
		client:   &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
		cache:    make(map[core.Currency]cachedRate),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rate returns the multiplier from the given currency into the base currency.
// The base currency itself always yields 1. Never fails: on cache miss the
// rate is fetched with bounded retry, and on persistent failure the fixed
// fallback is returned.
func (p *Provider) Rate(ctx context.Context, from core.Currency) float64 {
	if from == core.BaseCurrency || from == "" {
		return 1
	}

	p.mu.Lock()
	cached, ok := p.cache[from]
	p.mu.Unlock()
	if ok && p.now().Sub(cached.fetchedAt) < p.ttl {
		return cached.rate
	}

	rate, err := p.fetch(ctx, from)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rate fetch failed, using fallback",
			"currency", from,
			"fallback_rate", fallbackRates[from],
			"error", err)
		if ok {
			// A stale quote beats the static fallback.
			return cached.rate
		}
		return fallbackRates[from]
	}

	p.mu.Lock()
	p.cache[from] = cachedRate{rate: rate, fetchedAt: p.now()}
	p.mu.Unlock()

	slog.InfoContext(ctx, "Exchange rate refreshed", "currency", from, "rate", rate)
	return rate
}

func (p *Provider) fetch(ctx context.Context, from core.Currency) (float64, error) {
	var rate float64

	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := p.fetchOnce(ctx, from)
		if err != nil {
			return retry.RetryableError(err)
		}
		rate = r
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rate, nil
}

func (p *Provider) fetchOnce(ctx context.Context, from core.Currency) (float64, error) {
	url := fmt.Sprintf("%s/%s-%s", p.endpoint, from, core.BaseCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote API status %d", resp.StatusCode)
	}

	var payload map[string]struct {
		Bid string `json:"bid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode quote: %w", err)
	}

	key := string(from) + string(core.BaseCurrency)
	quote, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("quote %s missing from response", key)
	}

	var rate float64
	if _, err := fmt.Sscanf(quote.Bid, "%f", &rate); err != nil {
		return 0, fmt.Errorf("parse bid %q: %w", quote.Bid, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("non-positive rate %f", rate)
	}
	return rate, nil
}
