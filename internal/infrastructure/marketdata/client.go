// Package marketdata is the HTTP client of the market-data provider backing
// the factual-accuracy quality dimension.  A symbol the provider does not
// know is a clean not-found; anything else is an external-service failure,
// which the quality scorer degrades on after its own retries.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/turtacn/EquityLens/internal/analysis/quality"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = time.Minute
)

// Client implements quality.MarketData with a small in-process quote cache.
// Reports about the same ticker arrive in bursts; the cache keeps the
// provider's rate limits out of the assessment path.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logging.Logger

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cachedQuote
}

type cachedQuote struct {
	quote   quality.Quote
	fetched time.Time
}

// NewClient validates the configuration and builds the client.
func NewClient(cfg config.MarketDataConfig, log logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "marketdata base_url must not be empty")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		cacheTTL: ttl,
		cache:    make(map[string]cachedQuote),
	}, nil
}

type quoteResponse struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// Quote resolves a ticker to its latest quote.
func (c *Client) Quote(ctx context.Context, symbol string) (quality.Quote, error) {
	if q, ok := c.cached(symbol); ok {
		return q, nil
	}

	u := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return quality.Quote{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to build quote request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return quality.Quote{}, errors.Wrap(err, errors.ErrCodeExternalService, "market data service unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return quality.Quote{}, errors.New(errors.ErrCodeNotFound,
			fmt.Sprintf("unknown ticker %q", symbol))
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return quality.Quote{}, errors.New(errors.ErrCodeExternalService,
			fmt.Sprintf("market data service returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return quality.Quote{}, errors.Wrap(err, errors.ErrCodeExternalService, "malformed quote response")
	}
	q := quality.Quote{Symbol: parsed.Symbol, Price: parsed.Price, Currency: parsed.Currency}
	c.store(symbol, q)
	return q, nil
}

func (c *Client) cached(symbol string) (quality.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[symbol]
	if !ok || time.Since(entry.fetched) > c.cacheTTL {
		return quality.Quote{}, false
	}
	return entry.quote, true
}

func (c *Client) store(symbol string, q quality.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[symbol] = cachedQuote{quote: q, fetched: time.Now()}
}
