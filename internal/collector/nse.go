package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// NSEFetcher implements QuoteFetcher using the NSE India quote API.
// The API rejects requests without the session cookies set by the homepage.
type NSEFetcher struct {
	BaseURL string
	Client  *http.Client

	mu     sync.Mutex
	primed bool
}

// NewNSEFetcher creates a fetcher; a cookie jar is attached to client if it has none.
func NewNSEFetcher(baseURL string, client *http.Client) *NSEFetcher {
	if client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	return &NSEFetcher{BaseURL: baseURL, Client: client}
}

func (f *NSEFetcher) Name() string { return "nse" }

type nseQuote struct {
	PriceInfo struct {
		LastPrice decimal.NullDecimal `json:"lastPrice"`
	} `json:"priceInfo"`
}

func (f *NSEFetcher) prime(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("nse prime session: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	f.primed = true
	return nil
}

func (f *NSEFetcher) resetSession() {
	f.mu.Lock()
	f.primed = false
	f.mu.Unlock()
}

func (f *NSEFetcher) FetchLiveQuote(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	if err := f.prime(ctx); err != nil {
		return decimal.Zero, err
	}

	endpoint := fmt.Sprintf("%s/api/quote-equity?symbol=%s", f.BaseURL, url.QueryEscape(string(symbol)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("nse quote: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		f.resetSession()
		return decimal.Zero, fmt.Errorf("nse quote: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("nse quote: status %d, body: %s", resp.StatusCode, string(body))
	}

	var q nseQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return decimal.Zero, fmt.Errorf("nse decode: %w", err)
	}
	if !q.PriceInfo.LastPrice.Valid || !q.PriceInfo.LastPrice.Decimal.IsPositive() {
		return decimal.Zero, fmt.Errorf("nse %s: %w", symbol, ErrNoData)
	}
	return q.PriceInfo.LastPrice.Decimal, nil
}
