package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// YahooFetcher implements QuoteFetcher and HighFetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL string
	Suffix  string // exchange suffix appended to symbols, e.g. ".NS"
	Client  *http.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL, suffix string, client *http.Client) *YahooFetcher {
	return &YahooFetcher{BaseURL: baseURL, Suffix: suffix, Client: client}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) ticker(symbol model.Symbol) string {
	return string(symbol) + f.Suffix
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High  []*float64 `json:"high"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol model.Symbol, params url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.ticker(symbol)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w", f.ticker(symbol), ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", f.ticker(symbol), ErrNoData)
	}
	return &chart, nil
}

// FetchLiveQuote returns regularMarketPrice, falling back to the last non-null close.
func (f *YahooFetcher) FetchLiveQuote(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	chart, err := f.fetchChart(ctx, symbol, url.Values{"interval": {"1m"}, "range": {"1d"}})
	if err != nil {
		return decimal.Zero, err
	}
	result := chart.Chart.Result[0]
	if p := result.Meta.RegularMarketPrice; p != nil && *p > 0 {
		return decimal.NewFromFloat(*p), nil
	}
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil && *closes[i] > 0 {
				return decimal.NewFromFloat(*closes[i]), nil
			}
		}
	}
	return decimal.Zero, fmt.Errorf("yahoo %s price: %w", f.ticker(symbol), ErrNoData)
}

// FetchHigh returns the max daily high within window.
func (f *YahooFetcher) FetchHigh(ctx context.Context, symbol model.Symbol, window model.PriceWindow) (decimal.Decimal, error) {
	chart, err := f.fetchChart(ctx, symbol, url.Values{
		"interval": {"1d"},
		"period1":  {strconv.FormatInt(window.Start.Unix(), 10)},
		"period2":  {strconv.FormatInt(window.End.Unix(), 10)},
	})
	if err != nil {
		return decimal.Zero, err
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return decimal.Zero, fmt.Errorf("yahoo %s history: %w", f.ticker(symbol), ErrNoData)
	}

	var high *float64
	for i, h := range result.Indicators.Quote[0].High {
		if h == nil || *h <= 0 {
			continue // null bars (holidays etc.)
		}
		// Yahoo may append the current session past period2.
		if i < len(result.Timestamp) && result.Timestamp[i] >= window.End.Unix() {
			continue
		}
		if high == nil || *h > *high {
			high = h
		}
	}
	if high == nil {
		return decimal.Zero, fmt.Errorf("yahoo %s history: %w", f.ticker(symbol), ErrNoData)
	}
	return decimal.NewFromFloat(*high), nil
}
