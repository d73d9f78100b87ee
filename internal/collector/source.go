package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source composes providers into a PriceSource. Providers are tried in order
// and the first value wins. Every attempt is bounded by Timeout.
type Source struct {
	Quotes  []QuoteFetcher
	Highs   []HighFetcher
	Timeout time.Duration
	Now     func() time.Time
	Log     *zap.Logger
}

var _ PriceSource = (*Source)(nil)

// NewSource creates a Source evaluating prior months in loc.
func NewSource(quotes []QuoteFetcher, highs []HighFetcher, timeout time.Duration, loc *time.Location, log *zap.Logger) *Source {
	return &Source{
		Quotes:  quotes,
		Highs:   highs,
		Timeout: timeout,
		Now:     func() time.Time { return time.Now().In(loc) },
		Log:     log,
	}
}

// LiveQuote returns the current price rounded to two decimals.
func (s *Source) LiveQuote(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	if len(s.Quotes) == 0 {
		return decimal.Zero, fmt.Errorf("live quote %s: no providers", symbol)
	}
	var lastErr error
	for _, q := range s.Quotes {
		price, err := s.attempt(ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return q.FetchLiveQuote(ctx, symbol)
		})
		if err == nil {
			return price.Round(2), nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		s.Log.Debug("quote provider failed", zap.String("provider", q.Name()), zap.String("symbol", string(symbol)), zap.Error(err))
		lastErr = err
	}
	return decimal.Zero, fmt.Errorf("live quote %s: %w", symbol, lastErr)
}

// PriorMonthHigh returns the previous calendar month's high rounded to two decimals.
func (s *Source) PriorMonthHigh(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	if len(s.Highs) == 0 {
		return decimal.Zero, fmt.Errorf("prior month high %s: no providers", symbol)
	}
	window := model.PriorMonth(s.Now())
	var lastErr error
	for _, h := range s.Highs {
		high, err := s.attempt(ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return h.FetchHigh(ctx, symbol, window)
		})
		if err == nil {
			return high.Round(2), nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		s.Log.Debug("high provider failed", zap.String("provider", h.Name()), zap.String("symbol", string(symbol)), zap.Error(err))
		lastErr = err
	}
	return decimal.Zero, fmt.Errorf("prior month high %s: %w", symbol, lastErr)
}

func (s *Source) attempt(ctx context.Context, fn func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return decimal.Zero, fmt.Errorf("timed out after %s: %w", s.Timeout, err)
		}
		return decimal.Zero, err
	}
	return v, nil
}
