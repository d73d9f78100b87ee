package collector

import (
	"context"
	"errors"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// ErrNoData means the provider answered but had no value for the symbol.
var ErrNoData = errors.New("no data")

// QuoteFetcher returns a symbol's current traded price.
type QuoteFetcher interface {
	FetchLiveQuote(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error)
	Name() string
}

// HighFetcher returns the highest traded price of a symbol within a window.
type HighFetcher interface {
	FetchHigh(ctx context.Context, symbol model.Symbol, window model.PriceWindow) (decimal.Decimal, error)
	Name() string
}

// PriceSource is what a monitoring cycle consumes. Either method may fail for
// one symbol without affecting others.
type PriceSource interface {
	LiveQuote(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error)
	PriorMonthHigh(ctx context.Context, symbol model.Symbol) (decimal.Decimal, error)
}
