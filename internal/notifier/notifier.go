package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Alert describes a symbol that has just crossed its prior-month high.
type Alert struct {
	Symbol        model.Symbol
	LivePrice     decimal.Decimal
	LastMonthHigh decimal.Decimal
	DetectedAt    time.Time
}

// AlertFromEntry builds an Alert for a freshly crossed entry.
func AlertFromEntry(e model.CrossedEntry, at time.Time) Alert {
	return Alert{Symbol: e.Symbol, LivePrice: e.LivePrice, LastMonthHigh: e.LastMonthHigh, DetectedAt: at}
}

// Channel delivers an alert to a fixed recipient set. It keeps no dedup
// memory; callers decide when to notify.
type Channel interface {
	Notify(ctx context.Context, alert Alert) error
	Name() string
}

// Fanout delivers to every channel and joins their errors.
type Fanout []Channel

func (f Fanout) Name() string { return "fanout" }

func (f Fanout) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, ch := range f {
		if err := ch.Notify(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}
