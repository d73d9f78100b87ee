package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Symbol identifies a tradable instrument, e.g. "RELIANCE".
type Symbol string

// CrossedEntry is a snapshot of a symbol trading above its prior-month high.
type CrossedEntry struct {
	Symbol        Symbol
	LivePrice     decimal.Decimal
	LastMonthHigh decimal.Decimal
}

// PercentAbove returns how far the live price sits above the high, in percent.
func (e CrossedEntry) PercentAbove() decimal.Decimal {
	if e.LastMonthHigh.IsZero() {
		return decimal.Zero
	}
	return e.LivePrice.Sub(e.LastMonthHigh).Div(e.LastMonthHigh).Mul(decimal.NewFromInt(100))
}

// CrossedSet maps each symbol currently above its threshold to its snapshot.
type CrossedSet map[Symbol]CrossedEntry

// Has reports whether sym is in the set.
func (s CrossedSet) Has(sym Symbol) bool {
	_, ok := s[sym]
	return ok
}

// Sorted returns the entries ordered by symbol.
func (s CrossedSet) Sorted() []CrossedEntry {
	out := make([]CrossedEntry, 0, len(s))
	for _, e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CycleResult summarizes one monitoring pass.
type CycleResult struct {
	Evaluated  int // symbols with complete price data
	Skipped    int // symbols dropped for missing data
	Crossed    int // symbols in the committed set
	NewAlerts  int // newly-crossed symbols
	AlertsSent int // deliveries that succeeded
}
