package collector

import (
	"context"
	"sync"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// MockSource returns controllable fixed data for development and testing.
// A symbol missing from a map yields ErrNoData.
type MockSource struct {
	mu     sync.Mutex
	Quotes map[model.Symbol]decimal.Decimal
	Highs  map[model.Symbol]decimal.Decimal
	Calls  map[model.Symbol]int
}

var _ PriceSource = (*MockSource)(nil)

func NewMockSource() *MockSource {
	return &MockSource{
		Quotes: map[model.Symbol]decimal.Decimal{},
		Highs:  map[model.Symbol]decimal.Decimal{},
		Calls:  map[model.Symbol]int{},
	}
}

// Set records live and high for symbol, parsed from decimal strings.
func (m *MockSource) Set(symbol model.Symbol, live, high string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[symbol] = decimal.RequireFromString(live)
	m.Highs[symbol] = decimal.RequireFromString(high)
}

// Drop removes all data for symbol.
func (m *MockSource) Drop(symbol model.Symbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Quotes, symbol)
	delete(m.Highs, symbol)
}

func (m *MockSource) LiveQuote(_ context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[symbol]++
	if p, ok := m.Quotes[symbol]; ok {
		return p, nil
	}
	return decimal.Zero, ErrNoData
}

func (m *MockSource) PriorMonthHigh(_ context.Context, symbol model.Symbol) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Highs[symbol]; ok {
		return p, nil
	}
	return decimal.Zero, ErrNoData
}
