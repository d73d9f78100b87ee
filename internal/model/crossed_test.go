package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriorMonth(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	tests := []struct {
		now   time.Time
		start string
		end   string
		key   string
	}{
		{time.Date(2024, 6, 15, 10, 0, 0, 0, ist), "2024-05-01", "2024-06-01", "2024-05"},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, ist), "2023-12-01", "2024-01-01", "2023-12"},
		{time.Date(2024, 3, 31, 23, 59, 0, 0, ist), "2024-02-01", "2024-03-01", "2024-02"},
	}
	for _, tt := range tests {
		w := PriorMonth(tt.now)
		assert.Equal(t, tt.start, w.Start.Format("2006-01-02"))
		assert.Equal(t, tt.end, w.End.Format("2006-01-02"))
		assert.Equal(t, tt.key, w.Key())
		assert.Equal(t, ist, w.Start.Location())
	}
}

func TestCrossedSet_Sorted(t *testing.T) {
	s := CrossedSet{
		"TCS":      {Symbol: "TCS"},
		"INFY":     {Symbol: "INFY"},
		"RELIANCE": {Symbol: "RELIANCE"},
	}
	got := s.Sorted()
	assert.Equal(t, []Symbol{"INFY", "RELIANCE", "TCS"}, []Symbol{got[0].Symbol, got[1].Symbol, got[2].Symbol})
	assert.True(t, s.Has("TCS"))
	assert.False(t, s.Has("ITC"))
}

func TestCrossedEntry_PercentAbove(t *testing.T) {
	e := CrossedEntry{
		LivePrice:     decimal.RequireFromString("2600"),
		LastMonthHigh: decimal.RequireFromString("2500"),
	}
	assert.Equal(t, "4.00", e.PercentAbove().StringFixed(2))
	assert.True(t, CrossedEntry{LivePrice: decimal.NewFromInt(1)}.PercentAbove().IsZero())
}
