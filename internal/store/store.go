package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"BreakoutSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// ErrMalformed marks persisted content that is not a sequence of
// {symbol, live_price, last_month_high} records.
var ErrMalformed = errors.New("malformed crossed set")

// Store durably holds the crossed set. Load treats malformed content as an
// empty set. An unreadable medium (I/O error, unreachable Redis) is returned
// as an error rather than read as empty: an empty previous set would re-alert
// every crossed symbol and then overwrite the good state, so the cycle stops
// instead. Replace overwrites the whole set atomically.
type Store interface {
	Load(ctx context.Context) (model.CrossedSet, error)
	Replace(ctx context.Context, set model.CrossedSet) error
	UpdatedAt(ctx context.Context) (time.Time, bool, error)
}

type record struct {
	Symbol        string      `json:"symbol"`
	LivePrice     json.Number `json:"live_price"`
	LastMonthHigh json.Number `json:"last_month_high"`
}

// Encode renders set as an indented JSON array ordered by symbol, prices with two decimals.
func Encode(set model.CrossedSet) ([]byte, error) {
	records := make([]record, 0, len(set))
	for _, e := range set.Sorted() {
		records = append(records, record{
			Symbol:        string(e.Symbol),
			LivePrice:     json.Number(e.LivePrice.StringFixed(2)),
			LastMonthHigh: json.Number(e.LastMonthHigh.StringFixed(2)),
		})
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode crossed set: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses persisted content. Any deviation from the expected shape
// rejects the whole document; there is no partial parse.
func Decode(data []byte) (model.CrossedSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.CrossedSet{}, nil
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a sequence", ErrMalformed)
	}

	set := make(model.CrossedSet, len(raw))
	for i, obj := range raw {
		var sym string
		if err := json.Unmarshal(obj["symbol"], &sym); err != nil || sym == "" {
			return nil, fmt.Errorf("%w: record %d: bad symbol", ErrMalformed, i)
		}
		live, err := decodePrice(obj["live_price"])
		if err != nil {
			return nil, fmt.Errorf("%w: record %d live_price: %v", ErrMalformed, i, err)
		}
		high, err := decodePrice(obj["last_month_high"])
		if err != nil {
			return nil, fmt.Errorf("%w: record %d last_month_high: %v", ErrMalformed, i, err)
		}
		set[model.Symbol(sym)] = model.CrossedEntry{
			Symbol:        model.Symbol(sym),
			LivePrice:     live,
			LastMonthHigh: high,
		}
	}
	return set, nil
}

func decodePrice(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, errors.New("missing")
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
