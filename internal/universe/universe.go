package universe

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"BreakoutSentinel/internal/model"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Fallback is used when the constituent list cannot be fetched.
var Fallback = []model.Symbol{
	"RELIANCE", "TCS", "HDFCBANK", "ICICIBANK", "INFY", "HINDUNILVR",
	"ITC", "LT", "SBIN", "BHARTIARTL", "BAJFINANCE", "ASIANPAINT",
	"MARUTI", "KOTAKBANK", "AXISBANK", "TITAN", "ULTRACEMCO", "SUNPHARMA",
	"NESTLEIND", "ONGC", "NTPC", "POWERGRID", "INDUSINDBK", "TECHM",
	"WIPRO", "ADANIENT", "ADANIPORTS", "JSWSTEEL", "GRASIM", "DIVISLAB",
}

// Loader resolves the fixed symbol universe for a process.
type Loader struct {
	URL    string // index constituent CSV
	File   string // JSON array of symbols; takes precedence over URL
	Client *http.Client
	Log    *zap.Logger
}

// Load returns the universe, falling back to the built-in list when the
// configured source fails or is empty.
func (l *Loader) Load(ctx context.Context) []model.Symbol {
	var (
		symbols []model.Symbol
		err     error
		from    string
	)
	switch {
	case l.File != "":
		from = l.File
		symbols, err = ReadFile(l.File)
	case l.URL != "":
		from = l.URL
		symbols, err = l.fetchCSV(ctx)
	default:
		err = errors.New("no universe source configured")
	}
	if err == nil && len(symbols) == 0 {
		err = errors.New("no symbols found")
	}
	if err != nil {
		l.Log.Warn("universe unavailable, using built-in list", zap.String("source", from), zap.Error(err))
		return append([]model.Symbol(nil), Fallback...)
	}
	l.Log.Info("universe loaded", zap.String("source", from), zap.Int("symbols", len(symbols)))
	return symbols
}

func (l *Loader) fetchCSV(ctx context.Context) ([]model.Symbol, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch constituents: status %d, body: %s", resp.StatusCode, string(body))
	}
	return ParseCSV(resp.Body)
}

// ParseCSV extracts the Symbol column from an index constituent CSV.
func ParseCSV(r io.Reader) ([]model.Symbol, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := lo.IndexOf(lo.Map(header, func(h string, _ int) string {
		return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}), "symbol")
	if col < 0 {
		return nil, fmt.Errorf("csv has no Symbol column: %v", header)
	}

	var raw []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if col < len(rec) {
			raw = append(raw, rec[col])
		}
	}
	return normalize(raw), nil
}

// ReadFile reads a JSON array of symbols.
func ReadFile(path string) ([]model.Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse universe file: %w", err)
	}
	return normalize(raw), nil
}

func normalize(raw []string) []model.Symbol {
	syms := lo.FilterMap(raw, func(s string, _ int) (model.Symbol, bool) {
		s = strings.ToUpper(strings.TrimSpace(s))
		return model.Symbol(s), s != ""
	})
	return lo.Uniq(syms)
}
