package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/store"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func entry(sym string, live, high int64) model.CrossedEntry {
	return model.CrossedEntry{
		Symbol:        model.Symbol(sym),
		LivePrice:     decimal.NewFromInt(live),
		LastMonthHigh: decimal.NewFromInt(high),
	}
}

func newTestView(t *testing.T) (*View, store.Store) {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "crossed.json"), zap.NewNop())
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return NewView(st, loc, zap.NewNop()), st
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestIndex_NeverWritten(t *testing.T) {
	v, _ := newTestView(t)
	rec := get(t, v.Handler(), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "Last updated: N/A", strings.TrimSpace(doc.Find("#updated").Text()))
	assert.Equal(t, 1, doc.Find("#empty").Length())
	assert.Equal(t, 0, doc.Find("#crossed").Length())
}

func TestIndex_RendersSortedRows(t *testing.T) {
	v, st := newTestView(t)
	require.NoError(t, st.Replace(context.Background(), model.CrossedSet{
		"TCS":      entry("TCS", 4100, 4000),
		"INFY":     entry("INFY", 1650, 1600),
		"RELIANCE": entry("RELIANCE", 2600, 2500),
	}))
	v.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	rec := get(t, v.Handler(), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	var symbols []string
	doc.Find("#crossed td.symbol").Each(func(_ int, s *goquery.Selection) {
		symbols = append(symbols, s.Text())
	})
	assert.Equal(t, []string{"INFY", "RELIANCE", "TCS"}, symbols)

	first := doc.Find("#crossed tbody tr").First().Find("td")
	assert.Equal(t, "₹1,650.00", first.Eq(1).Text())
	assert.Equal(t, "₹1,600.00", first.Eq(2).Text())
	assert.Equal(t, "3.13%", first.Eq(3).Text())

	updated := doc.Find("#updated").Text()
	assert.Contains(t, updated, "IST")
	assert.Contains(t, updated, "2 hours ago")
}

func TestAPICrossed(t *testing.T) {
	v, st := newTestView(t)

	rec := get(t, v.Handler(), http.MethodGet, "/api/crossed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated_at":null,"stocks":[]}`, rec.Body.String())

	require.NoError(t, st.Replace(context.Background(), model.CrossedSet{"TCS": entry("TCS", 4100, 4000)}))
	rec = get(t, v.Handler(), http.MethodGet, "/api/crossed")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UpdatedAt *time.Time `json:"updated_at"`
		Stocks    []struct {
			Symbol        string  `json:"symbol"`
			LivePrice     float64 `json:"live_price"`
			LastMonthHigh float64 `json:"last_month_high"`
			PercentAbove  float64 `json:"percent_above"`
		} `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.UpdatedAt)
	require.Len(t, resp.Stocks, 1)
	assert.Equal(t, "TCS", resp.Stocks[0].Symbol)
	assert.Equal(t, 4100.0, resp.Stocks[0].LivePrice)
	assert.Equal(t, 4000.0, resp.Stocks[0].LastMonthHigh)
	assert.Equal(t, 2.5, resp.Stocks[0].PercentAbove)
}

func TestHealthz(t *testing.T) {
	v, _ := newTestView(t)
	assert.Equal(t, http.StatusOK, get(t, v.Handler(), http.MethodGet, "/healthz").Code)
}

func TestReadOnly(t *testing.T) {
	v, _ := newTestView(t)
	for _, path := range []string{"/", "/api/crossed", "/healthz"} {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			assert.Equal(t, http.StatusMethodNotAllowed, get(t, v.Handler(), method, path).Code, "%s %s", method, path)
		}
	}
	assert.Equal(t, http.StatusNotFound, get(t, v.Handler(), http.MethodGet, "/nope").Code)
}

type brokenStore struct{ store.Store }

func (brokenStore) Load(context.Context) (model.CrossedSet, error) {
	return nil, errors.New("redis down")
}

func TestStoreUnavailable(t *testing.T) {
	v := NewView(brokenStore{}, time.UTC, zap.NewNop())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, v.Handler(), http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, v.Handler(), http.MethodGet, "/api/crossed").Code)
}
