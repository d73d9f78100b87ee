package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"BreakoutSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const niftyCSV = "\ufeffCompany Name,Industry,Symbol,Series,ISIN Code\n" +
	"Reliance Industries Ltd.,Oil Gas & Consumable Fuels,RELIANCE,EQ,INE002A01018\n" +
	"Tata Consultancy Services Ltd.,Information Technology,TCS,EQ,INE467B01029\n" +
	"Mahindra & Mahindra Ltd.,Automobile and Auto Components, M&M ,EQ,INE101A01026\n" +
	"Duplicate,X,tcs,EQ,X\n" +
	"Blank,X,,EQ,X\n"

func TestParseCSV(t *testing.T) {
	syms, err := ParseCSV(strings.NewReader(niftyCSV))
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{"RELIANCE", "TCS", "M&M"}, syms)
}

func TestParseCSV_NoSymbolColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Name,Code\nfoo,bar\n"))
	assert.Error(t, err)
}

func TestLoader_FromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(niftyCSV))
	}))
	defer srv.Close()

	l := &Loader{URL: srv.URL, Client: srv.Client(), Log: zap.NewNop()}
	assert.Equal(t, []model.Symbol{"RELIANCE", "TCS", "M&M"}, l.Load(context.Background()))
}

func TestLoader_FallsBackOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	l := &Loader{URL: srv.URL, Client: srv.Client(), Log: zap.NewNop()}
	got := l.Load(context.Background())
	assert.Equal(t, Fallback, got)

	got[0] = "MUTATED"
	assert.Equal(t, model.Symbol("RELIANCE"), Fallback[0])
}

func TestLoader_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	require.NoError(t, os.WriteFile(path, []byte(`["infy", "TCS", "INFY", ""]`), 0644))

	l := &Loader{File: path, URL: "http://unused.invalid", Log: zap.NewNop()}
	assert.Equal(t, []model.Symbol{"INFY", "TCS"}, l.Load(context.Background()))
}

func TestLoader_EmptyFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	l := &Loader{File: path, Log: zap.NewNop()}
	assert.Equal(t, Fallback, l.Load(context.Background()))
}
