package web

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05 MST"

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="300">
<title>Breakout Sentinel</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
<h1>Stocks above last month's high</h1>
<p id="updated">Last updated: {{.Updated}}{{with .Age}} ({{.}}){{end}}</p>
{{if .Rows}}
<table id="crossed">
<thead><tr><th>Symbol</th><th>Live Price</th><th>Last Month High</th><th>% Above</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td class="symbol">{{.Symbol}}</td><td>{{.Live}}</td><td>{{.High}}</td><td>{{.Percent}}</td></tr>
{{end}}</tbody>
</table>
{{else}}
<p id="empty">No stocks are currently above last month's high.</p>
{{end}}
</body>
</html>
`))

type row struct {
	Symbol  model.Symbol
	Live    string
	High    string
	Percent string
}

type pageData struct {
	Updated string
	Age     string
	Rows    []row
}

type stockJSON struct {
	Symbol        model.Symbol `json:"symbol"`
	LivePrice     json.Number  `json:"live_price"`
	LastMonthHigh json.Number  `json:"last_month_high"`
	PercentAbove  json.Number  `json:"percent_above"`
}

type crossedJSON struct {
	UpdatedAt *time.Time  `json:"updated_at"`
	Stocks    []stockJSON `json:"stocks"`
}

// View serves the persisted crossed set read-only.
type View struct {
	Store store.Store
	Loc   *time.Location
	Log   *zap.Logger
	Now   func() time.Time
}

// NewView creates a View rendering times in loc.
func NewView(st store.Store, loc *time.Location, log *zap.Logger) *View {
	if loc == nil {
		loc = time.UTC
	}
	return &View{Store: st, Loc: loc, Log: log, Now: time.Now}
}

// Handler returns the HTTP routes. Other methods on known paths get 405.
func (v *View) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", v.index)
	mux.HandleFunc("GET /api/crossed", v.apiCrossed)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (v *View) snapshot(ctx context.Context) (model.CrossedSet, time.Time, bool, error) {
	set, err := v.Store.Load(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	at, ok, err := v.Store.UpdatedAt(ctx)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return set, at, ok, nil
}

func (v *View) index(w http.ResponseWriter, r *http.Request) {
	set, at, ok, err := v.snapshot(r.Context())
	if err != nil {
		v.Log.Error("view: read state", zap.Error(err))
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}

	data := pageData{Updated: "N/A"}
	if ok {
		data.Updated = at.In(v.Loc).Format(timeLayout)
		data.Age = humanize.RelTime(at, v.Now(), "ago", "from now")
	}
	data.Rows = lo.Map(set.Sorted(), func(e model.CrossedEntry, _ int) row {
		return row{
			Symbol:  e.Symbol,
			Live:    notifier.FormatPrice(e.LivePrice),
			High:    notifier.FormatPrice(e.LastMonthHigh),
			Percent: e.PercentAbove().StringFixed(2) + "%",
		}
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		v.Log.Warn("view: render", zap.Error(err))
	}
}

func (v *View) apiCrossed(w http.ResponseWriter, r *http.Request) {
	set, at, ok, err := v.snapshot(r.Context())
	if err != nil {
		v.Log.Error("view: read state", zap.Error(err))
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := crossedJSON{
		Stocks: lo.Map(set.Sorted(), func(e model.CrossedEntry, _ int) stockJSON {
			return stockJSON{
				Symbol:        e.Symbol,
				LivePrice:     json.Number(e.LivePrice.StringFixed(2)),
				LastMonthHigh: json.Number(e.LastMonthHigh.StringFixed(2)),
				PercentAbove:  json.Number(e.PercentAbove().StringFixed(2)),
			}
		}),
	}
	if ok {
		t := at.In(v.Loc)
		resp.UpdatedAt = &t
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		v.Log.Warn("view: encode", zap.Error(err))
	}
}
