package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrCycleAbandoned is returned when ctx ends before the cycle commits.
	// Nothing is sent or written in that case.
	ErrCycleAbandoned = errors.New("cycle abandoned before commit")
	// ErrCycleInProgress is returned by TryRun while another cycle holds the store.
	ErrCycleInProgress = errors.New("cycle already in progress")
)

// Monitor runs monitoring cycles: evaluate every symbol, alert on new
// crossings, then replace the stored crossed set in one write.
type Monitor struct {
	source  collector.PriceSource
	store   store.Store
	channel notifier.Channel
	log     *zap.Logger

	concurrency  int
	alertTimeout time.Duration
	now          func() time.Time

	mu sync.Mutex // one cycle per store at a time
}

type Option func(m *Monitor)

// WithConcurrency bounds how many symbols are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithAlertTimeout bounds each notification delivery.
func WithAlertTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.alertTimeout = d
	}
}

// WithClock overrides the clock used for alert timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func New(source collector.PriceSource, st store.Store, channel notifier.Channel, log *zap.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		source:       source,
		store:        st,
		channel:      channel,
		log:          log,
		concurrency:  8,
		alertTimeout: 30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// evaluation is the outcome for one symbol.
type evaluation struct {
	symbol  model.Symbol
	entry   model.CrossedEntry
	ok      bool // both prices present
	crossed bool
}

// TryRun is Run, except it returns ErrCycleInProgress instead of waiting
// for a running cycle.
func (m *Monitor) TryRun(ctx context.Context, universe []model.Symbol) (model.CycleResult, error) {
	if !m.mu.TryLock() {
		return model.CycleResult{}, ErrCycleInProgress
	}
	defer m.mu.Unlock()
	return m.run(ctx, universe)
}

// Run performs one cycle over universe. Per-symbol fetch failures and
// notification failures are logged and never returned. An error means the
// store could not be read or written, or ctx ended before commit.
func (m *Monitor) Run(ctx context.Context, universe []model.Symbol) (model.CycleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(ctx, universe)
}

func (m *Monitor) run(ctx context.Context, universe []model.Symbol) (model.CycleResult, error) {
	log := m.log.With(zap.String("cycle_id", uuid.NewString()))
	started := time.Now()
	universe = lo.Uniq(universe)
	log.Info("monitoring cycle started", zap.Int("symbols", len(universe)))

	var result model.CycleResult

	previous, err := m.store.Load(ctx)
	if err != nil {
		return result, fmt.Errorf("load crossed set: %w", err)
	}
	log.Debug("previously crossed", zap.Strings("symbols", symbolStrings(previous)))

	evals := m.evaluate(ctx, log, universe)
	if ctx.Err() != nil {
		log.Warn("monitoring cycle abandoned", zap.Error(ctx.Err()))
		return result, fmt.Errorf("%w: %v", ErrCycleAbandoned, ctx.Err())
	}

	current := make(model.CrossedSet)
	var fresh []model.CrossedEntry
	for _, ev := range evals {
		if !ev.ok {
			result.Skipped++
			continue
		}
		result.Evaluated++
		wasCrossed := previous.Has(ev.symbol)
		switch {
		case ev.crossed && !wasCrossed:
			current[ev.symbol] = ev.entry
			fresh = append(fresh, ev.entry)
		case ev.crossed:
			current[ev.symbol] = ev.entry
			log.Info("still above last month high, not re-alerting", zap.String("symbol", string(ev.symbol)))
		case wasCrossed:
			log.Info("fell below last month high, re-armed", zap.String("symbol", string(ev.symbol)))
		}
	}
	result.Crossed = len(current)
	result.NewAlerts = len(fresh)

	// Past this point the cycle runs to completion even if ctx is cancelled,
	// so a started cycle never leaves alerts sent without the matching write.
	finishCtx := context.WithoutCancel(ctx)
	result.AlertsSent = m.dispatch(finishCtx, log, fresh)

	if err := m.store.Replace(finishCtx, current); err != nil {
		log.Error("failed to write crossed set", zap.Error(err))
		return result, fmt.Errorf("replace crossed set: %w", err)
	}

	log.Info("monitoring cycle finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("skipped", result.Skipped),
		zap.Int("crossed", result.Crossed),
		zap.Int("new_alerts", result.NewAlerts),
		zap.Int("alerts_sent", result.AlertsSent),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// evaluate fetches both prices for every symbol in parallel.
func (m *Monitor) evaluate(ctx context.Context, log *zap.Logger, universe []model.Symbol) []evaluation {
	evals := make([]evaluation, len(universe))
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for i, sym := range universe {
		evals[i].symbol = sym
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			live, high, err := m.fetch(ctx, sym)
			if err != nil {
				log.Warn("could not get complete data, skipping", zap.String("symbol", string(sym)), zap.Error(err))
				return nil
			}
			log.Debug("evaluated",
				zap.String("symbol", string(sym)),
				zap.String("live_price", live.StringFixed(2)),
				zap.String("last_month_high", high.StringFixed(2)),
			)
			evals[i] = evaluation{
				symbol:  sym,
				entry:   model.CrossedEntry{Symbol: sym, LivePrice: live, LastMonthHigh: high},
				ok:      true,
				crossed: live.GreaterThan(high),
			}
			return nil
		})
	}
	_ = g.Wait()
	return evals
}

func (m *Monitor) fetch(ctx context.Context, sym model.Symbol) (decimal.Decimal, decimal.Decimal, error) {
	live, err := m.source.LiveQuote(ctx, sym)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("live price: %w", err)
	}
	high, err := m.source.PriorMonthHigh(ctx, sym)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("last month high: %w", err)
	}
	return live, high, nil
}

// dispatch notifies once per newly crossed entry and returns the number of
// successful deliveries. Failures are logged, never retried here.
func (m *Monitor) dispatch(ctx context.Context, log *zap.Logger, fresh []model.CrossedEntry) int {
	if len(fresh) == 0 {
		return 0
	}
	var (
		mu   sync.Mutex
		sent int
		g    errgroup.Group
	)
	g.SetLimit(m.concurrency)
	at := m.now()

	for _, e := range fresh {
		g.Go(func() error {
			log.Info("newly crossed last month high",
				zap.String("symbol", string(e.Symbol)),
				zap.String("live_price", e.LivePrice.StringFixed(2)),
				zap.String("last_month_high", e.LastMonthHigh.StringFixed(2)),
			)
			actx, cancel := context.WithTimeout(ctx, m.alertTimeout)
			defer cancel()
			if err := m.channel.Notify(actx, notifier.AlertFromEntry(e, at)); err != nil {
				log.Error("failed to send alert", zap.String("symbol", string(e.Symbol)), zap.Error(err))
				return nil
			}
			mu.Lock()
			sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sent
}

func symbolStrings(set model.CrossedSet) []string {
	return lo.Map(lo.Keys(set), func(s model.Symbol, _ int) string { return string(s) })
}
