package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/monitor"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrStopped is returned for cycles requested after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Runner runs one monitoring cycle unless another is in flight.
type Runner interface {
	TryRun(ctx context.Context, universe []model.Symbol) (model.CycleResult, error)
}

// Scheduler drives monitoring cycles on a fixed interval.
type Scheduler struct {
	Cron     *cron.Cron
	Monitor  Runner
	Store    store.Store
	Universe []model.Symbol
	Log      *zap.Logger
	Ctx      context.Context

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup // cycles started outside cron
}

// NewScheduler creates a new Scheduler. Ticks that fire while a cycle is
// still running are skipped.
func NewScheduler(ctx context.Context, mon Runner, st store.Store, universe []model.Symbol, log *zap.Logger) *Scheduler {
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		Cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		Monitor:  mon,
		Store:    st,
		Universe: universe,
		Log:      log,
		Ctx:      ctx,
	}
}

// Register schedules the monitoring cycle every interval.
func (s *Scheduler) Register(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	if _, err := s.Cron.AddFunc("@every "+interval.String(), s.cycleTask); err != nil {
		return fmt.Errorf("register monitoring cycle: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the scheduler and waits for running cycles to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.Log.Info("scheduler stopped")
}

// RunNow executes a monitoring cycle immediately (startup run / manual trigger).
func (s *Scheduler) RunNow() (model.CycleResult, error) {
	if !s.track() {
		return model.CycleResult{}, ErrStopped
	}
	defer s.wg.Done()
	return s.cycle()
}

// RunInBackground starts a cycle without waiting for it. Stop waits for it.
func (s *Scheduler) RunInBackground() {
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		_, _ = s.cycle()
	}()
}

// track registers a non-cron cycle unless Stop has begun.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) cycleTask() {
	_, _ = s.cycle()
}

func (s *Scheduler) cycle() (model.CycleResult, error) {
	res, err := s.Monitor.TryRun(s.Ctx, s.Universe)
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		s.Log.Warn("previous cycle still running, skipping tick")
	case errors.Is(err, monitor.ErrCycleAbandoned):
		s.Log.Warn("monitoring cycle abandoned on shutdown")
	case err != nil:
		s.Log.Error("monitoring cycle failed", zap.Error(err))
	}
	return res, err
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	// Group chats address commands as /run@BotName.
	name, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(command)), "@")
	switch name {
	case "/run":
		res, err := s.RunNow()
		if err != nil {
			return fmt.Sprintf("❌ cycle failed: %v", err)
		}
		return fmt.Sprintf("✅ cycle done: %d above high, %d new alerts, %d skipped", res.Crossed, res.NewAlerts, res.Skipped)
	case "/crossed", "/status":
		set, err := s.Store.Load(ctx)
		if err != nil {
			return fmt.Sprintf("❌ read state: %v", err)
		}
		return notifier.FormatCrossedList(set)
	default:
		return "Available commands:\n• /crossed\n• /run"
	}
}

// cronLogger routes cron's logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
