package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/monitor"
	"BreakoutSentinel/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) TryRun(ctx context.Context, universe []model.Symbol) (model.CycleResult, error) {
	args := m.Called(ctx, universe)
	return args.Get(0).(model.CycleResult), args.Error(1)
}

var universe = []model.Symbol{"RELIANCE", "TCS"}

func newTestScheduler(t *testing.T, runner *MockRunner) *Scheduler {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "crossed.json"), zap.NewNop())
	return NewScheduler(context.Background(), runner, st, universe, zap.NewNop())
}

func TestRunNow_PassesUniverse(t *testing.T) {
	runner := &MockRunner{}
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{Crossed: 1}, nil).Once()

	res, err := newTestScheduler(t, runner).RunNow()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Crossed)
	runner.AssertExpectations(t)
}

func TestRegister_TicksOnInterval(t *testing.T) {
	runner := &MockRunner{}
	ticked := make(chan struct{}, 10)
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{}, nil).Run(func(mock.Arguments) {
		ticked <- struct{}{}
	})

	s := newTestScheduler(t, runner)
	require.NoError(t, s.Register(time.Second))
	s.Start()
	defer s.Stop()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled cycle did not run")
	}
}

func TestRegister_RejectsNonPositive(t *testing.T) {
	s := newTestScheduler(t, &MockRunner{})
	assert.Error(t, s.Register(0))
}

func TestRunNow_ReportsErrors(t *testing.T) {
	runner := &MockRunner{}
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{}, monitor.ErrCycleInProgress).Once()
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{}, errors.New("disk full")).Once()

	s := newTestScheduler(t, runner)
	_, err := s.RunNow()
	assert.ErrorIs(t, err, monitor.ErrCycleInProgress)
	_, err = s.RunNow()
	assert.EqualError(t, err, "disk full")
}

func TestHandleCommand(t *testing.T) {
	runner := &MockRunner{}
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{Crossed: 2, NewAlerts: 1}, nil)
	s := newTestScheduler(t, runner)

	assert.Contains(t, s.HandleCommand(context.Background(), "/run"), "2 above high, 1 new alerts")
	assert.Equal(t, "No stocks are above last month's high.", s.HandleCommand(context.Background(), "/crossed"))

	require.NoError(t, s.Store.Replace(context.Background(), model.CrossedSet{
		"TCS": {Symbol: "TCS", LivePrice: decimal.NewFromInt(4100), LastMonthHigh: decimal.NewFromInt(4000)},
	}))
	assert.Contains(t, s.HandleCommand(context.Background(), "/CROSSED"), "TCS: ₹4,100.00 / ₹4,000.00")
	assert.Contains(t, s.HandleCommand(context.Background(), "hello"), "Available commands")
}

func TestStop_WaitsForBackgroundCycle(t *testing.T) {
	runner := &MockRunner{}
	var finished atomic.Bool
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{}, nil).Run(func(mock.Arguments) {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	}).Once()

	s := newTestScheduler(t, runner)
	s.RunInBackground()
	s.Stop()
	assert.True(t, finished.Load())
}

func TestRunNow_AfterStopIsRefused(t *testing.T) {
	runner := &MockRunner{}
	s := newTestScheduler(t, runner)
	s.Stop()

	_, err := s.RunNow()
	assert.ErrorIs(t, err, ErrStopped)
	assert.Contains(t, s.HandleCommand(context.Background(), "/run"), "scheduler stopped")
	s.RunInBackground()
	runner.AssertNotCalled(t, "TryRun", mock.Anything, mock.Anything)
}

func TestHandleCommand_StripsBotName(t *testing.T) {
	runner := &MockRunner{}
	runner.On("TryRun", mock.Anything, universe).Return(model.CycleResult{Crossed: 1}, nil).Once()
	s := newTestScheduler(t, runner)

	assert.Contains(t, s.HandleCommand(context.Background(), "/run@BreakoutSentinelBot"), "1 above high")
	assert.Equal(t, "No stocks are above last month's high.", s.HandleCommand(context.Background(), "/crossed@BreakoutSentinelBot"))
	runner.AssertExpectations(t)
}
