package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

type stubStrategy struct {
	name       string
	confidence float64
	err        error
	panics     bool
	exit       bool
	calls      int
}

func (s *stubStrategy) Name() string    { return s.name }
func (s *stubStrategy) Version() string { return "test" }

func (s *stubStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	s.calls++
	if s.panics {
		panic("division by zero")
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.confidence == 0 {
		return nil, nil
	}
	return &domain.Signal{Ticker: ticker, Action: domain.ActionBuy, EntryPrice: 10, StopLoss: 9, TargetPrice: 12, Confidence: s.confidence, Strategy: s.name}, nil
}

func (s *stubStrategy) ShouldExit(string, domain.Action, float64, time.Time, float64) bool {
	return s.exit
}

func TestStrategyRegistry_GetAllSignals(t *testing.T) {
	low := &stubStrategy{name: "Low", confidence: 0.6}
	high := &stubStrategy{name: "High", confidence: 0.75}
	failing := &stubStrategy{name: "Failing", err: errors.New("no data")}
	panicking := &stubStrategy{name: "Panicking", panics: true}
	quiet := &stubStrategy{name: "Quiet"}
	mid := &stubStrategy{name: "Mid", confidence: 0.65}

	r := NewStrategyRegistryWith(0.6, zap.NewNop(), low, high, failing, panicking, quiet, mid)
	signals := r.GetAllSignals("AAPL")

	require.Len(t, signals, 2, "0.6 is not above the floor")
	assert.Equal(t, "High", signals[0].Strategy)
	assert.Equal(t, "Mid", signals[1].Strategy)
	assert.Equal(t, 1, mid.calls, "strategies after a failure still run")
}

func TestStrategyRegistry_GetBestSignal(t *testing.T) {
	first := &stubStrategy{name: "First", confidence: 0.8}
	second := &stubStrategy{name: "Second", confidence: 0.8}
	lower := &stubStrategy{name: "Lower", confidence: 0.7}

	r := NewStrategyRegistryWith(0.6, zap.NewNop(), lower, first, second)
	best := r.GetBestSignal("AAPL")
	require.NotNil(t, best)
	assert.Equal(t, "First", best.Strategy, "ties go to registration order")

	empty := NewStrategyRegistryWith(0.6, zap.NewNop(), &stubStrategy{name: "None"})
	assert.Nil(t, empty.GetBestSignal("AAPL"))
}

func TestStrategyRegistry_ShouldExitPosition(t *testing.T) {
	r := NewStrategyRegistryWith(0.6, zap.NewNop(),
		&stubStrategy{name: "Exits", exit: true},
		&stubStrategy{name: "Holds"},
	)
	now := time.Now()

	assert.True(t, r.ShouldExitPosition("AAPL", "Exits", domain.ActionBuy, 10, now, 11))
	assert.False(t, r.ShouldExitPosition("AAPL", "Holds", domain.ActionBuy, 10, now, 11))
	assert.False(t, r.ShouldExitPosition("AAPL", "Unknown", domain.ActionBuy, 10, now, 11))
}

func TestStrategyRegistry_BuiltIns(t *testing.T) {
	r := NewStrategyRegistry(newFakeMarket(), strategyConfig(), zap.NewNop())
	assert.Equal(t, []string{"Momentum", "Reversal", "Breakout", "Scalping", "Gap"}, r.Names())
	assert.Equal(t, "1.0", r.StrategyVersion("Gap"))
	assert.Empty(t, r.StrategyVersion("Nope"))

	_, ok := r.Get("Breakout")
	assert.True(t, ok)

	// No data anywhere: every strategy declines quietly.
	assert.Empty(t, r.GetAllSignals("AAPL"))
}

func TestStrategyRegistry_IgnoresDuplicateNames(t *testing.T) {
	a := &stubStrategy{name: "Same", confidence: 0.9}
	b := &stubStrategy{name: "Same", confidence: 0.95}

	r := NewStrategyRegistryWith(0.6, zap.NewNop(), a, b)
	assert.Len(t, r.Strategies(), 1)
	assert.Equal(t, 0.9, r.GetBestSignal("X").Confidence)
}
