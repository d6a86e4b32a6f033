package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

type simFixture struct {
	sim    *Simulation
	market *fakeMarket
	sink   *recordingSink
	repo   *memoryRepo
}

func newSimFixture(t *testing.T, mutate func(*config.Config)) simFixture {
	t.Helper()
	cfg := config.Default()
	cfg.Market.Tickers = []string{"AAPL"}
	cfg.Simulation.LoopInterval = 10 * time.Millisecond
	cfg.Simulation.ClosedMarketInterval = 10 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	market := momentumMarket(105, 60, 1.0, 0.5)
	ledger := NewPortfolioLedger(cfg.Portfolio, nil, zap.NewNop())
	registry := NewStrategyRegistry(market, cfg.StrategySettings(), zap.NewNop())
	sink := &recordingSink{}
	repo := &memoryRepo{}

	return simFixture{
		sim:    NewSimulation(cfg, ledger, registry, market, sink, repo, zap.NewNop()),
		market: market,
		sink:   sink,
		repo:   repo,
	}
}

func TestSimulation_StepOpensAndClosesOnTarget(t *testing.T) {
	f := newSimFixture(t, nil)
	ctx := context.Background()

	require.True(t, f.sim.Step(ctx))

	positions := f.sim.Ledger().OpenPositions()
	require.Len(t, positions, 3)
	strategies := []string{positions[0].Strategy, positions[1].Strategy, positions[2].Strategy}
	assert.Equal(t, []string{"Momentum", "Scalping", "Gap"}, strategies)

	mom := positions[0]
	assert.Equal(t, 4, mom.SetupQuality)
	assert.Equal(t, "Confidence: 0.90, "+mom.EntrySignal, mom.Notes)
	assert.Equal(t, domain.DirectionNeutral, mom.MarketDirection)
	assert.Equal(t, 1, f.repo.SnapshotCount())

	status := f.sim.Status()
	assert.Equal(t, 1, status.DailyTrades["Momentum"])
	assert.Equal(t, 0, status.DailyTrades["Reversal"])
	assert.Equal(t, 3, status.OpenPositions)

	f.market.Set("AAPL", 112)
	f.sim.updatePositions(ctx)

	trades := f.sink.Trades()
	require.Len(t, trades, 3)
	for _, tr := range trades {
		assert.Equal(t, domain.ExitTargetHit, tr.ExitSignal)
		assert.True(t, tr.IsWin())
	}
	assert.Empty(t, f.sim.Ledger().OpenPositions())
}

func TestSimulation_StepSkipsClosedMarket(t *testing.T) {
	f := newSimFixture(t, nil)
	f.market.open = false

	assert.False(t, f.sim.Step(context.Background()))
	assert.Empty(t, f.sim.Ledger().OpenPositions())
	assert.Zero(t, f.repo.SnapshotCount())
}

func TestSimulation_DailyQuota(t *testing.T) {
	f := newSimFixture(t, func(c *config.Config) {
		c.Strategies.PerDay = 1
		c.Portfolio.MaxCorrelatedPositions = 10
	})
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	f.sim.timeNow = func() time.Time { return day }
	f.sim.quotaDate = dateKey(day)

	f.sim.Step(ctx)
	require.Len(t, f.sim.Ledger().OpenPositions(), 3)

	f.sim.Step(ctx)
	assert.Len(t, f.sim.Ledger().OpenPositions(), 3, "quota of one per strategy per day")

	day = day.Add(24 * time.Hour)
	f.sim.Step(ctx)
	assert.Equal(t, 1, f.sim.Status().DailyTrades["Momentum"])
}

func TestSimulation_MinCapitalBlocksEntries(t *testing.T) {
	f := newSimFixture(t, func(c *config.Config) { c.Portfolio.MinCapital = 1e9 })

	f.sim.Step(context.Background())
	assert.Empty(t, f.sim.Ledger().OpenPositions())
}

func TestSimulation_SinkErrorDoesNotRollBack(t *testing.T) {
	f := newSimFixture(t, nil)
	f.sink.err = errors.New("broker down")
	ctx := context.Background()

	f.sim.Step(ctx)
	f.market.Set("AAPL", 112)
	f.sim.updatePositions(ctx)

	assert.Len(t, f.sim.Ledger().CompletedTrades(), 3)
	assert.Empty(t, f.sim.Ledger().OpenPositions())
}

func TestSimulation_ForceCloseAll(t *testing.T) {
	f := newSimFixture(t, nil)
	ctx := context.Background()

	f.sim.Step(ctx)
	closed := f.sim.ForceCloseAll(ctx)
	require.Len(t, closed, 3)
	for _, tr := range closed {
		assert.Equal(t, domain.ExitForceClose, tr.ExitSignal)
	}
	assert.Len(t, f.sink.Trades(), 3)
}

func TestSimulation_RiskPerTrade(t *testing.T) {
	f := newSimFixture(t, nil)

	assert.InDelta(t, 20.0, f.sim.RiskPerTrade(100000, 0), 1e-9)
	assert.InDelta(t, 5.0, f.sim.RiskPerTrade(100000, 0.05), 1e-9, "ATR cap")
	assert.InDelta(t, 20.0, f.sim.RiskPerTrade(100000, 3), 1e-9)
}

func TestSetupQuality(t *testing.T) {
	assert.Equal(t, 1, setupQuality(0.1))
	assert.Equal(t, 3, setupQuality(0.7))
	assert.Equal(t, 4, setupQuality(0.9))
	assert.Equal(t, 5, setupQuality(1.0))
}

func TestSimulation_StartStop(t *testing.T) {
	f := newSimFixture(t, nil)

	require.NoError(t, f.sim.Start())
	assert.ErrorIs(t, f.sim.Start(), ErrSimulationRunning)
	assert.True(t, f.sim.IsRunning())

	require.Eventually(t, func() bool {
		return f.repo.SnapshotCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.sim.Stop())
	assert.False(t, f.sim.IsRunning())
	assert.ErrorIs(t, f.sim.Stop(), ErrSimulationNotRunning)
}
