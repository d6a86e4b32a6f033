package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrSimulationRunning    = errors.New("simulation already running")
	ErrSimulationNotRunning = errors.New("simulation not running")
)

// SimulationStatus is the point-in-time view served to the CLI and the API.
type SimulationStatus struct {
	Running       bool                    `json:"running"`
	MarketOpen    bool                    `json:"market_open"`
	CurrentTime   time.Time               `json:"current_time"`
	Portfolio     domain.PortfolioSummary `json:"portfolio"`
	Risk          domain.RiskMetrics      `json:"risk"`
	DailyTrades   map[string]int          `json:"daily_trades"`
	OpenPositions int                     `json:"open_positions"`
}

// Simulation drives the trading loop: mark positions to market, close what must close,
// then scan every strategy for new entries within its daily quota.
type Simulation struct {
	ledger   *PortfolioLedger
	registry *StrategyRegistry
	market   domain.MarketData
	sink     domain.TradeSink
	repo     domain.TradeRepository
	tickers  []string
	cfg      *config.Config
	logger   *zap.Logger

	mu          sync.Mutex
	running     bool
	stopChan    chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
	dailyTrades map[string]int
	quotaDate   string

	timeNow func() time.Time // For testing
}

// NewSimulation wires the loop. sink and repo may be nil.
func NewSimulation(
	cfg *config.Config,
	ledger *PortfolioLedger,
	registry *StrategyRegistry,
	market domain.MarketData,
	sink domain.TradeSink,
	repo domain.TradeRepository,
	logger *zap.Logger,
) *Simulation {
	s := &Simulation{
		ledger:      ledger,
		registry:    registry,
		market:      market,
		sink:        sink,
		repo:        repo,
		tickers:     append([]string(nil), cfg.Market.Tickers...),
		cfg:         cfg,
		logger:      logger,
		dailyTrades: make(map[string]int),
		timeNow:     time.Now,
	}
	s.quotaDate = dateKey(s.timeNow())
	return s
}

// Start launches the loop in the background. The loop outlives the caller's request.
func (s *Simulation) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSimulationRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stopChan, s.done)

	s.logger.Info("Day trading simulation started",
		zap.Int("tickers", len(s.tickers)), zap.Strings("strategies", s.registry.Names()))
	return nil
}

// Stop signals the loop and waits for the current iteration to finish.
func (s *Simulation) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSimulationNotRunning
	}
	s.running = false
	s.cancel()
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Day trading simulation stopped")
	return nil
}

func (s *Simulation) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulation) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Info("Trading loop started")

	for {
		wait := s.cfg.Simulation.ClosedMarketInterval
		if s.Step(ctx) {
			wait = s.cfg.Simulation.LoopInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Step runs one iteration and reports whether the market was open.
func (s *Simulation) Step(ctx context.Context) (open bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Error in trading loop", zap.Any("panic", rec))
		}
	}()

	if !s.market.IsMarketOpen() {
		return false
	}

	s.updatePositions(ctx)
	s.scan(ctx)
	s.snapshot(ctx)
	return true
}

func (s *Simulation) updatePositions(ctx context.Context) {
	closed := s.ledger.UpdatePositions(s.market, s.registry)
	if len(closed) == 0 {
		return
	}
	s.publish(ctx, closed)
	s.logger.Info("Updated positions", zap.Int("closed", len(closed)))
}

// publish hands trades to the sink. Sink failures are logged only; the ledger is already booked.
func (s *Simulation) publish(ctx context.Context, trades []*domain.Trade) {
	if s.sink == nil || len(trades) == 0 {
		return
	}
	if err := s.sink.Publish(ctx, trades); err != nil {
		s.logger.Error("Failed to publish trades", zap.Int("count", len(trades)), zap.Error(err))
	}
}

func (s *Simulation) snapshot(ctx context.Context) {
	if s.repo == nil {
		return
	}
	snap := s.ledger.Snapshot()
	if err := s.repo.SaveEquitySnapshot(ctx, &snap); err != nil {
		s.logger.Warn("Failed to save equity snapshot", zap.Error(err))
	}
}

// resetQuotaLocked clears the per-strategy counters on the first scan of a new day.
func (s *Simulation) resetQuotaLocked(now time.Time) {
	today := dateKey(now)
	if today == s.quotaDate {
		return
	}
	s.dailyTrades = make(map[string]int)
	s.quotaDate = today
	s.logger.Info("Daily tracking reset", zap.String("date", today))
}

func (s *Simulation) scan(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetQuotaLocked(s.timeNow())
	perDay := s.cfg.Strategies.PerDay

	for _, strategy := range s.registry.Strategies() {
		if ctx.Err() != nil {
			return
		}
		name := strategy.Name()
		if s.dailyTrades[name] >= perDay {
			continue
		}

		for _, sig := range s.findOpportunities(strategy) {
			if !s.canTradeLocked(name) {
				break
			}
			if s.executeTrade(sig) {
				s.dailyTrades[name]++
				s.logger.Info("Executed trade",
					zap.String("strategy", name),
					zap.String("ticker", sig.Ticker),
					zap.String("quota", fmt.Sprintf("%d/%d", s.dailyTrades[name], perDay)))
				break
			}
		}
	}
}

// findOpportunities returns the strategy's high-confidence signals across all tickers, best first.
func (s *Simulation) findOpportunities(strategy Strategy) []*domain.Signal {
	var out []*domain.Signal
	for _, ticker := range s.tickers {
		sig, err := s.registry.Signal(strategy, ticker)
		if err != nil {
			s.logger.Error("Error generating signal",
				zap.String("ticker", ticker), zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		if sig != nil && sig.Confidence > s.cfg.Strategies.OpportunityConfidence {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func (s *Simulation) canTradeLocked(strategy string) bool {
	if s.dailyTrades[strategy] >= s.cfg.Strategies.PerDay {
		return false
	}
	if !s.ledger.GetRiskMetrics().CanTrade {
		return false
	}
	return s.ledger.Capital() >= s.cfg.Portfolio.MinCapital
}

// RiskPerTrade is the dollar risk budget for a new entry: a fraction of the position cap,
// capped at 100 shares worth of ATR when the ATR is known.
func (s *Simulation) RiskPerTrade(capital, atr float64) float64 {
	p := s.cfg.Portfolio
	risk := capital * p.MaxPositionSize * p.StopLossPercentage * p.RiskScale
	if atr > 0 {
		risk = math.Min(risk, atr*100)
	}
	return risk
}

func setupQuality(confidence float64) int {
	q := int(confidence * 5)
	if q < 1 {
		return 1
	}
	if q > 5 {
		return 5
	}
	return q
}

func (s *Simulation) executeTrade(sig *domain.Signal) bool {
	atr := s.market.ATR(sig.Ticker)
	req := OpenRequest{
		Ticker:          sig.Ticker,
		Strategy:        sig.Strategy,
		StrategyVersion: s.registry.StrategyVersion(sig.Strategy),
		Action:          sig.Action,
		EntryPrice:      sig.EntryPrice,
		StopLoss:        sig.StopLoss,
		TargetPrice:     sig.TargetPrice,
		RiskAmount:      s.RiskPerTrade(s.ledger.Capital(), atr),
		SetupQuality:    setupQuality(sig.Confidence),
		Notes:           fmt.Sprintf("Confidence: %.2f, %s", sig.Confidence, sig.Reason),
		EntrySignal:     sig.Reason,
		ATR:             atr,
		MarketDirection: s.market.MarketDirection(sig.Ticker),
	}

	orderID, err := s.ledger.OpenPosition(req)
	if err != nil {
		s.logger.Warn("Failed to open position",
			zap.String("ticker", sig.Ticker), zap.String("strategy", sig.Strategy), zap.Error(err))
		return false
	}

	s.logger.Info("Opened position from signal",
		zap.String("order_id", orderID),
		zap.String("action", string(sig.Action)),
		zap.String("ticker", sig.Ticker),
		zap.Float64("confidence", sig.Confidence))
	return true
}

// ForceCloseAll closes every open position at market and publishes the trades.
func (s *Simulation) ForceCloseAll(ctx context.Context) []*domain.Trade {
	closed := s.ledger.ForceCloseAll(s.market, domain.ExitForceClose)
	s.publish(ctx, closed)
	if len(closed) > 0 {
		s.logger.Info("Force closed positions", zap.Int("count", len(closed)))
	}
	return closed
}

func (s *Simulation) Status() SimulationStatus {
	s.mu.Lock()
	running := s.running
	daily := make(map[string]int, len(s.registry.Strategies()))
	for _, name := range s.registry.Names() {
		daily[name] = 0
	}
	if s.quotaDate == dateKey(s.timeNow()) {
		for name, n := range s.dailyTrades {
			daily[name] = n
		}
	}
	s.mu.Unlock()

	summary := s.ledger.GetPortfolioSummary()
	return SimulationStatus{
		Running:       running,
		MarketOpen:    s.market.IsMarketOpen(),
		CurrentTime:   s.timeNow(),
		Portfolio:     summary,
		Risk:          s.ledger.GetRiskMetrics(),
		DailyTrades:   daily,
		OpenPositions: summary.TotalPositions,
	}
}

func (s *Simulation) Ledger() *PortfolioLedger {
	return s.ledger
}
