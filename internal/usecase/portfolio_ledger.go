package usecase

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrPositionRejected    = errors.New("position rejected")
	ErrInvalidPositionSize = errors.New("invalid position size")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrPositionNotFound    = errors.New("position not found")
)

// OpenRequest describes a position the caller wants the ledger to open.
type OpenRequest struct {
	Ticker          string
	Strategy        string
	StrategyVersion string
	Action          domain.Action
	EntryPrice      float64
	StopLoss        float64
	TargetPrice     float64
	RiskAmount      float64
	SetupQuality    int
	Notes           string
	EntrySignal     string
	ATR             float64
	MarketDirection domain.MarketDirection
}

// PortfolioLedger owns simulated capital, open positions and the daily risk budget.
// All mutations happen under mu so admission and booking are atomic.
type PortfolioLedger struct {
	cfg     config.Portfolio
	sectors domain.SectorResolver
	logger  *zap.Logger

	mu              sync.Mutex
	initialCapital  decimal.Decimal
	capital         decimal.Decimal
	peakCapital     decimal.Decimal
	positions       map[string]*domain.Position
	order           []string
	completed       []*domain.Trade
	dailyRiskUsed   float64
	lastResetDate   string
	maxDrawdown     float64
	currentDrawdown float64
	totalTrades     int
	winningTrades   int
	losingTrades    int
	totalProfit     float64
	totalLoss       float64

	timeNow func() time.Time // For testing
	newID   func() string
}

// NewPortfolioLedger creates a ledger funded with cfg.InitialCapital. sectors may be nil.
func NewPortfolioLedger(cfg config.Portfolio, sectors domain.SectorResolver, logger *zap.Logger) *PortfolioLedger {
	initial := decimal.NewFromFloat(cfg.InitialCapital)
	l := &PortfolioLedger{
		cfg:            cfg,
		sectors:        sectors,
		logger:         logger,
		initialCapital: initial,
		capital:        initial,
		peakCapital:    initial,
		positions:      make(map[string]*domain.Position),
		timeNow:        time.Now,
		newID:          uuid.NewString,
	}
	l.lastResetDate = dateKey(l.timeNow())
	return l
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// resetDailyRiskLocked zeroes the daily risk budget on the first access of a new calendar day.
func (l *PortfolioLedger) resetDailyRiskLocked(now time.Time) {
	today := dateKey(now)
	if today == l.lastResetDate {
		return
	}
	l.logger.Info("Daily risk reset",
		zap.String("date", today), zap.Float64("previous_risk_used", l.dailyRiskUsed))
	l.dailyRiskUsed = 0
	l.lastResetDate = today
}

// effectiveDailyRiskLocked is the daily risk as it would read after a reset, without mutating state.
func (l *PortfolioLedger) effectiveDailyRiskLocked(now time.Time) float64 {
	if dateKey(now) != l.lastResetDate {
		return 0
	}
	return l.dailyRiskUsed
}

func (l *PortfolioLedger) correlatedCountLocked(ticker string) int {
	if l.sectors != nil {
		if sector, ok := l.sectors.Sector(ticker); ok {
			count := 0
			for _, p := range l.positions {
				if s, ok := l.sectors.Sector(p.Ticker); ok && s == sector {
					count++
				}
			}
			return count
		}
	}
	return len(l.positions)
}

// CanTakePosition runs the admission checks in order and names the first one that fails.
func (l *PortfolioLedger) CanTakePosition(riskAmount float64, ticker string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetDailyRiskLocked(l.timeNow())
	return l.canTakePositionLocked(riskAmount, ticker)
}

func (l *PortfolioLedger) canTakePositionLocked(riskAmount float64, ticker string) (bool, string) {
	if math.IsNaN(riskAmount) || math.IsInf(riskAmount, 0) || riskAmount < 0 {
		return false, fmt.Sprintf("Invalid risk amount: %v", riskAmount)
	}
	capital := l.capital.InexactFloat64()

	dailyLimit := capital * l.cfg.MaxDailyRisk
	if l.dailyRiskUsed+riskAmount > dailyLimit {
		return false, fmt.Sprintf("Daily risk limit exceeded: %.2f + %.2f > %.2f", l.dailyRiskUsed, riskAmount, dailyLimit)
	}

	if len(l.positions) >= l.cfg.MaxTotalPositions {
		return false, fmt.Sprintf("Maximum positions reached: %d", l.cfg.MaxTotalPositions)
	}

	maxPosition := capital * l.cfg.MaxPositionSize
	if notional := riskAmount / l.cfg.StopLossPercentage; notional > maxPosition {
		return false, fmt.Sprintf("Position size too large: %.2f > %.2f", notional, maxPosition)
	}

	if n := l.correlatedCountLocked(ticker); n >= l.cfg.MaxCorrelatedPositions {
		return false, fmt.Sprintf("Too many correlated positions: %d", n)
	}

	return true, "OK"
}

// CalculatePositionSize returns whole shares for riskPerTrade, capped by the maximum position size.
func (l *PortfolioLedger) CalculatePositionSize(entryPrice, stopLoss, riskPerTrade float64) (int, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calculatePositionSizeLocked(entryPrice, stopLoss, riskPerTrade)
}

func (l *PortfolioLedger) calculatePositionSizeLocked(entryPrice, stopLoss, riskPerTrade float64) (int, float64) {
	riskPerShare := math.Abs(entryPrice - stopLoss)
	if riskPerShare <= 0 || !validPrice(entryPrice) || math.IsNaN(riskPerShare) || riskPerTrade <= 0 {
		return 0, 0
	}

	shares := math.Floor(riskPerTrade / riskPerShare)
	maxShares := math.Floor(l.capital.InexactFloat64() * l.cfg.MaxPositionSize / entryPrice)
	shares = math.Min(shares, maxShares)
	if shares <= 0 || math.IsNaN(shares) {
		return 0, 0
	}
	return int(shares), shares * riskPerShare
}

func (l *PortfolioLedger) orderID(ticker, strategy string, now time.Time) string {
	suffix := l.newID()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%s_%s_%s", ticker, strategy, now.Format("20060102_150405"), suffix)
}

// OpenPosition admits, sizes and books a new position and returns its order ID.
func (l *PortfolioLedger) OpenPosition(req OpenRequest) (string, error) {
	if !req.Action.Valid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrPositionRejected, req.Action)
	}
	if !validPrice(req.EntryPrice) {
		return "", fmt.Errorf("%w: entry %v for %s", ErrInvalidPrice, req.EntryPrice, req.Ticker)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.resetDailyRiskLocked(now)

	if ok, reason := l.canTakePositionLocked(req.RiskAmount, req.Ticker); !ok {
		l.logger.Warn("Cannot open position",
			zap.String("ticker", req.Ticker), zap.String("strategy", req.Strategy), zap.String("reason", reason))
		return "", fmt.Errorf("%w: %s", ErrPositionRejected, reason)
	}

	shares, actualRisk := l.calculatePositionSizeLocked(req.EntryPrice, req.StopLoss, req.RiskAmount)
	if shares <= 0 {
		l.logger.Warn("Invalid position size", zap.String("ticker", req.Ticker), zap.Int("shares", shares))
		return "", fmt.Errorf("%w: %s entry %.2f stop %.2f", ErrInvalidPositionSize, req.Ticker, req.EntryPrice, req.StopLoss)
	}

	quality := req.SetupQuality
	if quality < 1 || quality > 5 {
		quality = 3
	}
	version := req.StrategyVersion
	if version == "" {
		version = strategyVersion
	}

	id := l.orderID(req.Ticker, req.Strategy, now)
	pos := &domain.Position{
		OrderID:         id,
		Ticker:          req.Ticker,
		Strategy:        req.Strategy,
		StrategyVersion: version,
		Action:          req.Action,
		EntryPrice:      req.EntryPrice,
		StopLoss:        req.StopLoss,
		TargetPrice:     req.TargetPrice,
		Shares:          shares,
		EntryTime:       now,
		RiskAmount:      actualRisk,
		SetupQuality:    quality,
		Notes:           req.Notes,
		EntrySignal:     req.EntrySignal,
		ATRAtEntry:      req.ATR,
		MarketDirection: req.MarketDirection,
	}
	if pos.MarketDirection == "" {
		pos.MarketDirection = domain.DirectionNeutral
	}

	l.positions[id] = pos
	l.order = append(l.order, id)
	l.dailyRiskUsed += actualRisk

	notional := decimal.NewFromInt(int64(shares)).Mul(decimal.NewFromFloat(req.EntryPrice))
	commission := decimal.NewFromFloat(l.cfg.CommissionPerTrade)
	if req.Action == domain.ActionBuy {
		l.capital = l.capital.Sub(notional).Sub(commission)
	} else {
		l.capital = l.capital.Add(notional).Sub(commission)
	}

	l.logger.Info("Opened position",
		zap.String("order_id", id),
		zap.String("action", string(req.Action)),
		zap.Int("shares", shares),
		zap.String("ticker", req.Ticker),
		zap.Float64("entry_price", req.EntryPrice),
		zap.Float64("risk", actualRisk))

	return id, nil
}

// ClosePosition closes an open position at exitPrice and returns its trade record.
// Closing an unknown or already closed order returns ErrPositionNotFound.
func (l *PortfolioLedger) ClosePosition(orderID string, exitPrice float64, reason string) (*domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[orderID]
	if !ok {
		l.logger.Error("Position not found", zap.String("order_id", orderID))
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, orderID)
	}
	if !validPrice(exitPrice) {
		return nil, fmt.Errorf("%w: exit %v for %s", ErrInvalidPrice, exitPrice, orderID)
	}

	now := l.timeNow()
	shares := float64(pos.Shares)

	var grossPL, returnPct float64
	if pos.Action == domain.ActionBuy {
		grossPL = (exitPrice - pos.EntryPrice) * shares
		returnPct = (exitPrice - pos.EntryPrice) / pos.EntryPrice
	} else {
		grossPL = (pos.EntryPrice - exitPrice) * shares
		returnPct = (pos.EntryPrice - exitPrice) / pos.EntryPrice
	}

	slippage := 0.0
	if pos.TargetPrice > 0 {
		slippage = math.Abs(exitPrice - pos.TargetPrice)
	}
	rMultiple := 0.0
	if pos.RiskAmount > 0 {
		rMultiple = grossPL / pos.RiskAmount
	}

	l.totalTrades++
	winLoss := domain.ResultLoss
	if grossPL > 0 {
		winLoss = domain.ResultWin
		l.winningTrades++
		l.totalProfit += grossPL
	} else {
		l.losingTrades++
		l.totalLoss += math.Abs(grossPL)
	}

	proceeds := decimal.NewFromInt(int64(pos.Shares)).Mul(decimal.NewFromFloat(exitPrice))
	commission := decimal.NewFromFloat(l.cfg.CommissionPerTrade)
	if pos.Action == domain.ActionBuy {
		l.capital = l.capital.Add(proceeds).Sub(commission)
	} else {
		l.capital = l.capital.Sub(proceeds).Sub(commission)
	}
	l.updateDrawdownLocked()

	accountSize := l.capital.InexactFloat64()
	portfolioRiskPct := 0.0
	if accountSize > 0 {
		portfolioRiskPct = pos.RiskAmount / accountSize * 100
	}

	trade := &domain.Trade{
		Date:               pos.EntryTime.Format("2006-01-02"),
		Ticker:             pos.Ticker,
		MarketDirection:    pos.MarketDirection,
		Strategy:           pos.Strategy,
		StrategyVersion:    pos.StrategyVersion,
		EntryTime:          pos.EntryTime,
		ExitTime:           now,
		Action:             pos.Action,
		EntryPriceIntended: pos.EntryPrice,
		EntryFillPrice:     pos.EntryPrice,
		ExitPriceIntended:  pos.TargetPrice,
		ExitFillPrice:      exitPrice,
		StopLossPrice:      pos.StopLoss,
		Shares:             pos.Shares,
		TotalPrice:         pos.EntryPrice * shares,
		AccountSize:        accountSize,
		RiskAmount:         pos.RiskAmount,
		PortfolioRiskPct:   portfolioRiskPct,
		GrossPL:            grossPL,
		ReturnPct:          returnPct * 100,
		RMultiple:          rMultiple,
		DurationMin:        now.Sub(pos.EntryTime).Minutes(),
		WinLoss:            winLoss,
		SetupQuality:       pos.SetupQuality,
		OrderID:            pos.OrderID,
		Commission:         2 * l.cfg.CommissionPerTrade,
		Slippage:           slippage,
		ATRAtEntry:         pos.ATRAtEntry,
		EntrySignal:        pos.EntrySignal,
		ExitSignal:         reason,
		Notes:              pos.Notes,
		ClosingNotes:       "Closed via " + reason,
		CumulativePL:       l.totalProfit - l.totalLoss,
	}

	delete(l.positions, orderID)
	for i, id := range l.order {
		if id == orderID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	stored := *trade
	l.completed = append(l.completed, &stored)

	l.logger.Info("Closed position",
		zap.String("order_id", orderID),
		zap.String("ticker", pos.Ticker),
		zap.Float64("gross_pl", grossPL),
		zap.Float64("return_pct", returnPct*100),
		zap.String("reason", reason))

	return trade, nil
}

func (l *PortfolioLedger) updateDrawdownLocked() {
	if l.capital.GreaterThan(l.peakCapital) {
		l.peakCapital = l.capital
		l.currentDrawdown = 0
		return
	}
	peak := l.peakCapital.InexactFloat64()
	if peak <= 0 {
		return
	}
	l.currentDrawdown = l.peakCapital.Sub(l.capital).InexactFloat64() / peak
	if l.currentDrawdown > l.maxDrawdown {
		l.maxDrawdown = l.currentDrawdown
	}
}

// ExitTrigger returns the mechanical exit reason for a position at price, or "".
// A stop loss takes precedence over the target.
func ExitTrigger(pos domain.Position, price float64) string {
	if pos.Action == domain.ActionBuy {
		switch {
		case price <= pos.StopLoss:
			return domain.ExitStopLoss
		case pos.TargetPrice > 0 && price >= pos.TargetPrice:
			return domain.ExitTargetHit
		}
		return ""
	}

	switch {
	case price >= pos.StopLoss:
		return domain.ExitStopLoss
	case price <= pos.TargetPrice:
		return domain.ExitTargetHit
	}
	return ""
}

// UpdatePositions marks every open position to market and closes those that hit a stop, target
// or strategy exit. A failure on one position does not stop the others.
func (l *PortfolioLedger) UpdatePositions(prices domain.PriceSource, exits domain.ExitOracle) []*domain.Trade {
	var closed []*domain.Trade
	for _, pos := range l.OpenPositions() {
		trade, err := l.evaluatePosition(pos, prices, exits)
		if err != nil {
			if errors.Is(err, ErrPositionNotFound) {
				continue
			}
			l.logger.Error("Error updating position", zap.String("order_id", pos.OrderID), zap.Error(err))
			continue
		}
		if trade != nil {
			closed = append(closed, trade)
		}
	}
	return closed
}

func (l *PortfolioLedger) evaluatePosition(pos domain.Position, prices domain.PriceSource, exits domain.ExitOracle) (trade *domain.Trade, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			trade, err = nil, fmt.Errorf("panic while evaluating %s: %v", pos.OrderID, rec)
		}
	}()

	price, ok := prices.CurrentPrice(pos.Ticker)
	if !ok || !validPrice(price) {
		return nil, nil
	}

	reason := ExitTrigger(pos, price)
	if reason == "" && exits != nil &&
		exits.ShouldExitPosition(pos.Ticker, pos.Strategy, pos.Action, pos.EntryPrice, pos.EntryTime, price) {
		reason = domain.ExitStrategy
	}
	if reason == "" {
		return nil, nil
	}
	return l.ClosePosition(pos.OrderID, price, reason)
}

// ForceCloseAll closes every open position at its current price. Positions without a price stay open.
func (l *PortfolioLedger) ForceCloseAll(prices domain.PriceSource, reason string) []*domain.Trade {
	var closed []*domain.Trade
	for _, pos := range l.OpenPositions() {
		price, ok := prices.CurrentPrice(pos.Ticker)
		if !ok || !validPrice(price) {
			l.logger.Warn("No price to force close", zap.String("order_id", pos.OrderID))
			continue
		}
		trade, err := l.ClosePosition(pos.OrderID, price, reason)
		if err != nil {
			continue
		}
		closed = append(closed, trade)
	}
	return closed
}

// OpenPositions returns copies of the open positions in the order they were opened.
func (l *PortfolioLedger) OpenPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.positions[id])
	}
	return out
}

func (l *PortfolioLedger) CompletedTrades() []*domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Trade, len(l.completed))
	for i, t := range l.completed {
		c := *t
		out[i] = &c
	}
	return out
}

func (l *PortfolioLedger) Capital() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capital.InexactFloat64()
}

func (l *PortfolioLedger) GetPortfolioSummary() domain.PortfolioSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	winRate := float64(l.winningTrades) / math.Max(1, float64(l.totalTrades))
	return domain.PortfolioSummary{
		InitialCapital:  l.initialCapital.InexactFloat64(),
		CurrentCapital:  l.capital.InexactFloat64(),
		PeakCapital:     l.peakCapital.InexactFloat64(),
		TotalPositions:  len(l.positions),
		DailyRiskUsed:   l.effectiveDailyRiskLocked(l.timeNow()),
		MaxDrawdown:     l.maxDrawdown,
		CurrentDrawdown: l.currentDrawdown,
		TotalTrades:     l.totalTrades,
		WinningTrades:   l.winningTrades,
		LosingTrades:    l.losingTrades,
		WinRate:         winRate,
		TotalProfit:     l.totalProfit,
		TotalLoss:       l.totalLoss,
		NetProfit:       l.totalProfit - l.totalLoss,
	}
}

func (l *PortfolioLedger) GetRiskMetrics() domain.RiskMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	capital := l.capital.InexactFloat64()
	used := l.effectiveDailyRiskLocked(l.timeNow())
	limit := capital * l.cfg.MaxDailyRisk

	usedPct := 0.0
	if capital > 0 {
		usedPct = used / capital * 100
	}
	return domain.RiskMetrics{
		DailyRiskUsedPct:   usedPct,
		DailyRiskRemaining: limit - used,
		MaxPositionSize:    capital * l.cfg.MaxPositionSize,
		PositionsRemaining: l.cfg.MaxTotalPositions - len(l.positions),
		CanTrade:           used < limit,
	}
}

// Snapshot captures the ledger state for the equity journal.
func (l *PortfolioLedger) Snapshot() domain.EquitySnapshot {
	s := l.GetPortfolioSummary()
	return domain.EquitySnapshot{
		Capital:         s.CurrentCapital,
		PeakCapital:     s.PeakCapital,
		OpenPositions:   s.TotalPositions,
		DailyRiskUsed:   s.DailyRiskUsed,
		CurrentDrawdown: s.CurrentDrawdown,
		MaxDrawdown:     s.MaxDrawdown,
		NetProfit:       s.NetProfit,
		CreatedAt:       l.timeNow(),
	}
}
