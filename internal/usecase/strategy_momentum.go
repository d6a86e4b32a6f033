package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

// MomentumStrategy follows strong price moves confirmed by volume, RSI and MACD.
type MomentumStrategy struct {
	baseStrategy
}

func NewMomentumStrategy(data domain.MarketData, cfg config.Strategies) *MomentumStrategy {
	return &MomentumStrategy{baseStrategy{
		name: "Momentum",
		data: data,
		cfg:  cfg,
		exit: exitRule{
			maxHold:    2 * time.Hour,
			takeProfit: 0.06,
			maxLoss:    cfg.StopLossPercentage,
		},
		timeNow: time.Now,
	}}
}

func (s *MomentumStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	lookback := s.cfg.MomentumLookback
	price, bars, ok := s.inputs(ticker, s.cfg.HistoryBars, lookback)
	if !ok {
		return nil, nil
	}

	c := closes(bars)
	base := c[len(c)-lookback]
	if base <= 0 {
		return nil, fmt.Errorf("momentum: non-positive close for %s", ticker)
	}
	priceChange := (c[len(c)-1] - base) / base
	vr := volumeRatio(bars, lookback)

	last := bars[len(bars)-1]
	rsi := last.RSI
	histogram := last.MACD - last.MACDSignal

	switch {
	case priceChange > 0.03 && vr > 1.5 && rsi > 50 && rsi < s.cfg.RSIOverbought && histogram > 0:
		confidence := math.Min(0.9, (priceChange*10+vr-1+(rsi-50)/20)/3)
		return s.signal(ticker, domain.ActionBuy, price,
			price*(1-s.cfg.StopLossPercentage), price*1.06, confidence,
			fmt.Sprintf("Strong upward momentum: %.1f%% price change, %.1fx volume", priceChange*100, vr))

	case priceChange < -0.03 && vr > 1.5 && rsi < 50 && rsi > s.cfg.RSIOversold && histogram < 0:
		confidence := math.Min(0.9, (math.Abs(priceChange)*10+vr-1+(50-rsi)/20)/3)
		return s.signal(ticker, domain.ActionSell, price,
			price*(1+s.cfg.StopLossPercentage), price*0.94, confidence,
			fmt.Sprintf("Strong downward momentum: %.1f%% price change, %.1fx volume", priceChange*100, vr))
	}
	return nil, nil
}
