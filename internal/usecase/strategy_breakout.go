package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

// swingWindow is the rolling window used to find recent highs and lows.
const swingWindow = 5

// BreakoutStrategy trades volume-confirmed breaks of recent resistance or support.
type BreakoutStrategy struct {
	baseStrategy
}

func NewBreakoutStrategy(data domain.MarketData, cfg config.Strategies) *BreakoutStrategy {
	return &BreakoutStrategy{baseStrategy{
		name: "Breakout",
		data: data,
		cfg:  cfg,
		exit: exitRule{
			maxHold:    4 * time.Hour,
			takeProfit: 0.08,
			maxLoss:    cfg.StopLossPercentage,
		},
		timeNow: time.Now,
	}}
}

// levels returns the highest rolling high and lowest rolling low over the last lookback windows.
func levels(bars []domain.Bar, lookback int) (resistance, support float64, ok bool) {
	n := len(bars)
	if n < swingWindow {
		return 0, 0, false
	}
	first := n - lookback
	if first < swingWindow-1 {
		first = swingWindow - 1
	}

	resistance, support = math.Inf(-1), math.Inf(1)
	for i := first - (swingWindow - 1); i < n; i++ {
		resistance = math.Max(resistance, bars[i].High)
		support = math.Min(support, bars[i].Low)
	}
	return resistance, support, true
}

func (s *BreakoutStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	lookback := s.cfg.BreakoutLookback
	price, bars, ok := s.inputs(ticker, s.cfg.HistoryBars, lookback)
	if !ok {
		return nil, nil
	}

	resistance, support, ok := levels(bars, lookback)
	if !ok {
		return nil, nil
	}
	vr := volumeRatio(bars, lookback)

	switch {
	case price > resistance*1.001 && vr > 1.3:
		return s.signal(ticker, domain.ActionBuy, price,
			resistance*0.998, price+(price-resistance)*2, math.Min(0.9, vr/2+0.4),
			fmt.Sprintf("Breakout above resistance %.2f with %.1fx volume", resistance, vr))

	case price < support*0.999 && vr > 1.3:
		return s.signal(ticker, domain.ActionSell, price,
			support*1.002, price-(support-price)*2, math.Min(0.9, vr/2+0.4),
			fmt.Sprintf("Breakdown below support %.2f with %.1fx volume", support, vr))
	}
	return nil, nil
}
