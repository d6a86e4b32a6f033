package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

// scalpingMinBars covers SMA10 and the five-bar price change.
const scalpingMinBars = 10

// ScalpingStrategy takes quick trades on short bursts aligned with the fast moving averages.
type ScalpingStrategy struct {
	baseStrategy
}

func NewScalpingStrategy(data domain.MarketData, cfg config.Strategies) *ScalpingStrategy {
	return &ScalpingStrategy{baseStrategy{
		name: "Scalping",
		data: data,
		cfg:  cfg,
		exit: exitRule{
			maxHold:    30 * time.Minute,
			takeProfit: 0.01,
			maxLoss:    0.005,
		},
		timeNow: time.Now,
	}}
}

func (s *ScalpingStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	minBars := s.cfg.ScalpingLookback
	if minBars < scalpingMinBars {
		minBars = scalpingMinBars
	}
	price, bars, ok := s.inputs(ticker, s.cfg.HistoryBars, minBars)
	if !ok {
		return nil, nil
	}

	c := closes(bars)
	n := len(c)
	sma5 := tailMean(c, 5)
	sma10 := tailMean(c, 10)
	prev1, prev5 := c[n-2], c[n-6]
	if prev1 <= 0 || prev5 <= 0 {
		return nil, fmt.Errorf("scalping: non-positive close for %s", ticker)
	}
	change1 := (price - prev1) / prev1
	change5 := (price - prev5) / prev5

	switch {
	case change1 > 0.002 && change5 > 0.005 && price > sma5 && sma5 > sma10:
		return s.signal(ticker, domain.ActionBuy, price,
			price*0.995, price*1.01, math.Min(0.8, change1*100+change5*50),
			fmt.Sprintf("Quick upward momentum: %.2f%% in 1 bar", change1*100))

	case change1 < -0.002 && change5 < -0.005 && price < sma5 && sma5 < sma10:
		return s.signal(ticker, domain.ActionSell, price,
			price*1.005, price*0.99, math.Min(0.8, math.Abs(change1)*100+math.Abs(change5)*50),
			fmt.Sprintf("Quick downward momentum: %.2f%% in 1 bar", change1*100))
	}
	return nil, nil
}
