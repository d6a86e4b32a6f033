package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

const minGap = 0.02

// GapStrategy trades continuation of opening gaps larger than 2%.
type GapStrategy struct {
	baseStrategy
}

func NewGapStrategy(data domain.MarketData, cfg config.Strategies) *GapStrategy {
	return &GapStrategy{baseStrategy{
		name: "Gap",
		data: data,
		cfg:  cfg,
		exit: exitRule{
			maxHold:    2 * time.Hour,
			takeProfit: 0.03,
			maxLoss:    0.03,
		},
		timeNow: time.Now,
	}}
}

func (s *GapStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	price, bars, ok := s.inputs(ticker, s.cfg.HistoryBars, 2)
	if !ok {
		return nil, nil
	}

	prevClose := bars[len(bars)-2].Close
	if prevClose <= 0 {
		return nil, fmt.Errorf("gap: non-positive previous close for %s", ticker)
	}
	gap := (price - prevClose) / prevClose

	switch {
	case gap > minGap:
		return s.signal(ticker, domain.ActionBuy, price,
			prevClose, price*1.03, math.Min(0.9, gap*20),
			fmt.Sprintf("Gap up: %.1f%%", gap*100))

	case gap < -minGap:
		return s.signal(ticker, domain.ActionSell, price,
			prevClose, price*0.97, math.Min(0.9, math.Abs(gap)*20),
			fmt.Sprintf("Gap down: %.1f%%", gap*100))
	}
	return nil, nil
}
