package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

// ReversalStrategy fades RSI extremes that close outside the Bollinger bands.
type ReversalStrategy struct {
	baseStrategy
}

func NewReversalStrategy(data domain.MarketData, cfg config.Strategies) *ReversalStrategy {
	return &ReversalStrategy{baseStrategy{
		name: "Reversal",
		data: data,
		cfg:  cfg,
		exit: exitRule{
			maxHold:    3 * time.Hour,
			takeProfit: 0.04,
			maxLoss:    cfg.StopLossPercentage * 1.5,
		},
		timeNow: time.Now,
	}}
}

func (s *ReversalStrategy) GenerateSignal(ticker string) (*domain.Signal, error) {
	price, bars, ok := s.inputs(ticker, s.cfg.HistoryBars, s.cfg.ReversalLookback)
	if !ok {
		return nil, nil
	}

	last := bars[len(bars)-1]
	rsi := last.RSI
	oversold, overbought := s.cfg.RSIOversold, s.cfg.RSIOverbought
	stopPct := s.cfg.StopLossPercentage * 1.5

	switch {
	case rsi < oversold && price <= last.BBLower && price < last.BBMiddle:
		confidence := math.Min(0.85, (oversold-rsi)/oversold+0.3)
		return s.signal(ticker, domain.ActionBuy, price,
			price*(1-stopPct), last.BBMiddle, confidence,
			fmt.Sprintf("Oversold reversal: RSI %.1f, price at lower Bollinger Band", rsi))

	case rsi > overbought && price >= last.BBUpper && price > last.BBMiddle:
		confidence := math.Min(0.85, (rsi-overbought)/(100-overbought)+0.3)
		return s.signal(ticker, domain.ActionSell, price,
			price*(1+stopPct), last.BBMiddle, confidence,
			fmt.Sprintf("Overbought reversal: RSI %.1f, price at upper Bollinger Band", rsi))
	}
	return nil, nil
}
