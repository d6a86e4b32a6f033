package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
)

const strategyVersion = "1.0"

// Strategy turns market data into entry signals and decides when its positions should be exited.
type Strategy interface {
	Name() string
	Version() string
	// GenerateSignal returns nil when there is no setup or not enough data.
	GenerateSignal(ticker string) (*domain.Signal, error)
	ShouldExit(ticker string, side domain.Action, entryPrice float64, entryTime time.Time, currentPrice float64) bool
}

// exitRule is the time/profit/loss envelope every strategy exits on.
type exitRule struct {
	maxHold    time.Duration
	takeProfit float64
	maxLoss    float64
}

type baseStrategy struct {
	name    string
	data    domain.MarketData
	cfg     config.Strategies
	exit    exitRule
	timeNow func() time.Time
}

func (b *baseStrategy) Name() string    { return b.name }
func (b *baseStrategy) Version() string { return strategyVersion }

func (b *baseStrategy) ShouldExit(ticker string, side domain.Action, entryPrice float64, entryTime time.Time, currentPrice float64) bool {
	if b.timeNow().Sub(entryTime) > b.exit.maxHold {
		return true
	}
	if entryPrice <= 0 {
		return false
	}

	profit := (currentPrice - entryPrice) / entryPrice
	if side == domain.ActionSell {
		profit = -profit
	}
	return profit > b.exit.takeProfit || profit < -b.exit.maxLoss
}

// inputs loads the price and series a strategy works on. ok is false when data is missing or short.
func (b *baseStrategy) inputs(ticker string, window, minBars int) (float64, []domain.Bar, bool) {
	bars := b.data.HistoricalSeries(ticker, window)
	if len(bars) < minBars {
		return 0, nil, false
	}
	price, ok := b.data.CurrentPrice(ticker)
	if !ok || price <= 0 {
		return 0, nil, false
	}
	return price, bars, true
}

func (b *baseStrategy) signal(ticker string, action domain.Action, price, stop, target, confidence float64, reason string) (*domain.Signal, error) {
	for _, v := range []float64{price, stop, target, confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: non-finite signal values for %s", b.name, ticker)
		}
	}
	return &domain.Signal{
		Ticker:      ticker,
		Action:      action,
		EntryPrice:  price,
		StopLoss:    stop,
		TargetPrice: target,
		Confidence:  clampConfidence(confidence),
		Strategy:    b.name,
		Reason:      reason,
	}, nil
}

func clampConfidence(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// mean of the last n values, or of all of them when fewer exist.
func tailMean(values []float64, n int) float64 {
	if n > len(values) {
		n = len(values)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// volumeRatio compares the last bar's volume with the mean volume of the last window bars.
func volumeRatio(bars []domain.Bar, window int) float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	avg := tailMean(vols, window)
	if avg <= 0 {
		return 1
	}
	return vols[len(vols)-1] / avg
}
