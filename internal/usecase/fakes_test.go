package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/day_trade_sim/internal/domain"
)

// fakePrices is a settable PriceSource.
type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakePrices(kv map[string]float64) *fakePrices {
	p := &fakePrices{prices: make(map[string]float64)}
	for k, v := range kv {
		p.prices[k] = v
	}
	return p
}

func (p *fakePrices) Set(ticker string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[ticker] = price
}

func (p *fakePrices) CurrentPrice(ticker string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.prices[ticker]
	return v, ok
}

// oracleFunc adapts a function to domain.ExitOracle.
type oracleFunc func(ticker, strategy string) bool

func (f oracleFunc) ShouldExitPosition(ticker, strategy string, _ domain.Action, _ float64, _ time.Time, _ float64) bool {
	return f(ticker, strategy)
}

var neverExit = oracleFunc(func(string, string) bool { return false })

// fakeMarket is an in-memory domain.MarketData.
type fakeMarket struct {
	*fakePrices
	bars      map[string][]domain.Bar
	open      bool
	direction domain.MarketDirection
	atr       float64
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		fakePrices: newFakePrices(nil),
		bars:       make(map[string][]domain.Bar),
		open:       true,
		direction:  domain.DirectionNeutral,
	}
}

func (m *fakeMarket) HistoricalSeries(ticker string, window int) []domain.Bar {
	bars := m.bars[ticker]
	if window > 0 && len(bars) > window {
		bars = bars[len(bars)-window:]
	}
	return append([]domain.Bar(nil), bars...)
}

func (m *fakeMarket) IsMarketOpen() bool                            { return m.open }
func (m *fakeMarket) MarketDirection(string) domain.MarketDirection { return m.direction }
func (m *fakeMarket) ATR(string) float64                            { return m.atr }

// flatBars builds n bars at price with unit volume.
func flatBars(n int, price, volume float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Candle: domain.Candle{Time: int64(i), Open: price, High: price, Low: price, Close: price, Volume: volume},
			RSI:    50,
		}
	}
	return bars
}

// recordingSink collects published trades.
type recordingSink struct {
	mu     sync.Mutex
	trades []*domain.Trade
	err    error
}

func (s *recordingSink) Publish(_ context.Context, trades []*domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trades...)
	return s.err
}

func (s *recordingSink) Trades() []*domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Trade(nil), s.trades...)
}

// memoryRepo is an in-memory domain.TradeRepository.
type memoryRepo struct {
	mu        sync.Mutex
	trades    []*domain.Trade
	snapshots []*domain.EquitySnapshot
}

func (r *memoryRepo) SaveTrade(_ context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
	return nil
}

func (r *memoryRepo) ListTrades(_ context.Context, limit int) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Trade(nil), r.trades...), nil
}

func (r *memoryRepo) SaveEquitySnapshot(_ context.Context, s *domain.EquitySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memoryRepo) ListEquitySnapshots(_ context.Context, limit int) ([]*domain.EquitySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.EquitySnapshot(nil), r.snapshots...), nil
}

func (r *memoryRepo) SnapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}
