package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const directionThreshold = 0.02

// Feed caches the latest quote and enriched history per ticker and serves them as domain.MarketData.
type Feed struct {
	provider domain.QuoteProvider
	cfg      config.Market
	hours    TradingHours
	logger   *zap.Logger

	mu     sync.RWMutex
	prices map[string]float64
	bars   map[string][]domain.Bar

	timeNow func() time.Time // For testing
}

func NewFeed(provider domain.QuoteProvider, cfg config.Market, logger *zap.Logger) (*Feed, error) {
	hours, err := NewTradingHours(cfg)
	if err != nil {
		return nil, fmt.Errorf("trading hours: %w", err)
	}
	return &Feed{
		provider: provider,
		cfg:      cfg,
		hours:    hours,
		logger:   logger,
		prices:   make(map[string]float64),
		bars:     make(map[string][]domain.Bar),
		timeNow:  time.Now,
	}, nil
}

func (f *Feed) Tickers() []string {
	return append([]string(nil), f.cfg.Tickers...)
}

// Refresh pulls a quote and candle history for every ticker. A failing ticker keeps its previous
// cache entry; the combined error names every failure.
func (f *Feed) Refresh(ctx context.Context) error {
	var errs error
	for _, ticker := range f.cfg.Tickers {
		if err := f.refreshTicker(ctx, ticker); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ticker, err))
		}
	}
	return errs
}

func (f *Feed) refreshTicker(ctx context.Context, ticker string) error {
	candles, err := f.provider.GetCandles(ctx, ticker, f.cfg.CandleInterval, f.cfg.HistoryBars)
	if err != nil {
		return fmt.Errorf("candles: %w", err)
	}
	price, err := f.provider.GetQuote(ctx, ticker)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	bars := Enrich(candles)

	f.mu.Lock()
	defer f.mu.Unlock()
	if price > 0 {
		f.prices[ticker] = price
	}
	if len(bars) > 0 {
		f.bars[ticker] = bars
	}
	return nil
}

// Run refreshes immediately and then on every refresh interval until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	f.refreshAndLog(ctx)

	ticker := time.NewTicker(f.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.refreshAndLog(ctx)
		case <-ctx.Done():
			f.logger.Info("Market feed stopped")
			return
		}
	}
}

func (f *Feed) refreshAndLog(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn("Market feed refresh incomplete", zap.Error(err))
	}
}

// SetPrice overrides the cached quote for a ticker.
func (f *Feed) SetPrice(ticker string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = price
}

func (f *Feed) CurrentPrice(ticker string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[ticker]
	return p, ok && p > 0
}

// HistoricalSeries returns up to window bars, oldest first. window <= 0 returns everything cached.
func (f *Feed) HistoricalSeries(ticker string, window int) []domain.Bar {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bars := f.bars[ticker]
	if window > 0 && len(bars) > window {
		bars = bars[len(bars)-window:]
	}
	return append([]domain.Bar(nil), bars...)
}

func (f *Feed) IsMarketOpen() bool {
	return f.hours.IsOpenAt(f.timeNow())
}

// MarketDirection classifies the last close-to-close change against a 2% band.
func (f *Feed) MarketDirection(ticker string) domain.MarketDirection {
	bars := f.HistoricalSeries(ticker, 2)
	if len(bars) < 2 || bars[0].Close <= 0 {
		return domain.DirectionNeutral
	}

	change := (bars[1].Close - bars[0].Close) / bars[0].Close
	switch {
	case change > directionThreshold:
		return domain.DirectionBullish
	case change < -directionThreshold:
		return domain.DirectionBearish
	}
	return domain.DirectionNeutral
}

// ATR is the latest average true range, 0 when unknown.
func (f *Feed) ATR(ticker string) float64 {
	bars := f.HistoricalSeries(ticker, 1)
	if len(bars) == 0 {
		return 0
	}
	return bars[0].ATR
}
