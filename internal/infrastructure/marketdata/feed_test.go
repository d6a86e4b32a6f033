package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

type fakeProvider struct {
	quotes  map[string]float64
	candles map[string][]domain.Candle
	fail    map[string]bool
}

func (p *fakeProvider) GetQuote(_ context.Context, ticker string) (float64, error) {
	if p.fail[ticker] {
		return 0, errors.New("quote unavailable")
	}
	return p.quotes[ticker], nil
}

func (p *fakeProvider) GetCandles(_ context.Context, ticker, _ string, limit int) ([]domain.Candle, error) {
	if p.fail[ticker] {
		return nil, errors.New("chart unavailable")
	}
	c := p.candles[ticker]
	if limit > 0 && len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

func candlesAt(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Time: int64(i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

func testMarketConfig(tickers ...string) config.Market {
	cfg := config.Default().Market
	cfg.Tickers = tickers
	return cfg
}

func TestFeed_Refresh(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]float64{"AAPL": 104.5, "MSFT": 300, "TSLA": 200},
		candles: map[string][]domain.Candle{
			"AAPL": candlesAt(100, 101, 104),
			"MSFT": candlesAt(300, 290),
			"TSLA": candlesAt(200, 201),
		},
		fail: map[string]bool{"BAD": true},
	}
	feed, err := NewFeed(provider, testMarketConfig("AAPL", "MSFT", "TSLA", "BAD"), zap.NewNop())
	require.NoError(t, err)

	err = feed.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")

	price, ok := feed.CurrentPrice("AAPL")
	require.True(t, ok)
	assert.Equal(t, 104.5, price)

	_, ok = feed.CurrentPrice("BAD")
	assert.False(t, ok)

	bars := feed.HistoricalSeries("AAPL", 0)
	require.Len(t, bars, 3)
	assert.Equal(t, 104.0, bars[2].Close)
	assert.Len(t, feed.HistoricalSeries("AAPL", 2), 2)
	assert.Empty(t, feed.HistoricalSeries("BAD", 10))

	assert.Equal(t, domain.DirectionBullish, feed.MarketDirection("AAPL"))
	assert.Equal(t, domain.DirectionBearish, feed.MarketDirection("MSFT"))
	assert.Equal(t, domain.DirectionNeutral, feed.MarketDirection("TSLA"))
	assert.Equal(t, domain.DirectionNeutral, feed.MarketDirection("BAD"))

	assert.Greater(t, feed.ATR("AAPL"), 0.0)
	assert.Zero(t, feed.ATR("BAD"))
}

func TestFeed_FailedRefreshKeepsCache(t *testing.T) {
	provider := &fakeProvider{
		quotes:  map[string]float64{"AAPL": 101},
		candles: map[string][]domain.Candle{"AAPL": candlesAt(100, 101)},
		fail:    map[string]bool{},
	}
	feed, err := NewFeed(provider, testMarketConfig("AAPL"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, feed.Refresh(context.Background()))

	provider.fail["AAPL"] = true
	require.Error(t, feed.Refresh(context.Background()))

	price, ok := feed.CurrentPrice("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 101.0, price)
	assert.Len(t, feed.HistoricalSeries("AAPL", 0), 2)
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	provider := &fakeProvider{
		quotes:  map[string]float64{"AAPL": 101},
		candles: map[string][]domain.Candle{"AAPL": candlesAt(100, 101)},
	}
	cfg := testMarketConfig("AAPL")
	cfg.RefreshInterval = 10 * time.Millisecond
	feed, err := NewFeed(provider, cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := feed.CurrentPrice("AAPL")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestTradingHours(t *testing.T) {
	hours, err := NewTradingHours(config.Default().Market)
	require.NoError(t, err)

	// 2024-03-04 is a Monday, before the switch to daylight time: New York is UTC-5.
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 3, 4, 14, 29, 0, 0, time.UTC), false},
		{"at open", time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC), true},
		{"midday", time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC), true},
		{"at close", time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC), true},
		{"after close", time.Date(2024, 3, 4, 21, 1, 0, 0, time.UTC), false},
		{"saturday", time.Date(2024, 3, 2, 17, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2024, 3, 3, 17, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hours.IsOpenAt(tt.at))
		})
	}
}

func TestTradingHours_BadClock(t *testing.T) {
	cfg := config.Default().Market
	cfg.Open = "9am"
	_, err := NewTradingHours(cfg)
	assert.Error(t, err)
}

func TestFeed_IsMarketOpen(t *testing.T) {
	feed, err := NewFeed(&fakeProvider{}, testMarketConfig(), zap.NewNop())
	require.NoError(t, err)

	feed.timeNow = func() time.Time { return time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC) }
	assert.True(t, feed.IsMarketOpen())

	feed.timeNow = func() time.Time { return time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC) }
	assert.False(t, feed.IsMarketOpen())
}
