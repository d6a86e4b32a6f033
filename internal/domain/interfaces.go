package domain

import (
	"context"
	"time"
)

// QuoteProvider defines the interface for fetching equity prices from a data vendor.
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (float64, error)
	GetCandles(ctx context.Context, ticker, interval string, limit int) ([]Candle, error)
}

// PriceSource returns the latest known price for a ticker.
type PriceSource interface {
	CurrentPrice(ticker string) (float64, bool)
}

// MarketData is the read-only market view strategies and the simulation loop consume.
// HistoricalSeries may return fewer bars than requested, oldest first.
type MarketData interface {
	PriceSource
	HistoricalSeries(ticker string, window int) []Bar
	IsMarketOpen() bool
	MarketDirection(ticker string) MarketDirection
	ATR(ticker string) float64
}

// ExitOracle decides whether a strategy wants out of a position.
type ExitOracle interface {
	ShouldExitPosition(ticker, strategy string, side Action, entryPrice float64, entryTime time.Time, currentPrice float64) bool
}

// SectorResolver maps tickers to sectors for correlated-position limits.
type SectorResolver interface {
	Sector(ticker string) (string, bool)
}

// TradeSink receives completed trades. Sinks never feed back into the ledger.
type TradeSink interface {
	Publish(ctx context.Context, trades []*Trade) error
}

// TradeRepository defines storage operations for the trade journal.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, limit int) ([]*Trade, error)

	SaveEquitySnapshot(ctx context.Context, snap *EquitySnapshot) error
	ListEquitySnapshots(ctx context.Context, limit int) ([]*EquitySnapshot, error)
}
