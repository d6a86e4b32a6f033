package domain

// MarketDirection classifies the most recent close-to-close move.
type MarketDirection string

const (
	DirectionBullish MarketDirection = "Bullish"
	DirectionBearish MarketDirection = "Bearish"
	DirectionNeutral MarketDirection = "Neutral"
)

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Bar is a candle enriched with the indicators the strategies read.
type Bar struct {
	Candle
	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	ATR        float64 `json:"atr"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
}
