package domain

import "time"

// Exit reasons recorded on trades.
const (
	ExitStopLoss   = "Stop Loss"
	ExitTargetHit  = "Target Hit"
	ExitStrategy   = "Strategy Exit"
	ExitForceClose = "Force Close"
	ExitManual     = "Manual"
)

const (
	ResultWin  = "Win"
	ResultLoss = "Loss"
)

// Position represents an open simulated position held by the ledger.
type Position struct {
	OrderID         string          `json:"order_id"`
	Ticker          string          `json:"ticker"`
	Strategy        string          `json:"strategy"`
	StrategyVersion string          `json:"strategy_version"`
	Action          Action          `json:"action"`
	EntryPrice      float64         `json:"entry_price"`
	StopLoss        float64         `json:"stop_loss"`
	TargetPrice     float64         `json:"target_price"`
	Shares          int             `json:"shares"`
	EntryTime       time.Time       `json:"entry_time"`
	RiskAmount      float64         `json:"risk_amount"`
	SetupQuality    int             `json:"setup_quality"`
	Notes           string          `json:"notes"`
	EntrySignal     string          `json:"entry_signal"`
	ATRAtEntry      float64         `json:"atr_at_entry"`
	MarketDirection MarketDirection `json:"market_direction"`
}

// Trade is the immutable audit record of a closed position.
type Trade struct {
	Date               string          `json:"date"`
	Ticker             string          `json:"ticker"`
	MarketDirection    MarketDirection `json:"market_direction"`
	Strategy           string          `json:"strategy"`
	StrategyVersion    string          `json:"strategy_version"`
	EntryTime          time.Time       `json:"entry_time"`
	ExitTime           time.Time       `json:"exit_time"`
	Action             Action          `json:"action"`
	EntryPriceIntended float64         `json:"entry_price_intended"`
	EntryFillPrice     float64         `json:"entry_fill_price"`
	ExitPriceIntended  float64         `json:"exit_price_intended"`
	ExitFillPrice      float64         `json:"exit_fill_price"`
	StopLossPrice      float64         `json:"stop_loss_price"`
	Shares             int             `json:"shares"`
	TotalPrice         float64         `json:"total_price"`
	AccountSize        float64         `json:"account_size"`
	RiskAmount         float64         `json:"risk_amount"`
	PortfolioRiskPct   float64         `json:"portfolio_risk_pct"`
	GrossPL            float64         `json:"gross_pl"`
	ReturnPct          float64         `json:"return_pct"`
	RMultiple          float64         `json:"r_multiple"`
	DurationMin        float64         `json:"duration_min"`
	WinLoss            string          `json:"win_loss"`
	SetupQuality       int             `json:"setup_quality"`
	OrderID            string          `json:"order_id"`
	Commission         float64         `json:"commission"`
	Slippage           float64         `json:"slippage"`
	ATRAtEntry         float64         `json:"atr_at_entry"`
	EntrySignal        string          `json:"entry_signal"`
	ExitSignal         string          `json:"exit_signal"`
	Notes              string          `json:"notes"`
	ClosingNotes       string          `json:"closing_notes"`
	CumulativePL       float64         `json:"cumulative_pl"`
}

// IsWin reports whether the trade closed with a positive gross P/L.
func (t *Trade) IsWin() bool {
	return t.WinLoss == ResultWin
}

// EquitySnapshot is a point-in-time view of the ledger recorded each loop cycle.
type EquitySnapshot struct {
	ID              int64
	Capital         float64
	PeakCapital     float64
	OpenPositions   int
	DailyRiskUsed   float64
	CurrentDrawdown float64
	MaxDrawdown     float64
	NetProfit       float64
	CreatedAt       time.Time
}
