package domain

// PortfolioSummary is a read-only projection of the ledger.
type PortfolioSummary struct {
	InitialCapital  float64 `json:"initial_capital"`
	CurrentCapital  float64 `json:"current_capital"`
	PeakCapital     float64 `json:"peak_capital"`
	TotalPositions  int     `json:"total_positions"`
	DailyRiskUsed   float64 `json:"daily_risk_used"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalProfit     float64 `json:"total_profit"`
	TotalLoss       float64 `json:"total_loss"`
	NetProfit       float64 `json:"net_profit"`
}

// RiskMetrics describes how much risk budget is left for the day.
type RiskMetrics struct {
	DailyRiskUsedPct   float64 `json:"daily_risk_used_pct"`
	DailyRiskRemaining float64 `json:"daily_risk_remaining"`
	MaxPositionSize    float64 `json:"max_position_size"`
	PositionsRemaining int     `json:"positions_remaining"`
	CanTrade           bool    `json:"can_trade"`
}
