package domain

// Action is the direction of a signal or position.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Valid reports whether a is one of the two tradable directions.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Signal is a strategy's proposal to open a position.
type Signal struct {
	Ticker      string  `json:"ticker"`
	Action      Action  `json:"action"`
	EntryPrice  float64 `json:"entry_price"`
	StopLoss    float64 `json:"stop_loss"`
	TargetPrice float64 `json:"target_price"`
	Confidence  float64 `json:"confidence"` // 0..1
	Strategy    string  `json:"strategy"`
	Reason      string  `json:"reason"`
}
