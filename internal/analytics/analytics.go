package analytics

import (
	"math"
	"sort"

	"github.com/vitos/day_trade_sim/internal/domain"
)

// Summary aggregates a set of closed trades.
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	TotalLoss     float64 `json:"total_loss"`
	NetProfit     float64 `json:"net_profit"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	// ProfitFactor is TotalProfit / TotalLoss, 0 when there are no losses.
	ProfitFactor float64 `json:"profit_factor"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	// MaxDrawdown is the deepest fall of cumulative P/L from its running peak, in dollars.
	MaxDrawdown float64 `json:"max_drawdown"`
}

type StrategyStats struct {
	Strategy string  `json:"strategy"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	NetPL    float64 `json:"net_pl"`
	AverageR float64 `json:"average_r"`
}

type DailyPL struct {
	Date         string  `json:"date"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	PL           float64 `json:"pl"`
	CumulativePL float64 `json:"cumulative_pl"`
}

// chronological returns the trades ordered by exit time without touching the input.
func chronological(trades []*domain.Trade) []*domain.Trade {
	out := append([]*domain.Trade(nil), trades...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExitTime.Before(out[j].ExitTime)
	})
	return out
}

func Summarize(trades []*domain.Trade) Summary {
	var s Summary
	var cumulative, peak float64

	for _, t := range chronological(trades) {
		s.TotalTrades++
		if t.IsWin() {
			s.WinningTrades++
			s.TotalProfit += t.GrossPL
			s.LargestWin = math.Max(s.LargestWin, t.GrossPL)
		} else {
			s.LosingTrades++
			s.TotalLoss += math.Abs(t.GrossPL)
			s.LargestLoss = math.Min(s.LargestLoss, t.GrossPL)
		}

		cumulative += t.GrossPL
		peak = math.Max(peak, cumulative)
		s.MaxDrawdown = math.Max(s.MaxDrawdown, peak-cumulative)
	}

	if s.TotalTrades == 0 {
		return s
	}
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	s.NetProfit = s.TotalProfit - s.TotalLoss
	if s.WinningTrades > 0 {
		s.AverageWin = s.TotalProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = s.TotalLoss / float64(s.LosingTrades)
	}
	if s.TotalLoss > 0 {
		s.ProfitFactor = s.TotalProfit / s.TotalLoss
	}
	return s
}

// ByStrategy breaks results down per strategy, sorted by strategy name.
func ByStrategy(trades []*domain.Trade) []StrategyStats {
	byName := make(map[string]*StrategyStats)
	rSum := make(map[string]float64)

	for _, t := range trades {
		st, ok := byName[t.Strategy]
		if !ok {
			st = &StrategyStats{Strategy: t.Strategy}
			byName[t.Strategy] = st
		}
		st.Trades++
		if t.IsWin() {
			st.Wins++
		}
		st.NetPL += t.GrossPL
		rSum[t.Strategy] += t.RMultiple
	}

	out := make([]StrategyStats, 0, len(byName))
	for name, st := range byName {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
		st.AverageR = rSum[name] / float64(st.Trades)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// Daily groups P/L by trade date in date order, with a running total.
func Daily(trades []*domain.Trade) []DailyPL {
	var out []DailyPL
	index := make(map[string]int)

	for _, t := range chronological(trades) {
		i, ok := index[t.Date]
		if !ok {
			out = append(out, DailyPL{Date: t.Date})
			i = len(out) - 1
			index[t.Date] = i
		}
		out[i].Trades++
		if t.IsWin() {
			out[i].Wins++
		}
		out[i].PL += t.GrossPL
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	cumulative := 0.0
	for i := range out {
		cumulative += out[i].PL
		out[i].CumulativePL = cumulative
	}
	return out
}
