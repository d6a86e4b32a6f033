package analytics

import (
	"io"

	"github.com/vitos/day_trade_sim/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteReport prints the summary, per-strategy and per-day tables with grouped money amounts.
func WriteReport(w io.Writer, trades []*domain.Trade, snapshots []*domain.EquitySnapshot) error {
	p := message.NewPrinter(language.English)
	s := Summarize(trades)

	if _, err := p.Fprintf(w, "Day Trading Report\n==================\n"); err != nil {
		return err
	}
	if s.TotalTrades == 0 {
		_, err := p.Fprintf(w, "No completed trades.\n")
		return err
	}

	p.Fprintf(w, "Total Trades:   %d (%d wins, %d losses)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	p.Fprintf(w, "Win Rate:       %.1f%%\n", s.WinRate*100)
	p.Fprintf(w, "Total Profit:   $%.2f\n", s.TotalProfit)
	p.Fprintf(w, "Total Loss:     $%.2f\n", s.TotalLoss)
	p.Fprintf(w, "Net Profit:     $%.2f\n", s.NetProfit)
	p.Fprintf(w, "Average Win:    $%.2f\n", s.AverageWin)
	p.Fprintf(w, "Average Loss:   $%.2f\n", s.AverageLoss)
	p.Fprintf(w, "Profit Factor:  %.2f\n", s.ProfitFactor)
	p.Fprintf(w, "Largest Win:    $%.2f\n", s.LargestWin)
	p.Fprintf(w, "Largest Loss:   $%.2f\n", s.LargestLoss)
	p.Fprintf(w, "Max Drawdown:   $%.2f\n", s.MaxDrawdown)

	if len(snapshots) > 0 {
		last := snapshots[0]
		for _, snap := range snapshots[1:] {
			if snap.CreatedAt.After(last.CreatedAt) {
				last = snap
			}
		}
		p.Fprintf(w, "Capital:        $%.2f (peak $%.2f, max drawdown %.2f%%)\n",
			last.Capital, last.PeakCapital, last.MaxDrawdown*100)
	}

	p.Fprintf(w, "\nBy Strategy\n")
	for _, st := range ByStrategy(trades) {
		p.Fprintf(w, "  %-10s %4d trades  %5.1f%% win  net $%.2f  avg R %.2f\n",
			st.Strategy, st.Trades, st.WinRate*100, st.NetPL, st.AverageR)
	}

	p.Fprintf(w, "\nDaily P/L\n")
	for _, d := range Daily(trades) {
		p.Fprintf(w, "  %s  %3d trades  $%.2f  (cumulative $%.2f)\n", d.Date, d.Trades, d.PL, d.CumulativePL)
	}
	_, err := p.Fprintf(w, "\n")
	return err
}
