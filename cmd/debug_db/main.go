package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/day_trade_sim/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "trading.db", "path to the SQLite journal")
	limit := flag.Int("limit", 20, "number of rows to show")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	trades, err := store.ListTrades(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d trades:\n", len(trades))
	for _, t := range trades {
		fmt.Printf("- %s %s %s %d @ %.2f -> %.2f  P/L %.2f (%s, %s)\n",
			t.OrderID, t.Action, t.Ticker, t.Shares, t.EntryFillPrice, t.ExitFillPrice,
			t.GrossPL, t.WinLoss, t.ExitSignal)
	}

	snaps, err := store.ListEquitySnapshots(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list equity snapshots: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nFound %d equity snapshots:\n", len(snaps))
	for _, s := range snaps {
		fmt.Printf("- #%d %s capital=%.2f peak=%.2f open=%d drawdown=%.2f%% net=%.2f\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Capital, s.PeakCapital,
			s.OpenPositions, s.CurrentDrawdown*100, s.NetProfit)
	}
}
