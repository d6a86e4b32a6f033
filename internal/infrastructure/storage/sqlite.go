package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/day_trade_sim/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL UNIQUE,
			trade_date TEXT NOT NULL,
			ticker TEXT NOT NULL,
			market_direction TEXT NOT NULL,
			strategy TEXT NOT NULL,
			strategy_version TEXT NOT NULL,
			action TEXT NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			entry_price_intended REAL NOT NULL,
			entry_fill_price REAL NOT NULL,
			exit_price_intended REAL NOT NULL,
			exit_fill_price REAL NOT NULL,
			stop_loss_price REAL NOT NULL,
			shares INTEGER NOT NULL,
			total_price REAL NOT NULL,
			account_size REAL NOT NULL,
			risk_amount REAL NOT NULL,
			portfolio_risk_pct REAL NOT NULL,
			gross_pl REAL NOT NULL,
			return_pct REAL NOT NULL,
			r_multiple REAL NOT NULL,
			duration_min REAL NOT NULL,
			win_loss TEXT NOT NULL,
			setup_quality INTEGER NOT NULL,
			commission REAL NOT NULL,
			slippage REAL NOT NULL,
			atr_at_entry REAL NOT NULL,
			entry_signal TEXT,
			exit_signal TEXT,
			notes TEXT,
			closing_notes TEXT,
			cumulative_pl REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date);`,
		`CREATE TABLE IF NOT EXISTS equity_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			capital REAL NOT NULL,
			peak_capital REAL NOT NULL,
			open_positions INTEGER NOT NULL,
			daily_risk_used REAL NOT NULL,
			current_drawdown REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			net_profit REAL NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

const tradeColumns = `order_id, trade_date, ticker, market_direction, strategy, strategy_version, action,
	entry_time, exit_time, entry_price_intended, entry_fill_price, exit_price_intended, exit_fill_price,
	stop_loss_price, shares, total_price, account_size, risk_amount, portfolio_risk_pct, gross_pl, return_pct,
	r_multiple, duration_min, win_loss, setup_quality, commission, slippage, atr_at_entry, entry_signal,
	exit_signal, notes, closing_notes, cumulative_pl`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	return saveTrade(ctx, s.db, t)
}

func saveTrade(ctx context.Context, db execer, t *domain.Trade) error {
	query := `INSERT INTO trades (` + tradeColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		t.OrderID, t.Date, t.Ticker, string(t.MarketDirection), t.Strategy, t.StrategyVersion, string(t.Action),
		t.EntryTime, t.ExitTime, t.EntryPriceIntended, t.EntryFillPrice, t.ExitPriceIntended, t.ExitFillPrice,
		t.StopLossPrice, t.Shares, t.TotalPrice, t.AccountSize, t.RiskAmount, t.PortfolioRiskPct, t.GrossPL, t.ReturnPct,
		t.RMultiple, t.DurationMin, t.WinLoss, t.SetupQuality, t.Commission, t.Slippage, t.ATRAtEntry, t.EntrySignal,
		t.ExitSignal, t.Notes, t.ClosingNotes, t.CumulativePL)
	if err != nil {
		return fmt.Errorf("save trade %s: %w", t.OrderID, err)
	}
	return nil
}

// Publish stores a batch of closed trades in one transaction.
func (s *SQLiteStore) Publish(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range trades {
		if err := saveTrade(ctx, tx, t); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListTrades returns the most recent trades first. A non-positive limit returns the whole journal.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction, action string
		var entrySignal, exitSignal, notes, closingNotes sql.NullString
		if err := rows.Scan(
			&t.OrderID, &t.Date, &t.Ticker, &direction, &t.Strategy, &t.StrategyVersion, &action,
			&t.EntryTime, &t.ExitTime, &t.EntryPriceIntended, &t.EntryFillPrice, &t.ExitPriceIntended, &t.ExitFillPrice,
			&t.StopLossPrice, &t.Shares, &t.TotalPrice, &t.AccountSize, &t.RiskAmount, &t.PortfolioRiskPct, &t.GrossPL, &t.ReturnPct,
			&t.RMultiple, &t.DurationMin, &t.WinLoss, &t.SetupQuality, &t.Commission, &t.Slippage, &t.ATRAtEntry, &entrySignal,
			&exitSignal, &notes, &closingNotes, &t.CumulativePL,
		); err != nil {
			return nil, err
		}
		t.MarketDirection = domain.MarketDirection(direction)
		t.Action = domain.Action(action)
		t.EntrySignal = entrySignal.String
		t.ExitSignal = exitSignal.String
		t.Notes = notes.String
		t.ClosingNotes = closingNotes.String
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveEquitySnapshot(ctx context.Context, snap *domain.EquitySnapshot) error {
	query := `INSERT INTO equity_snapshots (capital, peak_capital, open_positions, daily_risk_used, current_drawdown, max_drawdown, net_profit, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		snap.Capital, snap.PeakCapital, snap.OpenPositions, snap.DailyRiskUsed,
		snap.CurrentDrawdown, snap.MaxDrawdown, snap.NetProfit, snap.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err == nil {
		snap.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListEquitySnapshots(ctx context.Context, limit int) ([]*domain.EquitySnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT id, capital, peak_capital, open_positions, daily_risk_used, current_drawdown, max_drawdown, net_profit, created_at
			  FROM equity_snapshots ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*domain.EquitySnapshot
	for rows.Next() {
		var e domain.EquitySnapshot
		if err := rows.Scan(&e.ID, &e.Capital, &e.PeakCapital, &e.OpenPositions, &e.DailyRiskUsed,
			&e.CurrentDrawdown, &e.MaxDrawdown, &e.NetProfit, &e.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, &e)
	}
	return snaps, rows.Err()
}
