package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vitos/day_trade_sim/internal/analytics"
	"github.com/vitos/day_trade_sim/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	SheetTradingLog  = "Trading Log"
	SheetSummary     = "Summary"
	SheetPerformance = "Performance"

	timeLayout = "2006-01-02 15:04:05"
)

// TradeLogColumns is the header row of the trading log, one column per Trade field.
var TradeLogColumns = []string{
	"Date", "Ticker", "Market Direction", "Strategy", "Strategy Version",
	"Entry Time", "Exit Time", "Entry Price (intended)", "Entry Fill Price",
	"Exit Price (intended)", "Exit Fill Price", "Stop Loss Price", "Shares",
	"Total Price", "Account Size ($)", "$ Risked (per trade)", "% of Portfolio Risked",
	"Gross P/L ($)", "% Return on Trade", "R Multiple", "Trade Duration (min)",
	"Win/Loss", "Setup Quality (1-5)", "Order ID", "Commission", "Slippage",
	"ATR at Entry", "Entry Signal", "Exit Signal", "Notes", "Closing Notes",
	"Cumulative P/L",
}

var columnWidths = []float64{
	12, 10, 15, 12, 15, 20, 20, 18, 15, 18, 15, 15, 8, 12, 15, 18,
	20, 12, 18, 12, 18, 10, 18, 12, 12, 10, 12, 15, 15, 30, 30, 15,
}

// Zero-based positions of the columns the summary sheets are rebuilt from.
const (
	colDate     = 0
	colStrategy = 3
	colExitTime = 6
	colGrossPL  = 17
	colRMult    = 19
	colWinLoss  = 21
)

var performanceColumns = []string{
	"Date", "Total Trades", "Winning Trades", "Losing Trades",
	"Win Rate (%)", "Daily P/L ($)", "Cumulative P/L ($)",
}

// ExcelSink appends closed trades to a workbook and refreshes its summary sheets.
type ExcelSink struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewExcelSink opens the workbook at path, creating it with headers when it does not exist.
func NewExcelSink(path string, logger *zap.Logger) (*ExcelSink, error) {
	s := &ExcelSink{path: path, logger: logger}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.create(); err != nil {
			return nil, err
		}
		logger.Info("Created new Excel file", zap.String("path", path))
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return s, nil
}

func (s *ExcelSink) create() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create excel dir: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTradingLog); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	if err := writeHeader(f, SheetTradingLog, TradeLogColumns, header); err != nil {
		return err
	}
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetTradingLog, col, col, w); err != nil {
			return err
		}
	}

	plain, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for _, sheet := range []struct {
		name    string
		columns []string
	}{
		{SheetSummary, []string{"Metric", "Value", "Description"}},
		{SheetPerformance, performanceColumns},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return err
		}
		if err := writeHeader(f, sheet.name, sheet.columns, plain); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "C", "C", 40); err != nil {
		return err
	}
	if err := writeSummary(f, analytics.Summary{}, time.Now()); err != nil {
		return err
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func tradeRow(t *domain.Trade) []interface{} {
	return []interface{}{
		t.Date, t.Ticker, string(t.MarketDirection), t.Strategy, t.StrategyVersion,
		t.EntryTime.Format(timeLayout), t.ExitTime.Format(timeLayout),
		t.EntryPriceIntended, t.EntryFillPrice, t.ExitPriceIntended, t.ExitFillPrice,
		t.StopLossPrice, t.Shares, t.TotalPrice, t.AccountSize, t.RiskAmount,
		t.PortfolioRiskPct, t.GrossPL, t.ReturnPct, t.RMultiple, t.DurationMin,
		t.WinLoss, t.SetupQuality, t.OrderID, t.Commission, t.Slippage,
		t.ATRAtEntry, t.EntrySignal, t.ExitSignal, t.Notes, t.ClosingNotes,
		t.CumulativePL,
	}
}

// Publish appends one row per trade and rebuilds the Summary and Performance sheets.
func (s *ExcelSink) Publish(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetTradingLog)
	if err != nil {
		return fmt.Errorf("read trading log: %w", err)
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}

	for i, t := range trades {
		cell, _ := excelize.CoordinatesToCellName(1, next+i)
		row := tradeRow(t)
		if err := f.SetSheetRow(SheetTradingLog, cell, &row); err != nil {
			return fmt.Errorf("write trade %s: %w", t.OrderID, err)
		}
	}

	logged, err := s.readTrades(f)
	if err != nil {
		return err
	}
	if err := writeSummary(f, analytics.Summarize(logged), time.Now()); err != nil {
		return err
	}
	if err := writePerformance(f, analytics.Daily(logged)); err != nil {
		return err
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.logger.Info("Logged trades to Excel", zap.Int("count", len(trades)))
	return nil
}

// readTrades rebuilds the fields the summary sheets need from the trading log.
func (s *ExcelSink) readTrades(f *excelize.File) ([]*domain.Trade, error) {
	rows, err := f.GetRows(SheetTradingLog, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read trading log: %w", err)
	}

	var trades []*domain.Trade
	for _, row := range rows[min(1, len(rows)):] {
		if len(row) <= colWinLoss {
			continue
		}
		t := &domain.Trade{
			Date:     row[colDate],
			Strategy: row[colStrategy],
			WinLoss:  row[colWinLoss],
		}
		t.GrossPL, _ = strconv.ParseFloat(row[colGrossPL], 64)
		t.RMultiple, _ = strconv.ParseFloat(row[colRMult], 64)
		t.ExitTime, _ = time.Parse(timeLayout, row[colExitTime])
		trades = append(trades, t)
	}
	return trades, nil
}

func writeSummary(f *excelize.File, sum analytics.Summary, updated time.Time) error {
	rows := [][]interface{}{
		{"Total Trades", sum.TotalTrades, "Total number of completed trades"},
		{"Winning Trades", sum.WinningTrades, "Number of profitable trades"},
		{"Losing Trades", sum.LosingTrades, "Number of losing trades"},
		{"Win Rate (%)", sum.WinRate * 100, "Percentage of winning trades"},
		{"Total Profit ($)", sum.TotalProfit, "Total profit from winning trades"},
		{"Total Loss ($)", sum.TotalLoss, "Total loss from losing trades"},
		{"Net Profit ($)", sum.NetProfit, "Net profit/loss"},
		{"Average Win ($)", sum.AverageWin, "Average profit per winning trade"},
		{"Average Loss ($)", sum.AverageLoss, "Average loss per losing trade"},
		{"Profit Factor", sum.ProfitFactor, "Total profit / Total loss"},
		{"Max Drawdown ($)", sum.MaxDrawdown, "Maximum peak-to-trough decline of cumulative P/L"},
		{"Last Updated", updated.Format(timeLayout), "Last time data was updated"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

func writePerformance(f *excelize.File, days []analytics.DailyPL) error {
	for i, d := range days {
		winRate := 0.0
		if d.Trades > 0 {
			winRate = float64(d.Wins) / float64(d.Trades) * 100
		}
		row := []interface{}{d.Date, d.Trades, d.Wins, d.Trades - d.Wins, winRate, d.PL, d.CumulativePL}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetPerformance, cell, &row); err != nil {
			return fmt.Errorf("write performance: %w", err)
		}
	}
	return nil
}
