package sink

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/day_trade_sim/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func sampleTrade(orderID, strategy string, pl float64, exit time.Time) *domain.Trade {
	result := domain.ResultLoss
	if pl > 0 {
		result = domain.ResultWin
	}
	return &domain.Trade{
		Date:            exit.Format("2006-01-02"),
		Ticker:          "AAPL",
		MarketDirection: domain.DirectionNeutral,
		Strategy:        strategy,
		StrategyVersion: "1.0",
		EntryTime:       exit.Add(-30 * time.Minute),
		ExitTime:        exit,
		Action:          domain.ActionBuy,
		EntryFillPrice:  100,
		ExitFillPrice:   100 + pl/10,
		Shares:          10,
		GrossPL:         pl,
		RMultiple:       pl / 20,
		WinLoss:         result,
		OrderID:         orderID,
		Commission:      2,
		ExitSignal:      domain.ExitTargetHit,
	}
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Publish(context.Context, []*domain.Trade) error {
	s.calls++
	return s.err
}

func TestMultiSink_FansOutAndCombinesErrors(t *testing.T) {
	ok := &stubSink{}
	bad1 := &stubSink{err: errors.New("disk full")}
	bad2 := &stubSink{err: errors.New("broker down")}

	m := NewMultiSink().Add("ok", ok).Add("excel", bad1).Add("skipped", nil).Add("kafka", bad2)
	assert.Equal(t, 3, m.Len())

	err := m.Publish(context.Background(), []*domain.Trade{sampleTrade("A", "Gap", 10, time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excel: disk full")
	assert.Contains(t, err.Error(), "kafka: broker down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad2.calls)

	require.NoError(t, m.Publish(context.Background(), nil))
	assert.Equal(t, 1, ok.calls, "empty batches are not forwarded")
}

func TestKafkaSink_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	fixed := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	check := func(orderID string) mocks.ValueChecker {
		return func(val []byte) error {
			var ev TradeEvent
			if err := json.Unmarshal(val, &ev); err != nil {
				return err
			}
			if ev.EventType != EventTradeClosed || ev.SchemaVersion != schemaVersion || !ev.Timestamp.Equal(fixed) {
				return errors.New("unexpected envelope")
			}
			if ev.Data == nil || ev.Data.OrderID != orderID {
				return errors.New("unexpected payload")
			}
			return nil
		}
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check("A"))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check("B"))

	k := NewKafkaSinkWithProducer(producer, "trading.trades", zap.NewNop())
	k.timeNow = func() time.Time { return fixed }

	err := k.Publish(context.Background(), []*domain.Trade{
		sampleTrade("A", "Gap", 10, fixed),
		sampleTrade("B", "Momentum", -5, fixed),
	})
	require.NoError(t, err)
	require.NoError(t, k.Close())
}

func TestKafkaSink_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaSinkWithProducer(producer, "trading.trades", zap.NewNop())
	err := k.Publish(context.Background(), []*domain.Trade{sampleTrade("A", "Gap", 10, time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading.trades")
	require.NoError(t, k.Close())
}

func TestKafkaSink_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	k := NewKafkaSinkWithProducer(producer, "trading.trades", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, k.Publish(ctx, []*domain.Trade{sampleTrade("A", "Gap", 10, time.Now())}), context.Canceled)
	require.NoError(t, k.Close())
}

func TestExcelSink_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trading_log.xlsx")
	_, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTradingLog, SheetSummary, SheetPerformance}, f.GetSheetList())

	rows, err := f.GetRows(SheetTradingLog)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, TradeLogColumns, rows[0])
	assert.Len(t, TradeLogColumns, 32)
}

func TestExcelSink_PublishAppendsAndSummarizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading_log.xlsx")
	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)

	day := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, []*domain.Trade{
		sampleTrade("A", "Gap", 100, day),
		sampleTrade("B", "Momentum", -40, day.Add(time.Hour)),
	}))

	// A second sink on the same file appends rather than recreating.
	again, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, again.Publish(ctx, []*domain.Trade{sampleTrade("C", "Gap", 20, day.Add(24*time.Hour))}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetTradingLog)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "A", rows[1][23])
	assert.Equal(t, "Win", rows[1][colWinLoss])
	assert.Equal(t, "C", rows[3][23])

	total, err := f.GetCellValue(SheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
	net, err := f.GetCellValue(SheetSummary, "B8", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "80", net)

	perf, err := f.GetRows(SheetPerformance)
	require.NoError(t, err)
	require.Len(t, perf, 3)
	assert.Equal(t, "2024-03-04", perf[1][0])
	assert.Equal(t, "2024-03-05", perf[2][0])
}

func TestExcelSink_EmptyBatch(t *testing.T) {
	s, err := NewExcelSink(filepath.Join(t.TempDir(), "log.xlsx"), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, s.Publish(context.Background(), nil))
}
