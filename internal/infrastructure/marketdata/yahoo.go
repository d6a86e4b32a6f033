package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitos/day_trade_sim/internal/domain"
)

const (
	DefaultYahooURL = "https://query1.finance.yahoo.com"
	userAgent       = "Mozilla/5.0 (compatible; day-trade-sim/1.0)"
)

// YahooClient reads quotes and candles from the public Yahoo Finance chart endpoint.
type YahooClient struct {
	baseURL string
	client  *http.Client
}

func NewYahooClient(baseURL string) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &YahooClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *YahooClient) fetchChart(ctx context.Context, ticker, interval, rng string) (*chartResponse, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("yahoo API error %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("decode chart for %s: %w", ticker, err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s: %s", ticker, result.Chart.Error.Code, result.Chart.Error.Description)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("yahoo API error %d for %s", resp.StatusCode, ticker)
	}
	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("ticker %s not found", ticker)
	}
	return &result, nil
}

// GetQuote returns the regular market price of ticker.
func (y *YahooClient) GetQuote(ctx context.Context, ticker string) (float64, error) {
	chart, err := y.fetchChart(ctx, ticker, "1m", "1d")
	if err != nil {
		return 0, err
	}

	res := chart.Chart.Result[0]
	if res.Meta.RegularMarketPrice > 0 {
		return res.Meta.RegularMarketPrice, nil
	}

	// Fall back to the last non-null close.
	if len(res.Indicators.Quote) > 0 {
		closes := res.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil && *closes[i] > 0 {
				return *closes[i], nil
			}
		}
	}
	return 0, fmt.Errorf("no price for %s", ticker)
}

// GetCandles returns up to limit candles, oldest first. Rows with missing fields are skipped.
func (y *YahooClient) GetCandles(ctx context.Context, ticker, interval string, limit int) ([]domain.Candle, error) {
	chart, err := y.fetchChart(ctx, ticker, interval, rangeFor(interval, limit))
	if err != nil {
		return nil, err
	}

	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]

	var candles []domain.Candle
	for i, ts := range res.Timestamp {
		open, ok1 := at(q.Open, i)
		high, ok2 := at(q.High, i)
		low, ok3 := at(q.Low, i)
		closePrice, ok4 := at(q.Close, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}
		volume, _ := at(q.Volume, i)

		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

// rangeFor picks the smallest chart range that covers limit bars of interval.
func rangeFor(interval string, limit int) string {
	switch interval {
	case "1m", "2m", "5m":
		if limit <= 300 {
			return "1d"
		}
		return "5d"
	case "15m", "30m", "60m", "1h":
		return "1mo"
	}

	switch {
	case limit <= 5:
		return "5d"
	case limit <= 21:
		return "1mo"
	case limit <= 63:
		return "3mo"
	case limit <= 126:
		return "6mo"
	case limit <= 252:
		return "1y"
	default:
		return "2y"
	}
}
