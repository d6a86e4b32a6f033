package marketdata

import (
	"math"

	"github.com/vitos/day_trade_sim/internal/domain"
)

const (
	rsiPeriod      = 14
	atrPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignalSpan = 9
	bbPeriod       = 20
	bbStdDev       = 2.0
)

// Enrich computes the indicator columns for each candle. Candles must be oldest first.
// Warm-up gaps are filled the way the strategies expect: RSI 50, ATR with the mean true range,
// Bollinger bands around the overall mean close.
func Enrich(candles []domain.Candle) []domain.Bar {
	n := len(candles)
	bars := make([]domain.Bar, n)
	if n == 0 {
		return bars
	}

	closes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		bars[i].Candle = c
	}

	sma20 := SMA(closes, 20)
	sma50 := SMA(closes, 50)
	rsi := RSI(closes, rsiPeriod)
	macd, signal := MACD(closes, macdFast, macdSlow, macdSignalSpan)
	atr := ATR(candles, atrPeriod)
	upper, middle, lower := Bollinger(closes, bbPeriod, bbStdDev)

	for i := range bars {
		bars[i].SMA20 = zeroIfNaN(sma20[i])
		bars[i].SMA50 = zeroIfNaN(sma50[i])
		bars[i].RSI = rsi[i]
		bars[i].MACD = macd[i]
		bars[i].MACDSignal = signal[i]
		bars[i].ATR = atr[i]
		bars[i].BBUpper = upper[i]
		bars[i].BBMiddle = middle[i]
		bars[i].BBLower = lower[i]
	}
	return bars
}

// SMA returns the simple moving average; positions before the first full window are NaN.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// EMA is the adjusted exponentially weighted mean for the given span.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	decay := 1 - 2/(float64(span)+1)
	num, den := 0.0, 0.0
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// RSI uses simple rolling means of gains and losses. Undefined values are reported as 50.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = 50
		if i < period {
			continue
		}
		avgGain, avgLoss := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 50
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACD returns the MACD line and its signal line.
func MACD(closes []float64, fast, slow, signalSpan int) ([]float64, []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	return line, EMA(line, signalSpan)
}

// ATR is the rolling mean true range. The warm-up is filled with the mean of all known true ranges.
func ATR(candles []domain.Candle, period int) []float64 {
	n := len(candles)
	tr := make([]float64, n)
	known, total := 0, 0.0
	for i := range candles {
		if i == 0 {
			tr[i] = math.NaN()
			continue
		}
		prevClose := candles[i-1].Close
		c := candles[i]
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		known++
		total += tr[i]
	}

	fill := 0.0
	if known > 0 {
		fill = total / float64(known)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = fill
		if i < period {
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += tr[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// Bollinger returns upper, middle and lower bands with a sample standard deviation.
// Before the first full window the bands sit 20% around the mean close.
func Bollinger(closes []float64, period int, width float64) ([]float64, []float64, []float64) {
	n := len(closes)
	upper := make([]float64, n)
	middle := SMA(closes, period)
	lower := make([]float64, n)

	mean := 0.0
	for _, c := range closes {
		mean += c
	}
	if n > 0 {
		mean /= float64(n)
	}

	for i := range closes {
		if math.IsNaN(middle[i]) || period < 2 {
			middle[i] = mean
			upper[i] = mean * 1.2
			lower[i] = mean * 0.8
			continue
		}
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - middle[i]
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period-1))
		upper[i] = middle[i] + width*std
		lower[i] = middle[i] - width*std
	}
	return upper, middle, lower
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
