package indicators

import (
	"math"

	"futures-sentinel/internal/market"
)

// Snapshot holds the indicator values a scan computes for one candle window.
// Nil fields mean there was not enough history.
type Snapshot struct {
	ATR14 *float64 `json:"atr14,omitempty"`
	RSI14 *float64 `json:"rsi14,omitempty"`
	SMA20 *float64 `json:"sma20,omitempty"`
	SMA50 *float64 `json:"sma50,omitempty"`
}

// Compute derives the standard snapshot from a candle window
func Compute(klines []market.Kline) Snapshot {
	closes := Closes(klines)

	var snap Snapshot
	if v, ok := ATR(klines, 14); ok {
		snap.ATR14 = &v
	}
	if v, ok := RSI(klines, 14); ok {
		snap.RSI14 = &v
	}
	if v, ok := SMA(closes, 20); ok {
		snap.SMA20 = &v
	}
	if v, ok := SMA(closes, 50); ok {
		snap.SMA50 = &v
	}
	return snap
}

// Closes extracts close prices from a candle window
func Closes(klines []market.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// Volumes extracts volumes from a candle window
func Volumes(klines []market.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Volume
	}
	return out
}

// SMA calculates the simple moving average of the last period values.
// Returns ok=false when fewer than period values exist.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}

	return sum / float64(period), true
}

// ATR calculates Wilder's smoothed Average True Range. The first period true
// ranges are simple-averaged as the seed; later values use
// atr = (prev*(period-1) + tr) / period. Requires period+1 candles.
func ATR(klines []market.Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period+1 {
		return 0, false
	}

	trs := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		trs = append(trs, trueRange(klines[i], klines[i-1].Close))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}

	return atr, true
}

// RSI calculates Wilder's smoothed Relative Strength Index over close-to-close
// deltas. A zero average loss yields RSI 100. Requires period+1 candles.
func RSI(klines []market.Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period+1 {
		return 0, false
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

func trueRange(k market.Kline, prevClose float64) float64 {
	return math.Max(k.High-k.Low, math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
}
