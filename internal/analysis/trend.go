package analysis

import (
	"futures-sentinel/internal/indicators"
	"futures-sentinel/internal/market"
)

// TrendDirection represents the higher-timeframe trend
type TrendDirection string

const (
	TrendUp      TrendDirection = "UP"
	TrendDown    TrendDirection = "DOWN"
	TrendNeutral TrendDirection = "NEUTRAL"
)

// trendBuffer is the hysteresis band around sma50 == sma200. Without it the
// classification flaps between UP and DOWN while the averages cross.
const trendBuffer = 0.001

// ClassifyTrend derives a coarse trend label from a higher-timeframe candle
// window (4h by convention) by comparing the 50 and 200 period moving
// averages of closes. Insufficient history yields NEUTRAL.
func ClassifyTrend(klines []market.Kline) TrendDirection {
	closes := indicators.Closes(klines)

	sma50, ok50 := indicators.SMA(closes, 50)
	sma200, ok200 := indicators.SMA(closes, 200)
	if !ok50 || !ok200 {
		return TrendNeutral
	}

	switch {
	case sma50 > sma200*(1+trendBuffer):
		return TrendUp
	case sma50 < sma200*(1-trendBuffer):
		return TrendDown
	default:
		return TrendNeutral
	}
}

// IsDirectional returns true for UP or DOWN
func (t TrendDirection) IsDirectional() bool {
	return t == TrendUp || t == TrendDown
}
