package setups

import (
	"fmt"
	"time"

	"futures-sentinel/internal/analysis"
	"futures-sentinel/internal/indicators"
	"futures-sentinel/internal/market"
)

const (
	continuationMinHistory = 80
	continuationRangeBars  = 20
	continuationStopATR    = 1.8
	continuationStopPctFallback = 0.002 // when ATR is unavailable
	continuationScoreBonus = 6
)

// DetectContinuation looks for the current close breaking the prior 20-bar
// extreme while the 20/50 moving averages are stacked with the trend, a
// momentum continuation entry rather than a retest.
func DetectContinuation(symbol, timeframe string, trend analysis.TrendDirection, klines []market.Kline, ind indicators.Snapshot, cfg Config) []Candidate {
	if !trend.IsDirectional() || len(klines) < continuationMinHistory {
		return nil
	}
	if ind.SMA20 == nil || ind.SMA50 == nil {
		return nil
	}

	dir := DirectionLong
	if trend == analysis.TrendDown {
		dir = DirectionShort
	}

	sma20 := *ind.SMA20
	sma50 := *ind.SMA50
	if dir == DirectionLong && sma20 <= sma50 {
		return nil
	}
	if dir == DirectionShort && sma20 >= sma50 {
		return nil
	}

	cur := klines[len(klines)-1]
	last := len(klines) - 1

	var broke bool
	if dir == DirectionLong {
		priorHigh := windowHigh(klines, last-continuationRangeBars, last)
		broke = cur.Close > priorHigh*(1+breakoutBuffer)
	} else {
		priorLow := windowLow(klines, last-continuationRangeBars, last)
		broke = cur.Close < priorLow*(1-breakoutBuffer)
	}
	if !broke {
		return nil
	}

	entry := cur.Close

	stopDist := entry * continuationStopPctFallback
	if ind.ATR14 != nil {
		stopDist = continuationStopATR * *ind.ATR14
	}
	stop := entry - stopDist
	if dir == DirectionShort {
		stop = entry + stopDist
	}

	target := TakeProfit(entry, dir, cfg.TargetROIPct, cfg.MaxLeverage)
	rr := RiskReward(dir, entry, stop, target)

	score, reasons := baseScore(dir, true, rr, ind.RSI14, klines)
	score = clampScore(score + continuationScoreBonus)

	reasons = append([]string{
		fmt.Sprintf("close broke the prior %d-bar extreme with stacked moving averages", continuationRangeBars),
	}, reasons...)

	c := Candidate{
		Symbol:          symbol,
		Timeframe:       timeframe,
		Trend4h:         trend,
		Direction:       dir,
		Strategy:        StrategyContinuation,
		Score:           score,
		Entry:           entry,
		StopLoss:        stop,
		TakeProfit:      target,
		RiskRewardRatio: rr,
		Reasons:         reasons,
		InvalidationConditions: []string{
			fmt.Sprintf("close beyond stop at %.6g", stop),
			"moving averages cross against the trend",
		},
		CreatedAt: time.Now().UTC(),
	}

	if !c.IsValid() {
		return nil
	}
	return []Candidate{c}
}

// DetectAll runs every detector over one symbol/timeframe window and
// deduplicates collisions on (symbol, timeframe, strategy, direction),
// keeping the highest-scoring candidate per group.
func DetectAll(symbol, timeframe string, trend analysis.TrendDirection, klines []market.Kline, ind indicators.Snapshot, cfg Config) []Candidate {
	var out []Candidate
	out = append(out, DetectBreakoutRetest(symbol, timeframe, trend, klines, ind, cfg)...)
	out = append(out, DetectTrendPullback(symbol, timeframe, trend, klines, ind, cfg)...)
	out = append(out, DetectContinuation(symbol, timeframe, trend, klines, ind, cfg)...)
	return Dedupe(out)
}
