package setups

import (
	"fmt"
	"math"
	"time"

	"futures-sentinel/internal/analysis"
	"futures-sentinel/internal/indicators"
	"futures-sentinel/internal/market"
)

const (
	breakoutMinHistory = 40
	breakoutLookback   = 12 // bars scanned backwards for the breakout bar
	breakoutRangeBars  = 20 // prior range defining the broken level
	breakoutStopATR    = 1.5
	breakoutScoreBonus = 10
)

// DetectBreakoutRetest looks for a recent close through the prior 20-bar
// extreme followed by the current bar retesting the broken level within
// tolerance and closing back in the breakout direction.
func DetectBreakoutRetest(symbol, timeframe string, trend analysis.TrendDirection, klines []market.Kline, ind indicators.Snapshot, cfg Config) []Candidate {
	if !trend.IsDirectional() || len(klines) < breakoutMinHistory || ind.ATR14 == nil {
		return nil
	}

	dir := DirectionLong
	if trend == analysis.TrendDown {
		dir = DirectionShort
	}

	level, breakoutBar, found := findBreakoutLevel(klines, dir)
	if !found {
		return nil
	}

	cur := klines[len(klines)-1]
	atr := *ind.ATR14
	tol := Tolerance(cur.Close, ind.ATR14)

	// The current bar must touch the level within tolerance, close back on
	// the breakout side of it, and print the right candle color.
	var retest bool
	var stop float64
	if dir == DirectionLong {
		retest = math.Abs(level-cur.Low) <= tol && cur.Close > level && cur.IsBullish()
		stop = level - breakoutStopATR*atr
	} else {
		retest = math.Abs(cur.High-level) <= tol && cur.Close < level && cur.IsBearish()
		stop = level + breakoutStopATR*atr
	}
	if !retest {
		return nil
	}

	entry := level
	target := TakeProfit(entry, dir, cfg.TargetROIPct, cfg.MaxLeverage)
	rr := RiskReward(dir, entry, stop, target)

	score, reasons := baseScore(dir, true, rr, ind.RSI14, klines)
	score = clampScore(score + breakoutScoreBonus)

	reasons = append([]string{
		fmt.Sprintf("close broke the prior %d-bar level %.6g %d bars ago", breakoutRangeBars, level, len(klines)-1-breakoutBar),
		"current bar retests the breakout level within tolerance",
	}, reasons...)

	c := Candidate{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Trend4h:    trend,
		Direction:  dir,
		Strategy:   StrategyBreakoutRetest,
		Score:      score,
		Entry:      entry,
		EntryZone:  &PriceZone{Low: entry - 0.5*tol, High: entry + 0.5*tol},
		StopLoss:   stop,
		TakeProfit: target,
		RiskRewardRatio: rr,
		Reasons:    reasons,
		InvalidationConditions: []string{
			fmt.Sprintf("close beyond stop at %.6g", stop),
			"breakout level reclaimed by two consecutive closes against the trade",
		},
		CreatedAt: time.Now().UTC(),
	}

	if !c.IsValid() {
		return nil
	}
	return []Candidate{c}
}

// findBreakoutLevel scans the last breakoutLookback bars (excluding the
// current bar) for the most recent close through the prior 20-bar extreme by
// more than the breakout buffer. Returns the broken level and the bar index.
func findBreakoutLevel(klines []market.Kline, dir Direction) (float64, int, bool) {
	last := len(klines) - 1 // current bar, excluded from the scan

	start := last - breakoutLookback
	if start < breakoutRangeBars {
		start = breakoutRangeBars
	}

	level := 0.0
	bar := -1
	for j := start; j < last; j++ {
		if dir == DirectionLong {
			priorHigh := windowHigh(klines, j-breakoutRangeBars, j)
			if klines[j].Close > priorHigh*(1+breakoutBuffer) {
				level = priorHigh
				bar = j
			}
		} else {
			priorLow := windowLow(klines, j-breakoutRangeBars, j)
			if klines[j].Close < priorLow*(1-breakoutBuffer) {
				level = priorLow
				bar = j
			}
		}
	}

	return level, bar, bar >= 0
}
