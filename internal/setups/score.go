package setups

import (
	"fmt"
	"math"

	"futures-sentinel/internal/indicators"
	"futures-sentinel/internal/market"
)

// breakoutBuffer is the margin a close must clear beyond a level before it
// counts as a break rather than noise.
const breakoutBuffer = 0.001

// Tolerance defines "near a level" for retests and pullback touches: the
// larger of 0.15% of the last close and a quarter of ATR14, so the band
// scales with volatility instead of being a fixed price distance.
func Tolerance(lastClose float64, atr14 *float64) float64 {
	tol := lastClose * 0.0015
	if atr14 != nil && *atr14*0.25 > tol {
		tol = *atr14 * 0.25
	}
	return tol
}

// TakeProfit places the target so that hitting it yields roughly
// targetRoiPct of account ROI at maxLeverage, rather than a fixed price move
func TakeProfit(entry float64, dir Direction, targetRoiPct, maxLeverage float64) float64 {
	movePct := targetRoiPct / math.Max(1, maxLeverage) / 100
	if dir == DirectionShort {
		return entry * (1 - movePct)
	}
	return entry * (1 + movePct)
}

// RiskReward computes target distance over stop distance, or nil when stop
// or target sit on the wrong side of entry.
func RiskReward(dir Direction, entry, stop, target float64) *float64 {
	var risk, reward float64
	switch dir {
	case DirectionLong:
		risk = entry - stop
		reward = target - entry
	case DirectionShort:
		risk = stop - entry
		reward = entry - target
	}

	if risk <= 0 || reward <= 0 {
		return nil
	}

	rr := reward / risk
	return &rr
}

// baseScore implements the scoring shared by all detectors: start at 45,
// trend alignment, risk:reward tier, an RSI band bonus and a volume bonus,
// clamped to [0,100]. Returns the score plus the reason fragments that fired.
func baseScore(dir Direction, trendAligned bool, rr *float64, rsi *float64, klines []market.Kline) (float64, []string) {
	score := 45.0
	var reasons []string

	if trendAligned {
		score += 20
		reasons = append(reasons, "aligned with 4h trend")
	} else {
		score -= 20
	}

	if rr != nil {
		switch {
		case *rr >= 2.5:
			score += 18
		case *rr >= 2.0:
			score += 14
		case *rr >= 1.5:
			score += 10
		case *rr >= 1.2:
			score += 6
		}
		if *rr >= 1.2 {
			reasons = append(reasons, fmt.Sprintf("risk:reward %.2f", *rr))
		}
	}

	if rsi != nil {
		v := *rsi
		if dir == DirectionLong {
			if v >= 45 && v <= 65 {
				score += 10
				reasons = append(reasons, fmt.Sprintf("RSI %.1f in healthy range", v))
			} else if v > 75 {
				score -= 6
			}
		} else {
			if v >= 35 && v <= 55 {
				score += 10
				reasons = append(reasons, fmt.Sprintf("RSI %.1f in healthy range", v))
			} else if v < 25 {
				score -= 6
			}
		}
	}

	if volumeExpanding(klines) {
		score += 5
		reasons = append(reasons, "volume above 20-bar average")
	}

	return clampScore(score), reasons
}

// volumeExpanding checks whether the last bar's volume exceeds 1.2x the
// 20-bar volume average. Needs at least 25 bars to say anything.
func volumeExpanding(klines []market.Kline) bool {
	if len(klines) < 25 {
		return false
	}
	avg, ok := indicators.SMA(indicators.Volumes(klines), 20)
	if !ok || avg <= 0 {
		return false
	}
	return klines[len(klines)-1].Volume > avg*1.2
}

func clampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

// windowHigh returns the highest high of klines[from:to)
func windowHigh(klines []market.Kline, from, to int) float64 {
	high := klines[from].High
	for i := from + 1; i < to; i++ {
		if klines[i].High > high {
			high = klines[i].High
		}
	}
	return high
}

// windowLow returns the lowest low of klines[from:to)
func windowLow(klines []market.Kline, from, to int) float64 {
	low := klines[from].Low
	for i := from + 1; i < to; i++ {
		if klines[i].Low < low {
			low = klines[i].Low
		}
	}
	return low
}
