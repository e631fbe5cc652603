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
	pullbackMinHistory = 60
	pullbackStopATR    = 1.2
	pullbackScoreBonus = 8
)

// RSI gating bands for the pullback reclaim bar. Wider than the base-scoring
// band on purpose: a pullback entry is acceptable at slightly weaker momentum.
const (
	pullbackLongRSIMin  = 40
	pullbackLongRSIMax  = 65
	pullbackShortRSIMin = 35
	pullbackShortRSIMax = 60
)

// DetectTrendPullback looks for a pullback into the 20/50 moving averages
// followed by a reclaim bar closing back in the trend direction: the previous
// bar must close against the trend (the actual pullback), the current bar
// must touch one of the averages within tolerance and close past sma20.
func DetectTrendPullback(symbol, timeframe string, trend analysis.TrendDirection, klines []market.Kline, ind indicators.Snapshot, cfg Config) []Candidate {
	if !trend.IsDirectional() || len(klines) < pullbackMinHistory {
		return nil
	}
	if ind.SMA20 == nil || ind.SMA50 == nil || ind.ATR14 == nil {
		return nil
	}

	dir := DirectionLong
	if trend == analysis.TrendDown {
		dir = DirectionShort
	}

	cur := klines[len(klines)-1]
	prev := klines[len(klines)-2]
	sma20 := *ind.SMA20
	sma50 := *ind.SMA50
	atr := *ind.ATR14
	tol := Tolerance(cur.Close, ind.ATR14)

	var touched, reclaimed, colors bool
	var stop float64
	if dir == DirectionLong {
		touched = math.Abs(cur.Low-sma20) <= tol || math.Abs(cur.Low-sma50) <= tol
		reclaimed = cur.Close > sma20
		colors = cur.IsBullish() && prev.IsBearish()
		stop = cur.Low - pullbackStopATR*atr
	} else {
		touched = math.Abs(cur.High-sma20) <= tol || math.Abs(cur.High-sma50) <= tol
		reclaimed = cur.Close < sma20
		colors = cur.IsBearish() && prev.IsBullish()
		stop = cur.High + pullbackStopATR*atr
	}
	if !touched || !reclaimed || !colors {
		return nil
	}

	// A null RSI passes: momentum gating is advisory, not required history
	if ind.RSI14 != nil {
		v := *ind.RSI14
		if dir == DirectionLong && (v < pullbackLongRSIMin || v > pullbackLongRSIMax) {
			return nil
		}
		if dir == DirectionShort && (v < pullbackShortRSIMin || v > pullbackShortRSIMax) {
			return nil
		}
	}

	entry := cur.Close
	target := TakeProfit(entry, dir, cfg.TargetROIPct, cfg.MaxLeverage)
	rr := RiskReward(dir, entry, stop, target)

	score, reasons := baseScore(dir, true, rr, ind.RSI14, klines)
	score = clampScore(score + pullbackScoreBonus)

	reasons = append([]string{
		"pullback into the 20/50 moving averages",
		fmt.Sprintf("reclaim bar closed past sma20 %.6g in trend direction", sma20),
	}, reasons...)

	c := Candidate{
		Symbol:          symbol,
		Timeframe:       timeframe,
		Trend4h:         trend,
		Direction:       dir,
		Strategy:        StrategyTrendPullback,
		Score:           score,
		Entry:           entry,
		StopLoss:        stop,
		TakeProfit:      target,
		RiskRewardRatio: rr,
		Reasons:         reasons,
		InvalidationConditions: []string{
			fmt.Sprintf("close beyond stop at %.6g", stop),
			"close back through sma50 against the trend",
		},
		CreatedAt: time.Now().UTC(),
	}

	if !c.IsValid() {
		return nil
	}
	return []Candidate{c}
}
