package setups

import (
	"fmt"
	"math"
	"time"

	"futures-sentinel/internal/analysis"
	"futures-sentinel/internal/sizing"
)

// Direction is the trade direction of a setup
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Strategy identifies which detector produced a setup
type Strategy string

const (
	StrategyBreakoutRetest Strategy = "BREAKOUT_RETEST"
	StrategyTrendPullback  Strategy = "TREND_PULLBACK"
	StrategyContinuation   Strategy = "CONTINUATION"
)

// PriceZone is an inclusive [Low, High] price band
type PriceZone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Candidate is a scored trade setup emitted by a detector. Candidates are
// created fresh every scan cycle and never mutated; the next scan's result
// set supersedes them wholesale.
type Candidate struct {
	Symbol                 string                   `json:"symbol"`
	Timeframe              string                   `json:"timeframe"`
	Trend4h                analysis.TrendDirection  `json:"trend_4h"`
	Direction              Direction                `json:"direction"`
	Strategy               Strategy                 `json:"strategy"`
	Score                  float64                  `json:"score"`
	Entry                  float64                  `json:"entry"`
	EntryZone              *PriceZone               `json:"entry_zone,omitempty"`
	StopLoss               float64                  `json:"stop_loss"`
	TakeProfit             float64                  `json:"take_profit"`
	RiskRewardRatio        *float64                 `json:"risk_reward_ratio,omitempty"`
	Reasons                []string                 `json:"reasons"`
	InvalidationConditions []string                 `json:"invalidation_conditions"`
	CreatedAt              time.Time                `json:"created_at"`
	Sizing                 *sizing.Result           `json:"sizing,omitempty"`
}

// Key returns the deduplication identity (symbol, timeframe, strategy, direction)
func (c Candidate) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", c.Symbol, c.Timeframe, c.Strategy, c.Direction)
}

// IsValid verifies the direction invariant and that all numeric fields are finite.
// Detectors enforce this before emission; the orchestrator re-checks before publishing.
func (c Candidate) IsValid() bool {
	for _, v := range []float64{c.Score, c.Entry, c.StopLoss, c.TakeProfit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	switch c.Direction {
	case DirectionLong:
		return c.Entry > c.StopLoss && c.TakeProfit > c.Entry
	case DirectionShort:
		return c.Entry < c.StopLoss && c.TakeProfit < c.Entry
	default:
		return false
	}
}

// Config holds the tunables shared by all detectors
type Config struct {
	TargetROIPct float64 // account-level ROI target for the take-profit formula
	MaxLeverage  float64 // leverage used to translate ROI target into a price move
}

// Dedupe groups candidates by Key and keeps only the highest-scoring
// candidate per group. Input order is preserved for the survivors.
func Dedupe(candidates []Candidate) []Candidate {
	best := make(map[string]int, len(candidates))
	out := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		if idx, ok := best[key]; ok {
			if c.Score > out[idx].Score {
				out[idx] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}

	return out
}
