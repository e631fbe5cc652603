package sizing

import (
	"errors"
	"math"
)

// Result describes a risk-bounded order size for a setup. All values are
// rounded for display stability.
type Result struct {
	Quantity         float64 `json:"quantity"`
	NotionalUSD      float64 `json:"notional_usd"`
	RiskUSD          float64 `json:"risk_usd"`
	RewardUSD        float64 `json:"reward_usd"`
	RiskPct          float64 `json:"risk_pct"`
	LeverageRequired float64 `json:"leverage_required"`
}

// ErrNotComputable signals inputs from which no sensible size follows
// (zero equity, stop on top of entry, stop further than 100% away)
var ErrNotComputable = errors.New("position size not computable for inputs")

// Input holds the parameters for a sizing computation
type Input struct {
	WalletEquity float64
	RiskPct      float64 // percent of equity risked per trade
	Entry        float64
	StopLoss     float64
	TakeProfit   float64
	MaxLeverage  float64 // 0 disables the cap
}

// Compute converts a setup's entry/stop/target into a risk-bounded order
// size. When the raw notional would exceed the leverage cap the notional is
// clamped to equity*cap, which means the risk actually taken can fall below
// the nominal risk-per-trade target. That is expected behavior, not a bug.
func Compute(in Input) (*Result, error) {
	if in.WalletEquity <= 0 || in.Entry <= 0 || in.RiskPct <= 0 {
		return nil, ErrNotComputable
	}

	stopDistFrac := math.Abs(in.Entry-in.StopLoss) / in.Entry
	if stopDistFrac <= 0 || stopDistFrac >= 1 {
		return nil, ErrNotComputable
	}

	riskBudget := in.WalletEquity * in.RiskPct / 100
	notional := riskBudget / stopDistFrac
	leverage := notional / in.WalletEquity

	if in.MaxLeverage > 0 && leverage > in.MaxLeverage {
		leverage = in.MaxLeverage
		notional = in.WalletEquity * in.MaxLeverage
	}

	quantity := notional / in.Entry
	riskUSD := quantity * math.Abs(in.Entry-in.StopLoss)
	rewardUSD := quantity * math.Abs(in.TakeProfit-in.Entry)

	return &Result{
		Quantity:         roundSig(quantity, 6),
		NotionalUSD:      roundSig(notional, 6),
		RiskUSD:          roundSig(riskUSD, 6),
		RewardUSD:        roundSig(rewardUSD, 6),
		RiskPct:          roundSig(riskUSD/in.WalletEquity*100, 6),
		LeverageRequired: roundSig(leverage, 6),
	}, nil
}

// roundSig rounds v to n significant digits
func roundSig(v float64, n int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	magnitude := math.Pow(10, float64(n)-math.Ceil(math.Log10(math.Abs(v))))
	return math.Round(v*magnitude) / magnitude
}
