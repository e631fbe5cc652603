package scanner

import (
	"context"
	"time"

	"futures-sentinel/internal/setups"
)

// SymbolError records a per-symbol failure within a scan. Partial results
// are the norm: one symbol failing never aborts the run.
type SymbolError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// ScanResult is the single "current world view" the scanner persists after
// each run. It is overwritten wholesale, never appended to.
type ScanResult struct {
	RunAt     time.Time          `json:"run_at"`
	Watchlist []string           `json:"watchlist"`
	Results   []setups.Candidate `json:"results"` // sorted descending by score
	Errors    []SymbolError      `json:"errors,omitempty"`
	Summary   string             `json:"summary,omitempty"`
}

// Status is a pure read of the orchestrator's scheduling state
type Status struct {
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// WatchlistSource supplies the symbols to scan
type WatchlistSource interface {
	GetSymbols() []string
}

// Summarizer optionally turns the top setups into a short narrative. Pure
// decoration: absence or failure never affects scan results.
type Summarizer interface {
	SummarizeSetups(ctx context.Context, top []setups.Candidate) (string, error)
}

// Config holds the orchestrator tunables
type Config struct {
	Interval         time.Duration
	Timeframes       []string // lower timeframes, e.g. 15m and 1h
	TrendTimeframe   string   // higher timeframe for trend classification
	CandleLimit      int      // per-timeframe window size
	TrendCandleLimit int      // higher-timeframe window size (needs >=201 for sma200)
	Concurrency      int      // worker pool width
	TargetROIPct     float64
	MaxLeverage      float64
	RiskPerTradePct  float64
	TopSummaryCount  int
}
