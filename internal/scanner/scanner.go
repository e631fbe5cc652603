// Package scanner orchestrates periodic setup scans across the watchlist:
// bounded-concurrency candle fetches, trend classification, the three setup
// detectors, scoring, sizing, and persistence of the latest snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"futures-sentinel/internal/analysis"
	"futures-sentinel/internal/indicators"
	"futures-sentinel/internal/market"
	"futures-sentinel/internal/setups"
	"futures-sentinel/internal/sizing"
	"futures-sentinel/internal/worker"
)

// ErrScanInProgress is returned when a run is requested while another run is
// in flight. Callers can treat it as "try again shortly" rather than a fault.
var ErrScanInProgress = errors.New("scan already in progress")

const scanTimeout = 5 * time.Minute

// Orchestrator owns the scan loop. It is either Idle or Running; a second
// run request while Running fails fast instead of queuing.
type Orchestrator struct {
	marketData market.DataSource
	positions  market.PositionSource
	watchlist  WatchlistSource
	store      *LatestStore
	summarizer Summarizer // may be nil
	cfg        Config
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	nextRun time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOrchestrator wires a scan orchestrator. summarizer may be nil.
func NewOrchestrator(
	marketData market.DataSource,
	positions market.PositionSource,
	watchlist WatchlistSource,
	store *LatestStore,
	summarizer Summarizer,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		marketData: marketData,
		positions:  positions,
		watchlist:  watchlist,
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger.With().Str("component", "Scanner").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background scan loop
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go o.runLoop()
	o.logger.Info().Dur("interval", o.cfg.Interval).Msg("Scanner started")
}

// Stop gracefully shuts down the scan loop, waiting for an in-flight run
func (o *Orchestrator) Stop() {
	close(o.stopChan)
	o.wg.Wait()
	o.logger.Info().Msg("Scanner stopped")
}

// runLoop schedules each run a fixed interval after the previous one
// completes. A delayed run pushes subsequent runs back; there is no catch-up.
func (o *Orchestrator) runLoop() {
	defer o.wg.Done()

	for {
		if _, err := o.RunNow(); err != nil && !errors.Is(err, ErrScanInProgress) {
			o.logger.Error().Err(err).Msg("Scan run failed")
		}

		o.mu.Lock()
		o.nextRun = time.Now().Add(o.cfg.Interval)
		o.mu.Unlock()

		timer := time.NewTimer(o.cfg.Interval)
		select {
		case <-timer.C:
		case <-o.stopChan:
			timer.Stop()
			return
		}
	}
}

// RunNow executes a single scan. Returns ErrScanInProgress when a run is
// already in flight.
func (o *Orchestrator) RunNow() (*ScanResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrScanInProgress
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.lastRun = time.Now()
		o.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	return o.scan(ctx)
}

// Status is a pure read of the scheduling state
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{Running: o.running}
	if !o.lastRun.IsZero() {
		t := o.lastRun
		st.LastRunAt = &t
	}
	if !o.nextRun.IsZero() {
		t := o.nextRun
		st.NextRunAt = &t
	}
	return st
}

func (o *Orchestrator) scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	symbols := o.watchlist.GetSymbols()

	o.logger.Info().Int("symbols", len(symbols)).Msg("Starting scan")

	var mu sync.Mutex
	var all []setups.Candidate

	failures := worker.ForEach(ctx, symbols, o.cfg.Concurrency, func(ctx context.Context, symbol string) error {
		candidates, err := o.scanSymbol(ctx, symbol)
		if err != nil {
			return err
		}

		mu.Lock()
		all = append(all, candidates...)
		mu.Unlock()
		return nil
	})

	result := &ScanResult{
		RunAt:     start.UTC(),
		Watchlist: symbols,
		Results:   validCandidates(all),
	}
	for _, f := range failures {
		result.Errors = append(result.Errors, SymbolError{Symbol: f.Item, Message: f.Err.Error()})
	}

	// Completion order of the workers never leaks into output order
	sort.SliceStable(result.Results, func(i, j int) bool {
		return result.Results[i].Score > result.Results[j].Score
	})

	o.attachSizing(ctx, result)
	o.attachSummary(ctx, result)

	if err := o.store.Save(result); err != nil {
		return result, fmt.Errorf("failed to persist scan snapshot: %w", err)
	}

	o.logger.Info().
		Int("setups", len(result.Results)).
		Int("errors", len(result.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Scan completed")

	return result, nil
}

// scanSymbol classifies the higher-timeframe trend, then runs all detectors
// on each configured lower timeframe
func (o *Orchestrator) scanSymbol(ctx context.Context, symbol string) ([]setups.Candidate, error) {
	trendKlines, err := o.marketData.GetKlines(ctx, symbol, o.cfg.TrendTimeframe, o.cfg.TrendCandleLimit)
	if err != nil {
		return nil, fmt.Errorf("trend klines: %w", err)
	}
	trend := analysis.ClassifyTrend(trendKlines)

	detectorCfg := setups.Config{
		TargetROIPct: o.cfg.TargetROIPct,
		MaxLeverage:  o.cfg.MaxLeverage,
	}

	var out []setups.Candidate
	for _, timeframe := range o.cfg.Timeframes {
		klines, err := o.marketData.GetKlines(ctx, symbol, timeframe, o.cfg.CandleLimit)
		if err != nil {
			return nil, fmt.Errorf("%s klines: %w", timeframe, err)
		}

		snap := indicators.Compute(klines)
		out = append(out, setups.DetectAll(symbol, timeframe, trend, klines, snap, detectorCfg)...)
	}

	return out, nil
}

// attachSizing sizes each setup against the live wallet balance; when the
// balance is unavailable the setups are returned unsized
func (o *Orchestrator) attachSizing(ctx context.Context, result *ScanResult) {
	if o.positions == nil || o.cfg.RiskPerTradePct <= 0 {
		return
	}

	equity, err := o.positions.GetWalletBalance(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Wallet balance unavailable, setups returned unsized")
		return
	}
	if equity <= 0 {
		return
	}

	for i := range result.Results {
		c := &result.Results[i]
		size, err := sizing.Compute(sizing.Input{
			WalletEquity: equity,
			RiskPct:      o.cfg.RiskPerTradePct,
			Entry:        c.Entry,
			StopLoss:     c.StopLoss,
			TakeProfit:   c.TakeProfit,
			MaxLeverage:  o.cfg.MaxLeverage,
		})
		if err != nil {
			continue
		}
		c.Sizing = size
	}
}

// attachSummary asks the optional summarizer for a narrative over the top
// setups. Failure is logged and ignored.
func (o *Orchestrator) attachSummary(ctx context.Context, result *ScanResult) {
	if o.summarizer == nil || len(result.Results) == 0 {
		return
	}

	top := result.Results
	if o.cfg.TopSummaryCount > 0 && len(top) > o.cfg.TopSummaryCount {
		top = top[:o.cfg.TopSummaryCount]
	}

	summary, err := o.summarizer.SummarizeSetups(ctx, top)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Narrative summary failed")
		return
	}
	result.Summary = summary
}

// validCandidates drops candidates with non-finite numbers or broken
// direction invariants. Upstream data quality issues surface here, not as
// user-facing errors.
func validCandidates(candidates []setups.Candidate) []setups.Candidate {
	out := make([]setups.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.IsValid() {
			out = append(out, c)
		}
	}
	return out
}
