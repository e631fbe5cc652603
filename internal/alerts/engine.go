// Package alerts implements the alert engine: a fixed timer that evaluates
// threshold rules over live positions and the latest scan snapshot, raises
// deduplicated alerts, persists them and forwards them best-effort to the
// configured notification channels.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"futures-sentinel/internal/market"
	"futures-sentinel/internal/scanner"
	"futures-sentinel/internal/setups"
)

const tickTimeout = 60 * time.Second

// entryZoneTopCap bounds how many setups the entry-zone rule prices per tick
const entryZoneTopCap = 10

// Config holds the alert engine tunables. Values arrive already clamped by
// the config loader.
type Config struct {
	TickInterval            time.Duration
	DedupeWindow            time.Duration
	LiquidationThresholdPct float64 // distance-to-liquidation, percent of mark
	StopProximityPct        float64
	TakeProfitProximityPct  float64
	EntryZoneTolerancePct   float64 // band around a single entry price, percent of mark
	TopSetupsCount          int
	NewSetupsEnabled        bool
}

// Engine evaluates alert rules on a timer. It is either Idle or Ticking;
// a tick in progress suppresses the next one rather than queuing it.
type Engine struct {
	positions  market.PositionSource
	marketData market.DataSource
	latest     *scanner.LatestStore
	store      *Store
	sink       Sink // may be nil
	cfg        Config
	logger     zerolog.Logger

	// onAlert is invoked after an alert is persisted, for in-process
	// consumers like the websocket hub
	onAlert func(*Alert)

	mu      sync.Mutex
	ticking bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewEngine wires an alert engine. sink may be nil.
func NewEngine(
	positions market.PositionSource,
	marketData market.DataSource,
	latest *scanner.LatestStore,
	store *Store,
	sink Sink,
	cfg Config,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		positions:  positions,
		marketData: marketData,
		latest:     latest,
		store:      store,
		sink:       sink,
		cfg:        cfg,
		logger:     logger.With().Str("component", "AlertEngine").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// OnAlert registers a callback invoked after each persisted alert
func (e *Engine) OnAlert(fn func(*Alert)) {
	e.onAlert = fn
}

// Start begins the tick loop
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.runLoop()
	e.logger.Info().Dur("interval", e.cfg.TickInterval).Msg("Alert engine started")
}

// Stop gracefully shuts down the tick loop
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
	e.logger.Info().Msg("Alert engine stopped")
}

func (e *Engine) runLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.Tick()

	for {
		select {
		case <-ticker.C:
			e.Tick()
		case <-e.stopChan:
			return
		}
	}
}

// Tick runs one evaluation cycle. A tick already in flight makes this a
// no-op rather than a concurrent second tick.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.ticking {
		e.mu.Unlock()
		return
	}
	e.ticking = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.ticking = false
		e.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	// The two passes are independent: a failure in one never blocks the other
	if err := e.checkScanAlerts(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Scanner-derived alert pass failed")
	}
	if err := e.checkPositionAlerts(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Position-derived alert pass failed")
	}
}

// ==================== SCANNER-DERIVED RULES ====================

func (e *Engine) checkScanAlerts(ctx context.Context) error {
	snapshot, err := e.latest.Load()
	if err != nil {
		if errors.Is(err, scanner.ErrNoSnapshot) {
			return nil
		}
		return fmt.Errorf("loading scan snapshot: %w", err)
	}
	if len(snapshot.Results) == 0 {
		return nil
	}

	if e.cfg.NewSetupsEnabled {
		e.checkNewSetups(snapshot)
	}
	e.checkEntryZones(ctx, snapshot)
	return nil
}

// checkNewSetups raises one digest alert per scan run, keyed by the run
// timestamp so repeated ticks over the same snapshot stay silent
func (e *Engine) checkNewSetups(snapshot *scanner.ScanResult) {
	top := snapshot.Results
	if e.cfg.TopSetupsCount > 0 && len(top) > e.cfg.TopSetupsCount {
		top = top[:e.cfg.TopSetupsCount]
	}

	var lines []string
	for _, c := range top {
		lines = append(lines, fmt.Sprintf("%s %s %s %s score %.0f entry %.6g",
			c.Symbol, c.Timeframe, c.Strategy, c.Direction, c.Score, c.Entry))
	}

	e.raise(&Alert{
		Type:      TypeNewSetups,
		Severity:  SeverityInfo,
		Title:     fmt.Sprintf("Scan found %d setups", len(snapshot.Results)),
		Message:   strings.Join(lines, "\n"),
		DedupeKey: fmt.Sprintf("%s:%d", TypeNewSetups, snapshot.RunAt.Unix()),
		Metadata:  map[string]interface{}{"run_at": snapshot.RunAt, "setups": len(snapshot.Results)},
	})
}

// checkEntryZones prices the top setups and alerts when the mark enters a
// setup's entry zone. The key ties the alert to the specific scan's specific
// setup: re-touches within one scan cycle stay silent, a new scan re-arms.
func (e *Engine) checkEntryZones(ctx context.Context, snapshot *scanner.ScanResult) {
	top := snapshot.Results
	if len(top) > entryZoneTopCap {
		top = top[:entryZoneTopCap]
	}

	for _, c := range top {
		price, err := e.marketData.GetMarkPrice(ctx, c.Symbol)
		if err != nil {
			e.logger.Debug().Err(err).Str("symbol", c.Symbol).Msg("Mark price unavailable for entry-zone check")
			continue
		}

		if !e.inEntryZone(c, price) {
			continue
		}

		e.raise(&Alert{
			Type:     TypeEntryZone,
			Severity: SeverityInfo,
			Title:    fmt.Sprintf("%s entry zone touched", c.Symbol),
			Message: fmt.Sprintf("%s %s %s: mark %.6g is inside the entry zone of the %.0f-scored setup (entry %.6g)",
				c.Symbol, c.Timeframe, c.Strategy, price, c.Score, c.Entry),
			Symbol:    c.Symbol,
			DedupeKey: fmt.Sprintf("%s:%d:%s:%s:%s", TypeEntryZone, snapshot.RunAt.Unix(), c.Symbol, c.Timeframe, c.Strategy),
			Metadata:  map[string]interface{}{"mark_price": price, "entry": c.Entry, "strategy": string(c.Strategy)},
		})
	}
}

func (e *Engine) inEntryZone(c setups.Candidate, price float64) bool {
	if c.EntryZone != nil {
		return price >= c.EntryZone.Low && price <= c.EntryZone.High
	}
	tolerance := price * e.cfg.EntryZoneTolerancePct / 100
	return price >= c.Entry-tolerance && price <= c.Entry+tolerance
}

// ==================== POSITION-DERIVED RULES ====================

func (e *Engine) checkPositionAlerts(ctx context.Context) error {
	positions, err := e.positions.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}

	for _, p := range positions {
		if p.IsFlat() {
			continue
		}

		e.checkLiquidationRisk(p)

		orders, err := e.positions.GetOpenOrders(ctx, p.Symbol)
		if err != nil {
			e.logger.Debug().Err(err).Str("symbol", p.Symbol).Msg("Open orders unavailable for proximity checks")
			continue
		}
		e.checkStopProximity(p, orders)
		e.checkTakeProfitProximity(p, orders)
	}

	return nil
}

// checkLiquidationRisk alerts when the signed distance to liquidation falls
// under the threshold. The key omits the scan cycle, so the alert re-arms
// after the dedupe window while the danger persists.
func (e *Engine) checkLiquidationRisk(p market.Position) {
	if p.LiquidationPrice <= 0 || p.MarkPrice <= 0 {
		return
	}

	var distancePct float64
	if p.Side() == "LONG" {
		distancePct = (p.MarkPrice - p.LiquidationPrice) / p.MarkPrice * 100
	} else {
		distancePct = (p.LiquidationPrice - p.MarkPrice) / p.MarkPrice * 100
	}

	if distancePct > e.cfg.LiquidationThresholdPct {
		return
	}

	e.raise(&Alert{
		Type:     TypeLiquidationRisk,
		Severity: SeverityCritical,
		Title:    fmt.Sprintf("%s %s near liquidation", p.Symbol, p.Side()),
		Message: fmt.Sprintf("Mark %.6g is %.2f%% from liquidation at %.6g",
			p.MarkPrice, distancePct, p.LiquidationPrice),
		Symbol:    p.Symbol,
		DedupeKey: fmt.Sprintf("%s:%s:%s", TypeLiquidationRisk, p.Symbol, p.Side()),
		Metadata: map[string]interface{}{
			"mark_price":        p.MarkPrice,
			"liquidation_price": p.LiquidationPrice,
			"distance_pct":      distancePct,
		},
	})
}

// checkStopProximity alerts when the mark approaches the nearest reduce-only
// stop order on the closing side of the position
func (e *Engine) checkStopProximity(p market.Position, orders []market.Order) {
	order, distancePct := nearestProtective(p, orders, func(o market.Order) bool { return o.IsStopOrder() })
	if order == nil || distancePct > e.cfg.StopProximityPct {
		return
	}

	e.raise(&Alert{
		Type:     TypeStopProximity,
		Severity: SeverityWarn,
		Title:    fmt.Sprintf("%s approaching stop", p.Symbol),
		Message: fmt.Sprintf("Mark %.6g is %.2f%% from stop order at %.6g",
			p.MarkPrice, distancePct, order.TriggerPrice()),
		Symbol:    p.Symbol,
		DedupeKey: fmt.Sprintf("%s:%s:%d", TypeStopProximity, p.Symbol, order.OrderID),
		Metadata:  map[string]interface{}{"order_id": order.OrderID, "stop_price": order.TriggerPrice()},
	})
}

// checkTakeProfitProximity is the symmetric rule over reduce-only limit and
// take-profit orders
func (e *Engine) checkTakeProfitProximity(p market.Position, orders []market.Order) {
	order, distancePct := nearestProtective(p, orders, func(o market.Order) bool {
		return !o.IsStopOrder() && o.IsTakeProfitOrder()
	})
	if order == nil || distancePct > e.cfg.TakeProfitProximityPct {
		return
	}

	e.raise(&Alert{
		Type:     TypeTakeProfitNear,
		Severity: SeverityInfo,
		Title:    fmt.Sprintf("%s approaching take-profit", p.Symbol),
		Message: fmt.Sprintf("Mark %.6g is %.2f%% from take-profit order at %.6g",
			p.MarkPrice, distancePct, order.TriggerPrice()),
		Symbol:    p.Symbol,
		DedupeKey: fmt.Sprintf("%s:%s:%d", TypeTakeProfitNear, p.Symbol, order.OrderID),
		Metadata:  map[string]interface{}{"order_id": order.OrderID, "target_price": order.TriggerPrice()},
	})
}

// nearestProtective finds the reduce-only order on the closing side of the
// position that matches the filter and sits nearest to the mark, returning
// its distance as a percent of mark price
func nearestProtective(p market.Position, orders []market.Order, match func(market.Order) bool) (*market.Order, float64) {
	closingSide := "SELL"
	if p.Side() == "SHORT" {
		closingSide = "BUY"
	}

	var nearest *market.Order
	nearestPct := 0.0
	for i := range orders {
		o := orders[i]
		if o.Side != closingSide || !(o.ReduceOnly || o.ClosePosition) || !match(o) {
			continue
		}
		trigger := o.TriggerPrice()
		if trigger <= 0 || p.MarkPrice <= 0 {
			continue
		}

		pct := abs(trigger-p.MarkPrice) / p.MarkPrice * 100
		if nearest == nil || pct < nearestPct {
			nearest = &orders[i]
			nearestPct = pct
		}
	}

	return nearest, nearestPct
}

// ==================== CREATION ====================

// raise creates an alert unless a duplicate exists within the dedupe window.
// Persistence is the source of truth; notification failures are logged and
// never roll the alert back.
func (e *Engine) raise(alert *Alert) {
	if existing := e.store.FindRecent(alert.DedupeKey, e.cfg.DedupeWindow); existing != nil {
		e.logger.Debug().Str("dedupe_key", alert.DedupeKey).Msg("Alert suppressed by dedupe window")
		return
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = time.Now().UTC()

	if err := e.store.Append(alert); err != nil {
		e.logger.Error().Err(err).Str("type", string(alert.Type)).Msg("Failed to persist alert")
		return
	}

	e.logger.Info().
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Str("symbol", alert.Symbol).
		Msg(alert.Title)

	if e.sink != nil {
		if err := e.sink.Send(alert); err != nil {
			e.logger.Warn().Err(err).Str("type", string(alert.Type)).Msg("Notification delivery failed")
		}
	}

	if e.onAlert != nil {
		e.onAlert(alert)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
