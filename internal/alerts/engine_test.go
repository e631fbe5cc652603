package alerts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"futures-sentinel/internal/market"
	"futures-sentinel/internal/scanner"
	"futures-sentinel/internal/setups"
)

type fakePositions struct {
	positions []market.Position
	orders    map[string][]market.Order
}

func (f *fakePositions) GetOpenPositions(ctx context.Context) ([]market.Position, error) {
	return f.positions, nil
}

func (f *fakePositions) GetOpenOrders(ctx context.Context, symbol string) ([]market.Order, error) {
	return f.orders[symbol], nil
}

func (f *fakePositions) GetWalletBalance(ctx context.Context) (float64, error) {
	return 10000, nil
}

type fakeMarket struct {
	prices map[string]float64
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMarket) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return p, nil
}

func testConfig() Config {
	return Config{
		TickInterval:            30 * time.Second,
		DedupeWindow:            30 * time.Minute,
		LiquidationThresholdPct: 5,
		StopProximityPct:        0.5,
		TakeProfitProximityPct:  0.6,
		EntryZoneTolerancePct:   0.2,
		TopSetupsCount:          5,
		NewSetupsEnabled:        true,
	}
}

func newTestEngine(t *testing.T, positions market.PositionSource, marketData market.DataSource, cfg Config) (*Engine, *Store, *scanner.LatestStore) {
	t.Helper()
	dir := t.TempDir()

	store, err := NewStore(filepath.Join(dir, "alerts.json"), 1000)
	if err != nil {
		t.Fatal(err)
	}
	latest := scanner.NewLatestStore(filepath.Join(dir, "latest.json"))

	if positions == nil {
		positions = &fakePositions{}
	}
	if marketData == nil {
		marketData = &fakeMarket{}
	}

	return NewEngine(positions, marketData, latest, store, nil, cfg, zerolog.Nop()), store, latest
}

func alertsOfType(store *Store, typ Type) []*Alert {
	var out []*Alert
	for _, a := range store.List(0, false) {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestLiquidationRiskFiresInsideThreshold(t *testing.T) {
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "BTCUSDT",
		PositionAmt:      0.5,
		MarkPrice:        100,
		LiquidationPrice: 96, // 4% away, inside the 5% threshold
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	got := alertsOfType(store, TypeLiquidationRisk)
	if len(got) != 1 {
		t.Fatalf("expected one liquidation alert, got %d", len(got))
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("liquidation risk should be CRITICAL, got %s", got[0].Severity)
	}
	if got[0].Symbol != "BTCUSDT" {
		t.Errorf("alert should carry the symbol, got %q", got[0].Symbol)
	}
}

func TestLiquidationRiskSilentOutsideThreshold(t *testing.T) {
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "BTCUSDT",
		PositionAmt:      0.5,
		MarkPrice:        100,
		LiquidationPrice: 90, // 10% away
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	if got := alertsOfType(store, TypeLiquidationRisk); len(got) != 0 {
		t.Errorf("a 10%% distance should not alert, got %d", len(got))
	}
}

func TestLiquidationRiskShortDirection(t *testing.T) {
	// SHORT: liquidation sits above mark, signed distance = (liq-mark)/mark
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "ETHUSDT",
		PositionAmt:      -2,
		MarkPrice:        100,
		LiquidationPrice: 103,
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	if got := alertsOfType(store, TypeLiquidationRisk); len(got) != 1 {
		t.Fatalf("short 3%% from liquidation should alert, got %d", len(got))
	}
}

func TestDedupeSuppressesWithinWindow(t *testing.T) {
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "BTCUSDT",
		PositionAmt:      0.5,
		MarkPrice:        100,
		LiquidationPrice: 96,
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()
	engine.Tick()
	engine.Tick()

	if got := alertsOfType(store, TypeLiquidationRisk); len(got) != 1 {
		t.Errorf("repeated ticks within the dedupe window must raise once, got %d", len(got))
	}
}

func TestDedupeReArmsAfterWindow(t *testing.T) {
	cfg := testConfig()
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "BTCUSDT",
		PositionAmt:      0.5,
		MarkPrice:        100,
		LiquidationPrice: 96,
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, cfg)

	engine.Tick()

	// Age the stored alert past the window, then tick again
	existing := store.FindRecent("LIQUIDATION_RISK:BTCUSDT:LONG", cfg.DedupeWindow)
	if existing == nil {
		t.Fatal("first tick should have raised the alert")
	}
	existing.CreatedAt = time.Now().Add(-cfg.DedupeWindow - time.Minute)

	engine.Tick()

	if got := alertsOfType(store, TypeLiquidationRisk); len(got) != 2 {
		t.Errorf("the alert should re-arm after the dedupe window, got %d", len(got))
	}
}

func TestStopProximityPicksNearestProtectiveOrder(t *testing.T) {
	positions := &fakePositions{
		positions: []market.Position{{
			Symbol:      "BTCUSDT",
			PositionAmt: 0.5,
			MarkPrice:   100,
		}},
		orders: map[string][]market.Order{"BTCUSDT": {
			{Symbol: "BTCUSDT", OrderID: 1, Side: "SELL", Type: market.OrderTypeStopMarket, StopPrice: 95, ReduceOnly: true},
			{Symbol: "BTCUSDT", OrderID: 2, Side: "SELL", Type: market.OrderTypeStopMarket, StopPrice: 99.7, ReduceOnly: true},
			// Entry-side order, must be ignored
			{Symbol: "BTCUSDT", OrderID: 3, Side: "BUY", Type: market.OrderTypeStopMarket, StopPrice: 99.9, ReduceOnly: true},
		}},
	}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	got := alertsOfType(store, TypeStopProximity)
	if len(got) != 1 {
		t.Fatalf("expected one stop proximity alert, got %d", len(got))
	}
	if got[0].Severity != SeverityWarn {
		t.Errorf("stop proximity should be WARN, got %s", got[0].Severity)
	}
	if got[0].Metadata["order_id"] != int64(2) {
		t.Errorf("alert should reference the nearest closing-side stop, got %v", got[0].Metadata["order_id"])
	}
}

func TestTakeProfitProximity(t *testing.T) {
	positions := &fakePositions{
		positions: []market.Position{{
			Symbol:      "BTCUSDT",
			PositionAmt: 0.5,
			MarkPrice:   100,
		}},
		orders: map[string][]market.Order{"BTCUSDT": {
			{Symbol: "BTCUSDT", OrderID: 7, Side: "SELL", Type: market.OrderTypeTakeProfitMarket, StopPrice: 100.4, ReduceOnly: true},
		}},
	}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	got := alertsOfType(store, TypeTakeProfitNear)
	if len(got) != 1 {
		t.Fatalf("expected one take-profit proximity alert, got %d", len(got))
	}
	if got[0].Severity != SeverityInfo {
		t.Errorf("take-profit proximity should be INFO, got %s", got[0].Severity)
	}
}

func TestNewSetupsDigestOncePerScanRun(t *testing.T) {
	engine, store, latest := newTestEngine(t, nil, nil, testConfig())

	runAt := time.Now().UTC().Truncate(time.Second)
	latest.Save(&scanner.ScanResult{
		RunAt: runAt,
		Results: []setups.Candidate{{
			Symbol: "BTCUSDT", Timeframe: "1h", Strategy: setups.StrategyContinuation,
			Direction: setups.DirectionLong, Score: 80, Entry: 100, StopLoss: 98, TakeProfit: 104,
		}},
	})

	engine.Tick()
	engine.Tick()

	if got := alertsOfType(store, TypeNewSetups); len(got) != 1 {
		t.Errorf("one scan run should produce exactly one digest, got %d", len(got))
	}

	// A newer scan run re-arms the digest
	latest.Save(&scanner.ScanResult{
		RunAt: runAt.Add(time.Hour),
		Results: []setups.Candidate{{
			Symbol: "BTCUSDT", Timeframe: "1h", Strategy: setups.StrategyContinuation,
			Direction: setups.DirectionLong, Score: 75, Entry: 101, StopLoss: 99, TakeProfit: 105,
		}},
	})
	engine.Tick()

	if got := alertsOfType(store, TypeNewSetups); len(got) != 2 {
		t.Errorf("a new scan run should raise a new digest, got %d", len(got))
	}
}

func TestEntryZoneAlertWhenMarkInsideZone(t *testing.T) {
	cfg := testConfig()
	cfg.NewSetupsEnabled = false
	marketData := &fakeMarket{prices: map[string]float64{"BTCUSDT": 100.02}}
	engine, store, latest := newTestEngine(t, nil, marketData, cfg)

	latest.Save(&scanner.ScanResult{
		RunAt: time.Now().UTC(),
		Results: []setups.Candidate{{
			Symbol: "BTCUSDT", Timeframe: "1h", Strategy: setups.StrategyBreakoutRetest,
			Direction: setups.DirectionLong, Score: 80, Entry: 100, StopLoss: 98, TakeProfit: 104,
			EntryZone: &setups.PriceZone{Low: 99.9, High: 100.1},
		}},
	})

	engine.Tick()

	got := alertsOfType(store, TypeEntryZone)
	if len(got) != 1 {
		t.Fatalf("mark inside the entry zone should alert, got %d", len(got))
	}
	if got[0].Symbol != "BTCUSDT" {
		t.Errorf("alert should carry the symbol, got %q", got[0].Symbol)
	}
}

func TestEntryZoneSilentWhenMarkOutsideZone(t *testing.T) {
	cfg := testConfig()
	cfg.NewSetupsEnabled = false
	marketData := &fakeMarket{prices: map[string]float64{"BTCUSDT": 103}}
	engine, store, latest := newTestEngine(t, nil, marketData, cfg)

	latest.Save(&scanner.ScanResult{
		RunAt: time.Now().UTC(),
		Results: []setups.Candidate{{
			Symbol: "BTCUSDT", Timeframe: "1h", Strategy: setups.StrategyBreakoutRetest,
			Direction: setups.DirectionLong, Score: 80, Entry: 100, StopLoss: 98, TakeProfit: 104,
			EntryZone: &setups.PriceZone{Low: 99.9, High: 100.1},
		}},
	})

	engine.Tick()

	if got := alertsOfType(store, TypeEntryZone); len(got) != 0 {
		t.Errorf("mark outside the entry zone must not alert, got %d", len(got))
	}
}

func TestFlatPositionsRaiseNothing(t *testing.T) {
	positions := &fakePositions{positions: []market.Position{{
		Symbol:           "BTCUSDT",
		PositionAmt:      0,
		MarkPrice:        100,
		LiquidationPrice: 99,
	}}}
	engine, store, _ := newTestEngine(t, positions, nil, testConfig())

	engine.Tick()

	if store.Count() != 0 {
		t.Errorf("flat positions should raise no alerts, got %d", store.Count())
	}
}
