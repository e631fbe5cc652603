package market

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type countingSource struct {
	klineCalls int
	priceCalls int
}

func (c *countingSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	c.klineCalls++
	return []Kline{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}, nil
}

func (c *countingSource) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	c.priceCalls++
	return 100.5, nil
}

func TestCachedKlinesHitMemoryFallback(t *testing.T) {
	src := &countingSource{}
	cached := NewCachedDataSource(src, nil, zerolog.Nop())
	ctx := context.Background()

	first, err := cached.GetKlines(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	second, err := cached.GetKlines(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("cached fetch failed: %v", err)
	}

	if src.klineCalls != 1 {
		t.Errorf("second call should be served from cache, upstream called %d times", src.klineCalls)
	}
	if len(first) != len(second) || first[0].Close != second[0].Close {
		t.Error("cached klines should match the original fetch")
	}
}

func TestCacheKeyIncludesIntervalAndLimit(t *testing.T) {
	src := &countingSource{}
	cached := NewCachedDataSource(src, nil, zerolog.Nop())
	ctx := context.Background()

	cached.GetKlines(ctx, "BTCUSDT", "1h", 100)
	cached.GetKlines(ctx, "BTCUSDT", "15m", 100)
	cached.GetKlines(ctx, "BTCUSDT", "1h", 200)

	if src.klineCalls != 3 {
		t.Errorf("different interval or limit must miss the cache, upstream called %d times", src.klineCalls)
	}
}

func TestCachedMarkPrice(t *testing.T) {
	src := &countingSource{}
	cached := NewCachedDataSource(src, nil, zerolog.Nop())
	ctx := context.Background()

	p1, _ := cached.GetMarkPrice(ctx, "BTCUSDT")
	p2, _ := cached.GetMarkPrice(ctx, "BTCUSDT")

	if src.priceCalls != 1 {
		t.Errorf("second price call should be served from cache, upstream called %d times", src.priceCalls)
	}
	if p1 != 100.5 || p2 != 100.5 {
		t.Errorf("cached price mismatch: %v vs %v", p1, p2)
	}
}

func TestPositionSide(t *testing.T) {
	long := Position{PositionAmt: 0.5}
	short := Position{PositionAmt: -0.5}
	flat := Position{PositionAmt: 0}

	if long.Side() != "LONG" || short.Side() != "SHORT" {
		t.Error("side should derive from the sign of the position amount")
	}
	if long.IsFlat() || short.IsFlat() || !flat.IsFlat() {
		t.Error("only a zero position amount is flat")
	}
}

func TestOrderHelpers(t *testing.T) {
	stop := Order{Type: OrderTypeStopMarket, StopPrice: 95}
	tp := Order{Type: OrderTypeTakeProfitMarket, StopPrice: 110}
	limit := Order{Type: OrderTypeLimit, Price: 108, ReduceOnly: true}

	if !stop.IsStopOrder() || stop.IsTakeProfitOrder() {
		t.Error("STOP_MARKET should classify as a stop order only")
	}
	if !tp.IsTakeProfitOrder() || tp.IsStopOrder() {
		t.Error("TAKE_PROFIT_MARKET should classify as a take-profit order only")
	}
	if !limit.IsTakeProfitOrder() {
		t.Error("a reduce-only LIMIT order should count as a take-profit")
	}

	if stop.TriggerPrice() != 95 {
		t.Errorf("trigger should prefer the stop price, got %v", stop.TriggerPrice())
	}
	if limit.TriggerPrice() != 108 {
		t.Errorf("trigger should fall back to the limit price, got %v", limit.TriggerPrice())
	}
}
