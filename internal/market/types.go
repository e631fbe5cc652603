package market

// ==================== KLINES ====================

// Kline represents a single candlestick from the futures klines endpoint.
// Sequences are ordered by strictly increasing OpenTime and are never
// mutated after fetch.
type Kline struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// IsBullish returns true when the candle closed above its open
func (k Kline) IsBullish() bool {
	return k.Close > k.Open
}

// IsBearish returns true when the candle closed below its open
func (k Kline) IsBearish() bool {
	return k.Close < k.Open
}

// ==================== POSITIONS ====================

// Position represents an open futures position from the positionRisk endpoint
type Position struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"positionAmt,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	MarkPrice        float64 `json:"markPrice,string"`
	UnrealizedProfit float64 `json:"unRealizedProfit,string"`
	LiquidationPrice float64 `json:"liquidationPrice,string"`
	Leverage         int     `json:"leverage,string"`
	MarginType       string  `json:"marginType"`
	PositionSide     string  `json:"positionSide"`
	UpdateTime       int64   `json:"updateTime"`
}

// IsFlat returns true when the position has no exposure
func (p Position) IsFlat() bool {
	return p.PositionAmt == 0
}

// Side returns "LONG" or "SHORT" derived from the signed position amount
func (p Position) Side() string {
	if p.PositionAmt < 0 {
		return "SHORT"
	}
	return "LONG"
}

// ==================== ORDERS ====================

// Order type constants for futures TP/SL orders
const (
	OrderTypeLimit            = "LIMIT"
	OrderTypeMarket           = "MARKET"
	OrderTypeStop             = "STOP"
	OrderTypeStopMarket       = "STOP_MARKET"
	OrderTypeTakeProfit       = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"
)

// Order represents an open futures order
type Order struct {
	Symbol        string  `json:"symbol"`
	OrderID       int64   `json:"orderId"`
	Side          string  `json:"side"` // BUY or SELL
	PositionSide  string  `json:"positionSide"`
	Type          string  `json:"type"`
	Price         float64 `json:"price,string"`
	StopPrice     float64 `json:"stopPrice,string"`
	OrigQty       float64 `json:"origQty,string"`
	ReduceOnly    bool    `json:"reduceOnly"`
	ClosePosition bool    `json:"closePosition"`
	Status        string  `json:"status"`
	UpdateTime    int64   `json:"updateTime"`
}

// IsStopOrder returns true for stop-loss style order types
func (o Order) IsStopOrder() bool {
	return o.Type == OrderTypeStop || o.Type == OrderTypeStopMarket
}

// IsTakeProfitOrder returns true for take-profit style order types.
// Reduce-only limit orders are how many traders park profit targets,
// so they count too.
func (o Order) IsTakeProfitOrder() bool {
	return o.Type == OrderTypeTakeProfit || o.Type == OrderTypeTakeProfitMarket || o.Type == OrderTypeLimit
}

// TriggerPrice returns the price level at which the order becomes active
func (o Order) TriggerPrice() float64 {
	if o.StopPrice > 0 {
		return o.StopPrice
	}
	return o.Price
}
