package market

import "context"

// DataSource provides public market data (no API keys required)
type DataSource interface {
	// GetKlines fetches up to limit candles for symbol at the given interval
	// (e.g. "15m", "1h", "4h"), oldest first
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)

	// GetMarkPrice fetches the current mark price for symbol
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// PositionSource provides account data. Implementations must return empty
// results (not errors) when the exchange integration is unconfigured so the
// rest of the system degrades gracefully.
type PositionSource interface {
	GetOpenPositions(ctx context.Context) ([]Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	GetWalletBalance(ctx context.Context) (float64, error)
}
