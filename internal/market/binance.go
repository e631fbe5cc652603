package market

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// FuturesBaseURL is the production Binance USD-M Futures API URL
	FuturesBaseURL = "https://fapi.binance.com"
	// FuturesTestnetURL is the testnet Binance USD-M Futures API URL
	FuturesTestnetURL = "https://testnet.binancefuture.com"

	recvWindowMillis = 5000
)

// BinanceClient talks to the Binance USD-M futures REST API. Public market
// data works without credentials; account endpoints require an API key and
// secret, and degrade to empty results when they are missing.
type BinanceClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewBinanceClient creates a futures REST client. Empty keys are valid and
// leave the client in public-data-only mode.
func NewBinanceClient(apiKey, secretKey string, testnet bool, logger zerolog.Logger) *BinanceClient {
	baseURL := FuturesBaseURL
	if testnet {
		baseURL = FuturesTestnetURL
	}

	// Trim whitespace from keys - stray newlines break signature generation
	return &BinanceClient{
		apiKey:     strings.TrimSpace(apiKey),
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "BinanceClient").Logger(),
	}
}

// SetBaseURL overrides the API base URL, for proxies and regional mirrors
func (c *BinanceClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Configured returns true when account credentials are present
func (c *BinanceClient) Configured() bool {
	return c.apiKey != "" && c.secretKey != ""
}

// ==================== MARKET DATA ====================

// GetKlines fetches candlesticks for a symbol, oldest first
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.publicGet(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines for %s %s: %w", symbol, interval, err)
	}

	// Binance returns klines as arrays of mixed types
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing klines for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		k := Kline{
			OpenTime:  int64(asFloat(row[0])),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
			Volume:    parseFloat(row[5]),
			CloseTime: int64(asFloat(row[6])),
		}
		klines = append(klines, k)
	}

	return klines, nil
}

// GetMarkPrice fetches the current mark price for a symbol
func (c *BinanceClient) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.publicGet(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching mark price for %s: %w", symbol, err)
	}

	var result struct {
		MarkPrice float64 `json:"markPrice,string"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("error parsing mark price for %s: %w", symbol, err)
	}

	return result.MarkPrice, nil
}

// ==================== ACCOUNT ====================

// GetOpenPositions returns all non-flat positions. Unconfigured credentials
// yield an empty slice, not an error.
func (c *BinanceClient) GetOpenPositions(ctx context.Context) ([]Position, error) {
	if !c.Configured() {
		return nil, nil
	}

	body, err := c.signedGet(ctx, "/fapi/v2/positionRisk", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("error fetching positions: %w", err)
	}

	var all []Position
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("error parsing positions: %w", err)
	}

	open := make([]Position, 0, len(all))
	for _, p := range all {
		if !p.IsFlat() {
			open = append(open, p)
		}
	}

	return open, nil
}

// GetOpenOrders returns the open orders for a symbol. Unconfigured
// credentials yield an empty slice, not an error.
func (c *BinanceClient) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	if !c.Configured() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.signedGet(ctx, "/fapi/v1/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching open orders for %s: %w", symbol, err)
	}

	var orders []Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("error parsing open orders for %s: %w", symbol, err)
	}

	return orders, nil
}

// GetWalletBalance returns the USDT wallet balance, or 0 when unconfigured
func (c *BinanceClient) GetWalletBalance(ctx context.Context) (float64, error) {
	if !c.Configured() {
		return 0, nil
	}

	body, err := c.signedGet(ctx, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return 0, fmt.Errorf("error fetching balance: %w", err)
	}

	var balances []struct {
		Asset   string  `json:"asset"`
		Balance float64 `json:"balance,string"`
	}
	if err := json.Unmarshal(body, &balances); err != nil {
		return 0, fmt.Errorf("error parsing balance: %w", err)
	}

	for _, b := range balances {
		if b.Asset == "USDT" {
			return b.Balance, nil
		}
	}

	return 0, nil
}

// ==================== HTTP PLUMBING ====================

func (c *BinanceClient) publicGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, path, params.Encode(), false)
}

// signedGet signs the encoded query and appends the signature as the final
// parameter. Binance verifies the signature against the query string that
// precedes it, so it must not be sorted in with the other parameters.
func (c *BinanceClient) signedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindowMillis))
	query := params.Encode()
	query += "&signature=" + c.sign(query)
	return c.do(ctx, path, query, true)
}

func (c *BinanceClient) do(ctx context.Context, path string, query string, signed bool) ([]byte, error) {
	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// sign produces the HMAC SHA256 signature Binance requires on account endpoints
func (c *BinanceClient) sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return asFloat(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
