// Package config loads the application configuration from an optional JSON
// file plus environment variable overrides. Every numeric option is clamped
// to a sane range at load time; clamping produces warnings, not failures.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BinanceConfig      BinanceConfig      `json:"binance"`
	ScannerConfig      ScannerConfig      `json:"scanner"`
	AlertsConfig       AlertsConfig       `json:"alerts"`
	RiskConfig         RiskConfig         `json:"risk"`
	NotificationConfig NotificationConfig `json:"notification"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	StorageConfig      StorageConfig      `json:"storage"`
}

// BinanceConfig holds exchange connectivity. Keys are optional: without them
// the app runs in market-data-only mode and position alerts stay silent.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
}

type ScannerConfig struct {
	Enabled          bool     `json:"enabled"`
	IntervalSec      int      `json:"interval_sec"`       // Seconds between scan completions
	Timeframes       []string `json:"timeframes"`         // Lower timeframes the detectors run on
	TrendTimeframe   string   `json:"trend_timeframe"`    // Higher timeframe for trend classification
	CandleLimit      int      `json:"candle_limit"`       // Bars fetched per lower timeframe
	TrendCandleLimit int      `json:"trend_candle_limit"` // Bars fetched for trend classification
	Concurrency      int      `json:"concurrency"`        // Worker-pool width
	TopSummaryCount  int      `json:"top_summary_count"`  // Setups handed to the narrative summarizer
	DefaultWatchlist []string `json:"default_watchlist"`  // Seeds the watchlist store on first run
}

type AlertsConfig struct {
	TickSec                 int     `json:"tick_sec"`
	DedupeWindowMin         int     `json:"dedupe_window_min"`
	LiquidationThresholdPct float64 `json:"liquidation_threshold_pct"`
	StopProximityPct        float64 `json:"stop_proximity_pct"`
	TakeProfitProximityPct  float64 `json:"take_profit_proximity_pct"`
	EntryZoneTolerancePct   float64 `json:"entry_zone_tolerance_pct"`
	TopSetupsCount          int     `json:"top_setups_count"`
	MaxStoredAlerts         int     `json:"max_stored_alerts"`
	NewSetupsEnabled        bool    `json:"new_setups_enabled"`
}

type RiskConfig struct {
	RiskPerTradePct float64 `json:"risk_per_trade_pct"` // Percent of equity risked per setup
	TargetROIPct    float64 `json:"target_roi_pct"`     // Leveraged ROI target used for take-profits
	MaxLeverage     float64 `json:"max_leverage"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// RedisConfig enables the market-data cache. Disabled falls back to the
// in-process cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // "json" or "console"
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// Clamp bounds. Out-of-range values are pulled to the nearest bound with a
// warning rather than rejected.
const (
	minScanIntervalSec = 60
	maxScanIntervalSec = 86400

	minAlertTickSec = 10
	maxAlertTickSec = 600

	minDedupeWindowMin = 1
	maxDedupeWindowMin = 24 * 60

	minConcurrency = 1
	maxConcurrency = 32

	minCandleLimit = 50
	maxCandleLimit = 1000

	minTrendCandleLimit = 260
	maxTrendCandleLimit = 1000

	minStoredAlerts = 100
	maxStoredAlerts = 20000

	minMaxLeverage = 1
	maxMaxLeverage = 125
)

var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true,
}

// Load reads the config file at path (missing file means defaults), applies
// environment overrides, then clamps. The returned warnings describe every
// value that was adjusted; callers surface them, not just log them.
func Load(path string) (*Config, []string, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	warnings := cfg.clamp()

	return cfg, warnings, nil
}

func defaults() *Config {
	return &Config{
		BinanceConfig: BinanceConfig{},
		ScannerConfig: ScannerConfig{
			Enabled:          true,
			IntervalSec:      900,
			Timeframes:       []string{"15m", "1h"},
			TrendTimeframe:   "4h",
			CandleLimit:      150,
			TrendCandleLimit: 300,
			Concurrency:      4,
			TopSummaryCount:  5,
			DefaultWatchlist: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		},
		AlertsConfig: AlertsConfig{
			TickSec:                 30,
			DedupeWindowMin:         30,
			LiquidationThresholdPct: 5.0,
			StopProximityPct:        0.5,
			TakeProfitProximityPct:  0.6,
			EntryZoneTolerancePct:   0.2,
			TopSetupsCount:          5,
			MaxStoredAlerts:         2000,
			NewSetupsEnabled:        true,
		},
		RiskConfig: RiskConfig{
			RiskPerTradePct: 1.0,
			TargetROIPct:    50.0,
			MaxLeverage:     20,
		},
		NotificationConfig: NotificationConfig{},
		RedisConfig: RedisConfig{
			Address: "localhost:6379",
		},
		ServerConfig: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  "*",
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		StorageConfig: StorageConfig{
			DataDir: "data",
		},
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.BinanceConfig.TestNet)

	cfg.ScannerConfig.Enabled = getEnvBoolOrDefault("SCANNER_ENABLED", cfg.ScannerConfig.Enabled)
	cfg.ScannerConfig.IntervalSec = getEnvIntOrDefault("SCAN_INTERVAL_SEC", cfg.ScannerConfig.IntervalSec)
	cfg.ScannerConfig.Concurrency = getEnvIntOrDefault("SCAN_CONCURRENCY", cfg.ScannerConfig.Concurrency)
	if v := os.Getenv("SCAN_TIMEFRAMES"); v != "" {
		cfg.ScannerConfig.Timeframes = splitCSV(v)
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.ScannerConfig.DefaultWatchlist = splitCSV(v)
	}

	cfg.AlertsConfig.TickSec = getEnvIntOrDefault("ALERT_TICK_SEC", cfg.AlertsConfig.TickSec)
	cfg.AlertsConfig.DedupeWindowMin = getEnvIntOrDefault("ALERT_DEDUPE_WINDOW_MIN", cfg.AlertsConfig.DedupeWindowMin)
	cfg.AlertsConfig.MaxStoredAlerts = getEnvIntOrDefault("MAX_STORED_ALERTS", cfg.AlertsConfig.MaxStoredAlerts)

	cfg.RiskConfig.RiskPerTradePct = getEnvFloatOrDefault("RISK_PER_TRADE_PCT", cfg.RiskConfig.RiskPerTradePct)
	cfg.RiskConfig.TargetROIPct = getEnvFloatOrDefault("TARGET_ROI_PCT", cfg.RiskConfig.TargetROIPct)
	cfg.RiskConfig.MaxLeverage = getEnvFloatOrDefault("MAX_LEVERAGE", cfg.RiskConfig.MaxLeverage)

	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", cfg.LoggingConfig.Format)

	cfg.StorageConfig.DataDir = getEnvOrDefault("DATA_DIR", cfg.StorageConfig.DataDir)
}

// clamp pulls every out-of-range value to its nearest bound and records a
// warning per adjustment
func (c *Config) clamp() []string {
	var warnings []string

	clampInt := func(name string, v *int, min, max int) {
		if *v < min {
			warnings = append(warnings, fmt.Sprintf("%s %d below minimum, clamped to %d", name, *v, min))
			*v = min
		} else if *v > max {
			warnings = append(warnings, fmt.Sprintf("%s %d above maximum, clamped to %d", name, *v, max))
			*v = max
		}
	}
	clampFloat := func(name string, v *float64, min, max float64) {
		if *v < min {
			warnings = append(warnings, fmt.Sprintf("%s %g below minimum, clamped to %g", name, *v, min))
			*v = min
		} else if *v > max {
			warnings = append(warnings, fmt.Sprintf("%s %g above maximum, clamped to %g", name, *v, max))
			*v = max
		}
	}

	clampInt("scanner.interval_sec", &c.ScannerConfig.IntervalSec, minScanIntervalSec, maxScanIntervalSec)
	clampInt("scanner.concurrency", &c.ScannerConfig.Concurrency, minConcurrency, maxConcurrency)
	clampInt("scanner.candle_limit", &c.ScannerConfig.CandleLimit, minCandleLimit, maxCandleLimit)
	clampInt("scanner.trend_candle_limit", &c.ScannerConfig.TrendCandleLimit, minTrendCandleLimit, maxTrendCandleLimit)
	clampInt("scanner.top_summary_count", &c.ScannerConfig.TopSummaryCount, 0, 50)

	valid := c.ScannerConfig.Timeframes[:0]
	for _, tf := range c.ScannerConfig.Timeframes {
		if validTimeframes[tf] {
			valid = append(valid, tf)
		} else {
			warnings = append(warnings, fmt.Sprintf("scanner.timeframes entry %q is not a recognized interval, dropped", tf))
		}
	}
	if len(valid) == 0 {
		warnings = append(warnings, "scanner.timeframes empty after validation, reset to 15m,1h")
		valid = []string{"15m", "1h"}
	}
	c.ScannerConfig.Timeframes = valid

	if !validTimeframes[c.ScannerConfig.TrendTimeframe] {
		warnings = append(warnings, fmt.Sprintf("scanner.trend_timeframe %q is not a recognized interval, reset to 4h", c.ScannerConfig.TrendTimeframe))
		c.ScannerConfig.TrendTimeframe = "4h"
	}

	clampInt("alerts.tick_sec", &c.AlertsConfig.TickSec, minAlertTickSec, maxAlertTickSec)
	clampInt("alerts.dedupe_window_min", &c.AlertsConfig.DedupeWindowMin, minDedupeWindowMin, maxDedupeWindowMin)
	clampInt("alerts.max_stored_alerts", &c.AlertsConfig.MaxStoredAlerts, minStoredAlerts, maxStoredAlerts)
	clampInt("alerts.top_setups_count", &c.AlertsConfig.TopSetupsCount, 1, 50)
	clampFloat("alerts.liquidation_threshold_pct", &c.AlertsConfig.LiquidationThresholdPct, 0.1, 50)
	clampFloat("alerts.stop_proximity_pct", &c.AlertsConfig.StopProximityPct, 0.05, 10)
	clampFloat("alerts.take_profit_proximity_pct", &c.AlertsConfig.TakeProfitProximityPct, 0.05, 10)
	clampFloat("alerts.entry_zone_tolerance_pct", &c.AlertsConfig.EntryZoneTolerancePct, 0.01, 5)

	clampFloat("risk.risk_per_trade_pct", &c.RiskConfig.RiskPerTradePct, 0.1, 10)
	clampFloat("risk.target_roi_pct", &c.RiskConfig.TargetROIPct, 1, 500)
	clampFloat("risk.max_leverage", &c.RiskConfig.MaxLeverage, minMaxLeverage, maxMaxLeverage)

	clampInt("server.port", &c.ServerConfig.Port, 1, 65535)
	clampInt("server.shutdown_timeout", &c.ServerConfig.ShutdownTimeout, 1, 120)

	return warnings
}

// ScanInterval returns the scan interval as a duration
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScannerConfig.IntervalSec) * time.Second
}

// AlertTick returns the alert tick interval as a duration
func (c *Config) AlertTick() time.Duration {
	return time.Duration(c.AlertsConfig.TickSec) * time.Second
}

// DedupeWindow returns the alert dedupe window as a duration
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.AlertsConfig.DedupeWindowMin) * time.Minute
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
