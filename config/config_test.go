package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("defaults should need no clamping, got %v", warnings)
	}

	if cfg.ScanInterval() != 15*time.Minute {
		t.Errorf("default scan interval should be 15m, got %v", cfg.ScanInterval())
	}
	if cfg.AlertTick() != 30*time.Second {
		t.Errorf("default alert tick should be 30s, got %v", cfg.AlertTick())
	}
	if cfg.DedupeWindow() != 30*time.Minute {
		t.Errorf("default dedupe window should be 30m, got %v", cfg.DedupeWindow())
	}
	if len(cfg.ScannerConfig.Timeframes) != 2 {
		t.Errorf("default timeframes should be 15m and 1h, got %v", cfg.ScannerConfig.Timeframes)
	}
}

func TestLoadClampsOutOfRangeValuesWithWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"scanner": {"enabled": true, "interval_sec": 5, "timeframes": ["15m"], "trend_timeframe": "4h",
			"candle_limit": 150, "trend_candle_limit": 300, "concurrency": 500, "top_summary_count": 5},
		"alerts": {"tick_sec": 2, "dedupe_window_min": 99999, "liquidation_threshold_pct": 5,
			"stop_proximity_pct": 0.5, "take_profit_proximity_pct": 0.6, "entry_zone_tolerance_pct": 0.2,
			"top_setups_count": 5, "max_stored_alerts": 7, "new_setups_enabled": true},
		"risk": {"risk_per_trade_pct": 1, "target_roi_pct": 50, "max_leverage": 9000},
		"server": {"host": "0.0.0.0", "port": 8080, "shutdown_timeout": 10},
		"logging": {"level": "info", "format": "json"},
		"storage": {"data_dir": "data"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ScannerConfig.IntervalSec != minScanIntervalSec {
		t.Errorf("interval 5s should clamp to %d, got %d", minScanIntervalSec, cfg.ScannerConfig.IntervalSec)
	}
	if cfg.ScannerConfig.Concurrency != maxConcurrency {
		t.Errorf("concurrency 500 should clamp to %d, got %d", maxConcurrency, cfg.ScannerConfig.Concurrency)
	}
	if cfg.AlertsConfig.TickSec != minAlertTickSec {
		t.Errorf("tick 2s should clamp to %d, got %d", minAlertTickSec, cfg.AlertsConfig.TickSec)
	}
	if cfg.AlertsConfig.DedupeWindowMin != maxDedupeWindowMin {
		t.Errorf("dedupe window should clamp to %d, got %d", maxDedupeWindowMin, cfg.AlertsConfig.DedupeWindowMin)
	}
	if cfg.AlertsConfig.MaxStoredAlerts != minStoredAlerts {
		t.Errorf("max stored alerts 7 should clamp to %d, got %d", minStoredAlerts, cfg.AlertsConfig.MaxStoredAlerts)
	}
	if cfg.RiskConfig.MaxLeverage != maxMaxLeverage {
		t.Errorf("leverage 9000 should clamp to %v, got %v", float64(maxMaxLeverage), cfg.RiskConfig.MaxLeverage)
	}

	// Every adjustment must leave a warning trail
	if len(warnings) < 6 {
		t.Errorf("expected a warning per clamped value, got %d: %v", len(warnings), warnings)
	}
}

func TestLoadDropsUnknownTimeframes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"scanner": {"enabled": true, "interval_sec": 900, "timeframes": ["15m", "7m", "1h"],
		"trend_timeframe": "9h", "candle_limit": 150, "trend_candle_limit": 300, "concurrency": 4, "top_summary_count": 5}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, tf := range cfg.ScannerConfig.Timeframes {
		if tf == "7m" {
			t.Error("unknown timeframe 7m should be dropped")
		}
	}
	if cfg.ScannerConfig.TrendTimeframe != "4h" {
		t.Errorf("unknown trend timeframe should reset to 4h, got %s", cfg.ScannerConfig.TrendTimeframe)
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "7m") {
			found = true
		}
	}
	if !found {
		t.Errorf("dropping a timeframe should leave a warning, got %v", warnings)
	}
}

func TestLoadAllTimeframesInvalidResetsToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"scanner": {"enabled": true, "interval_sec": 900, "timeframes": ["7m"],
		"trend_timeframe": "4h", "candle_limit": 150, "trend_candle_limit": 300, "concurrency": 4, "top_summary_count": 5}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.ScannerConfig.Timeframes) != 2 {
		t.Errorf("all-invalid timeframes should reset to the default pair, got %v", cfg.ScannerConfig.Timeframes)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("SCAN_INTERVAL_SEC", "1800")
	t.Setenv("WATCHLIST", "BTCUSDT, SOLUSDT")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ScannerConfig.IntervalSec != 1800 {
		t.Errorf("env override should win, got %d", cfg.ScannerConfig.IntervalSec)
	}
	if len(cfg.ScannerConfig.DefaultWatchlist) != 2 || cfg.ScannerConfig.DefaultWatchlist[1] != "SOLUSDT" {
		t.Errorf("comma separated watchlist should parse and trim, got %v", cfg.ScannerConfig.DefaultWatchlist)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(path); err == nil {
		t.Error("malformed config JSON should be rejected, not silently ignored")
	}
}
