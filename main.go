package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"futures-sentinel/config"
	"futures-sentinel/internal/alerts"
	"futures-sentinel/internal/api"
	"futures-sentinel/internal/logging"
	"futures-sentinel/internal/market"
	"futures-sentinel/internal/notification"
	"futures-sentinel/internal/scanner"
	"futures-sentinel/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// .env is optional; environment wins over the config file either way
	_ = godotenv.Load()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	for _, w := range warnings {
		logger.Warn().Msg("Config adjusted: " + w)
	}

	if err := os.MkdirAll(cfg.StorageConfig.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.StorageConfig.DataDir).Msg("Failed to create data directory")
	}

	// Exchange client. Without API keys it serves public market data only and
	// position-derived alerts stay silent.
	binanceClient := market.NewBinanceClient(
		cfg.BinanceConfig.APIKey,
		cfg.BinanceConfig.SecretKey,
		cfg.BinanceConfig.TestNet,
		logger,
	)
	if cfg.BinanceConfig.BaseURL != "" {
		binanceClient.SetBaseURL(cfg.BinanceConfig.BaseURL)
	}
	if !binanceClient.Configured() {
		logger.Warn().Msg("Binance API keys not configured, running in market-data-only mode")
	}

	var marketData market.DataSource = binanceClient
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		marketData = market.NewCachedDataSource(binanceClient, redisClient, logger)
		logger.Info().Str("addr", cfg.RedisConfig.Address).Msg("Redis market-data cache enabled")
	} else {
		marketData = market.NewCachedDataSource(binanceClient, nil, logger)
	}

	wl, err := watchlist.NewStore(
		filepath.Join(cfg.StorageConfig.DataDir, "watchlist.json"),
		cfg.ScannerConfig.DefaultWatchlist,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize watchlist")
	}

	latestStore := scanner.NewLatestStore(filepath.Join(cfg.StorageConfig.DataDir, "latest_scan.json"))

	alertStore, err := alerts.NewStore(
		filepath.Join(cfg.StorageConfig.DataDir, "alerts.json"),
		cfg.AlertsConfig.MaxStoredAlerts,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize alert store")
	}

	notifyManager := notification.NewManager()
	if cfg.NotificationConfig.Enabled {
		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  true,
			}))
			logger.Info().Msg("Telegram notifications enabled")
		}
		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    true,
			}))
			logger.Info().Msg("Discord notifications enabled")
		}
	}

	orchestrator := scanner.NewOrchestrator(
		marketData,
		binanceClient,
		wl,
		latestStore,
		nil, // narrative summarizer ships disabled
		scanner.Config{
			Interval:         cfg.ScanInterval(),
			Timeframes:       cfg.ScannerConfig.Timeframes,
			TrendTimeframe:   cfg.ScannerConfig.TrendTimeframe,
			CandleLimit:      cfg.ScannerConfig.CandleLimit,
			TrendCandleLimit: cfg.ScannerConfig.TrendCandleLimit,
			Concurrency:      cfg.ScannerConfig.Concurrency,
			TargetROIPct:     cfg.RiskConfig.TargetROIPct,
			MaxLeverage:      cfg.RiskConfig.MaxLeverage,
			RiskPerTradePct:  cfg.RiskConfig.RiskPerTradePct,
			TopSummaryCount:  cfg.ScannerConfig.TopSummaryCount,
		},
		logger,
	)

	var sink alerts.Sink
	if notifyManager.HasNotifiers() {
		sink = notifyManager
	}
	alertEngine := alerts.NewEngine(
		binanceClient,
		marketData,
		latestStore,
		alertStore,
		sink,
		alerts.Config{
			TickInterval:            cfg.AlertTick(),
			DedupeWindow:            cfg.DedupeWindow(),
			LiquidationThresholdPct: cfg.AlertsConfig.LiquidationThresholdPct,
			StopProximityPct:        cfg.AlertsConfig.StopProximityPct,
			TakeProfitProximityPct:  cfg.AlertsConfig.TakeProfitProximityPct,
			EntryZoneTolerancePct:   cfg.AlertsConfig.EntryZoneTolerancePct,
			TopSetupsCount:          cfg.AlertsConfig.TopSetupsCount,
			NewSetupsEnabled:        cfg.AlertsConfig.NewSetupsEnabled,
		},
		logger,
	)

	server := api.NewServer(
		api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			ProductionMode: cfg.LoggingConfig.Level != "debug",
		},
		orchestrator,
		latestStore,
		wl,
		alertStore,
		binanceClient,
		logger,
	)
	alertEngine.OnAlert(server.BroadcastAlert)

	if cfg.ScannerConfig.Enabled {
		orchestrator.Start()
	} else {
		logger.Warn().Msg("Scanner disabled, scans run only on demand")
	}
	alertEngine.Start()

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	alertEngine.Stop()
	if cfg.ScannerConfig.Enabled {
		orchestrator.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}

	logger.Info().Msg("Shutdown complete")
}
