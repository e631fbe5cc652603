// Package api exposes the read-mostly HTTP surface: scan snapshots, scan
// control, watchlist management, alerts, positions, and a websocket feed of
// newly raised alerts.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"futures-sentinel/internal/alerts"
	"futures-sentinel/internal/market"
	"futures-sentinel/internal/scanner"
	"futures-sentinel/internal/watchlist"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma separated, "*" allows all
	ProductionMode bool
}

// Server is the HTTP API server
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	orchestrator *scanner.Orchestrator
	latest       *scanner.LatestStore
	watchlist    *watchlist.Store
	alertStore   *alerts.Store
	positions    market.PositionSource
	hub          *WSHub
	logger       zerolog.Logger
}

// NewServer wires routes and middleware. The websocket hub is started here;
// callers broadcast through BroadcastAlert.
func NewServer(
	cfg ServerConfig,
	orchestrator *scanner.Orchestrator,
	latest *scanner.LatestStore,
	wl *watchlist.Store,
	alertStore *alerts.Store,
	positions market.PositionSource,
	logger zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:       router,
		orchestrator: orchestrator,
		latest:       latest,
		watchlist:    wl,
		alertStore:   alertStore,
		positions:    positions,
		hub:          NewWSHub(logger),
		logger:       logger.With().Str("component", "API").Logger(),
	}

	s.setupRoutes()
	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/scan/latest", s.handleScanLatest)
		api.GET("/scan/status", s.handleScanStatus)
		api.POST("/scan/run", s.handleScanRun)

		api.GET("/watchlist", s.handleWatchlistGet)
		api.POST("/watchlist", s.handleWatchlistAdd)
		api.DELETE("/watchlist/:symbol", s.handleWatchlistRemove)

		api.GET("/alerts", s.handleAlertsList)
		api.POST("/alerts/:id/ack", s.handleAlertAck)

		api.GET("/positions", s.handlePositions)
	}
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// BroadcastAlert pushes a raised alert to all connected websocket clients
func (s *Server) BroadcastAlert(alert *alerts.Alert) {
	s.hub.BroadcastAlert(alert)
}
