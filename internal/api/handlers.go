package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"futures-sentinel/internal/alerts"
	"futures-sentinel/internal/scanner"
	"futures-sentinel/internal/watchlist"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleScanLatest(c *gin.Context) {
	result, err := s.latest.Load()
	if err != nil {
		if errors.Is(err, scanner.ErrNoSnapshot) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scan has completed yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Status())
}

// handleScanRun triggers a scan synchronously. A run already in flight is a
// conflict, not a failure.
func (s *Server) handleScanRun(c *gin.Context) {
	result, err := s.orchestrator.RunNow()
	if err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleWatchlistGet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.watchlist.GetSymbols()})
}

func (s *Server) handleWatchlistAdd(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	if err := s.watchlist.Add(strings.ToUpper(strings.TrimSpace(req.Symbol))); err != nil {
		if errors.Is(err, watchlist.ErrInvalidSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbols": s.watchlist.GetSymbols()})
}

func (s *Server) handleWatchlistRemove(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := s.watchlist.Remove(symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": s.watchlist.GetSymbols()})
}

func (s *Server) handleAlertsList(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	unackedOnly := c.Query("unacked") == "true"

	c.JSON(http.StatusOK, gin.H{
		"alerts": s.alertStore.List(limit, unackedOnly),
		"total":  s.alertStore.Count(),
	})
}

func (s *Server) handleAlertAck(c *gin.Context) {
	id := c.Param("id")
	if err := s.alertStore.Acknowledge(id); err != nil {
		if errors.Is(err, alerts.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": id})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.positions.GetOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}
