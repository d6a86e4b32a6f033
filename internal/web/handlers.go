package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vitos/day_trade_sim/internal/domain"
	"github.com/vitos/day_trade_sim/internal/usecase"
	"go.uber.org/zap"
)

const defaultTradeLimit = 50

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Status())
}

func (s *Server) handlePortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Ledger().GetPortfolioSummary())
}

func (s *Server) handleRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Ledger().GetRiskMetrics())
}

func (s *Server) handlePositions(c *gin.Context) {
	positions := s.sim.Ledger().OpenPositions()
	c.JSON(http.StatusOK, gin.H{
		"count": len(positions),
		"data":  positions,
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := defaultTradeLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	var trades []*domain.Trade
	if s.tradeRepo != nil {
		var err error
		trades, err = s.tradeRepo.ListTrades(c.Request.Context(), limit)
		if err != nil {
			s.logger.Error("Failed to list trades", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
			return
		}
	} else {
		trades = newestFirst(s.sim.Ledger().CompletedTrades(), limit)
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(trades),
		"data":  trades,
	})
}

func newestFirst(trades []*domain.Trade, limit int) []*domain.Trade {
	out := make([]*domain.Trade, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, trades[i])
	}
	return out
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.sim.Start(); err != nil {
		if errors.Is(err, usecase.ErrSimulationRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Failed to start simulation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.sim.Stop(); err != nil {
		if errors.Is(err, usecase.ErrSimulationNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Failed to stop simulation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleCloseAll(c *gin.Context) {
	// Closes are booked already; publishing outlives the request.
	closed := s.sim.ForceCloseAll(context.WithoutCancel(c.Request.Context()))
	if closed == nil {
		closed = []*domain.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(closed),
		"data":  closed,
	})
}
