package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitos/day_trade_sim/internal/domain"
	"github.com/vitos/day_trade_sim/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	engine    *gin.Engine
	server    *http.Server
	sim       *usecase.Simulation
	tradeRepo domain.TradeRepository
	hub       *Hub
	logger    *zap.Logger
}

// NewServer builds the API. tradeRepo may be nil, in which case trades come from the in-memory ledger.
func NewServer(
	port int,
	sim *usecase.Simulation,
	tradeRepo domain.TradeRepository,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		engine:    engine,
		sim:       sim,
		tradeRepo: tradeRepo,
		hub:       hub,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/portfolio", s.handlePortfolio)
		api.GET("/risk", s.handleRisk)

		api.GET("/positions", s.handlePositions)
		api.POST("/positions/close-all", s.handleCloseAll)

		api.GET("/trades", s.handleTrades)

		api.POST("/simulation/start", s.handleStart)
		api.POST("/simulation/stop", s.handleStop)
	}

	// Trade stream
	if s.hub != nil {
		s.engine.GET("/ws", func(c *gin.Context) {
			s.hub.ServeWS(c.Writer, c.Request)
		})
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
