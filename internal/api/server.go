package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/config"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/auth"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/learning"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
)

// Server exposes the trade history and learning services over HTTP and
// pushes live events to websocket clients.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         config.ServerConfig
	history     *history.Service
	learning    *learning.Service
	authService *auth.Service
	hub         *wsHub
	log         *logging.Logger
}

// NewServer creates the API server and wires the websocket hub to the
// event bus.
func NewServer(
	cfg config.ServerConfig,
	hist *history.Service,
	learn *learning.Service,
	authService *auth.Service,
	bus *events.Bus,
	log *logging.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	log = log.WithComponent("api")

	server := &Server{
		router:      router,
		cfg:         cfg,
		history:     hist,
		learning:    learn,
		authService: authService,
		hub:         newWSHub(log),
		log:         log,
	}

	router.Use(server.requestIDMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server.setupRoutes()

	go server.hub.run()
	server.hub.subscribe(bus)

	return server
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:5173"}
	}
	return out
}

// requestIDMiddleware tags every request with an ID for log correlation.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Auth routes (public)
	s.router.POST("/api/auth/login", s.handleLogin)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authService.Enabled()})
	})

	// API routes (protected when auth is enabled)
	api := s.router.Group("/api")
	api.Use(auth.Middleware(s.authService))
	{
		// Trade history endpoints
		api.POST("/trades", s.handleAddTrade)
		api.GET("/trades", s.handleGetTrades)
		api.DELETE("/trades/:id", s.handleDeleteTrade)
		api.DELETE("/trades", s.handleClearHistory)

		// Statistics and chart endpoints
		api.GET("/statistics", s.handleGetStatistics)
		api.GET("/performance/daily", s.handleGetDailyPerformance)
		api.GET("/performance/chart", s.handleGetProfitChart)

		// Learning endpoints
		lrn := api.Group("/learning")
		{
			lrn.POST("/trades", s.handleRecordTradeResult)
			lrn.GET("/history", s.handleGetLearningHistory)

			lrn.GET("/weights", s.handleGetWeights)
			lrn.GET("/weights/:market", s.handleGetCoinWeights)
			lrn.GET("/indicators", s.handleGetIndicatorPerformance)
			lrn.GET("/stats", s.handleGetPerformanceStats)
			lrn.GET("/optimal-parameters", s.handleGetOptimalParameters)
			lrn.POST("/predict", s.handlePredict)

			lrn.GET("/cooldowns", s.handleGetAllCooldowns)
			lrn.GET("/cooldowns/:market", s.handleGetCooldown)
			lrn.POST("/cooldowns/adjust", s.handleAdjustCooldown)

			lrn.GET("/states", s.handleGetLearningStates)
			lrn.POST("/:ticker/start", s.handleStartLearning)
			lrn.POST("/:ticker/stop", s.handleStopLearning)
		}
	}

	// WebSocket endpoint for live event streaming
	s.router.GET("/ws", s.handleWebSocket)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.WithField("addr", addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	s.hub.stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"ws_clients": s.hub.clientCount(),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
