package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/auth"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/learning"
)

// --- auth ---

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authService.Enabled() {
		errorResponse(c, http.StatusBadRequest, "authentication is disabled")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "password is required")
		return
	}

	pair, err := s.authService.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			errorResponse(c, http.StatusUnauthorized, "invalid password")
			return
		}
		s.log.WithError(err).Error("Login failed")
		errorResponse(c, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, pair)
}

// --- trade history ---

type addTradeRequest struct {
	Timestamp   int64                       `json:"timestamp"`
	Market      string                      `json:"market" binding:"required"`
	Type        history.TradeType           `json:"type" binding:"required"`
	Price       float64                     `json:"price" binding:"required,gt=0"`
	Volume      float64                     `json:"volume" binding:"required,gt=0"`
	TotalAmount float64                     `json:"totalAmount"`
	Fee         float64                     `json:"fee"`
	Reason      string                      `json:"reason"`
	Indicators  *history.IndicatorSnapshot  `json:"indicators"`
	AIAnalysis  *history.AIAnalysisSnapshot `json:"aiAnalysis"`
}

func (s *Server) handleAddTrade(c *gin.Context) {
	var req addTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid trade: "+err.Error())
		return
	}
	if req.Type != history.Buy && req.Type != history.Sell {
		errorResponse(c, http.StatusBadRequest, "type must be BUY or SELL")
		return
	}

	trade := s.history.AddTrade(history.TradeInput{
		Timestamp:   req.Timestamp,
		Market:      req.Market,
		Type:        req.Type,
		Price:       req.Price,
		Volume:      req.Volume,
		TotalAmount: req.TotalAmount,
		Fee:         req.Fee,
		Reason:      req.Reason,
		Indicators:  req.Indicators,
		AIAnalysis:  req.AIAnalysis,
	})

	c.JSON(http.StatusCreated, trade)
}

func (s *Server) handleGetTrades(c *gin.Context) {
	filter := history.Filter{
		Market:    c.Query("market"),
		Type:      history.TradeType(c.Query("type")),
		StartDate: queryInt64(c, "start", 0),
		EndDate:   queryInt64(c, "end", 0),
		Limit:     queryInt(c, "limit", 0),
	}

	trades := s.history.GetTrades(filter)
	if trades == nil {
		trades = []history.TradeRecord{}
	}
	successResponse(c, trades)
}

func (s *Server) handleDeleteTrade(c *gin.Context) {
	id := c.Param("id")
	if !s.history.DeleteTrade(id) {
		errorResponse(c, http.StatusNotFound, "trade not found")
		return
	}
	successResponse(c, gin.H{"deleted": id})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	s.history.ClearHistory()
	successResponse(c, gin.H{"cleared": true})
}

func (s *Server) handleGetStatistics(c *gin.Context) {
	var period *history.Period
	start := queryInt64(c, "start", 0)
	end := queryInt64(c, "end", 0)
	if start != 0 || end != 0 {
		period = &history.Period{Start: start, End: end}
	}

	successResponse(c, s.history.GetTradeStatistics(period))
}

func (s *Server) handleGetDailyPerformance(c *gin.Context) {
	days := queryInt(c, "days", 30)
	if days < 1 {
		errorResponse(c, http.StatusBadRequest, "days must be positive")
		return
	}
	successResponse(c, s.history.GetDailyPerformance(days))
}

func (s *Server) handleGetProfitChart(c *gin.Context) {
	days := queryInt(c, "days", 7)
	if days < 1 {
		errorResponse(c, http.StatusBadRequest, "days must be positive")
		return
	}
	successResponse(c, s.history.GetProfitChartData(days))
}

// --- learning ---

func (s *Server) handleRecordTradeResult(c *gin.Context) {
	var result learning.TradeResult
	if err := c.ShouldBindJSON(&result); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid trade result: "+err.Error())
		return
	}
	if result.Market == "" {
		errorResponse(c, http.StatusBadRequest, "market is required")
		return
	}
	if result.Timestamp == 0 {
		result.Timestamp = time.Now().UnixMilli()
	}

	s.learning.RecordTrade(result)
	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

func (s *Server) handleGetLearningHistory(c *gin.Context) {
	results := s.learning.History(c.Query("market"))
	if results == nil {
		results = []learning.TradeResult{}
	}
	successResponse(c, results)
}

func (s *Server) handleGetWeights(c *gin.Context) {
	successResponse(c, s.learning.GetWeights())
}

func (s *Server) handleGetCoinWeights(c *gin.Context) {
	successResponse(c, s.learning.GetCoinWeights(c.Param("market")))
}

func (s *Server) handleGetIndicatorPerformance(c *gin.Context) {
	successResponse(c, s.learning.GetIndicatorPerformance())
}

func (s *Server) handleGetPerformanceStats(c *gin.Context) {
	days := queryInt(c, "days", 30)
	if days < 1 {
		errorResponse(c, http.StatusBadRequest, "days must be positive")
		return
	}
	successResponse(c, s.learning.GetPerformanceStats(c.Query("market"), days))
}

func (s *Server) handleGetOptimalParameters(c *gin.Context) {
	market := c.Query("market")
	if market == "" {
		errorResponse(c, http.StatusBadRequest, "market is required")
		return
	}
	successResponse(c, s.learning.GetOptimalParameters(market))
}

type predictRequest struct {
	Market           string                    `json:"market" binding:"required"`
	Indicators       map[string]float64        `json:"indicators"`
	MarketConditions learning.MarketConditions `json:"market_conditions"`
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid prediction request: "+err.Error())
		return
	}

	indicators := make(map[learning.Indicator]float64, len(req.Indicators))
	for name, value := range req.Indicators {
		indicators[learning.Indicator(name)] = value
	}

	successResponse(c, s.learning.PredictTradeSuccess(req.Market, indicators, req.MarketConditions))
}

func (s *Server) handleGetAllCooldowns(c *gin.Context) {
	successResponse(c, s.learning.AllCooldowns())
}

func (s *Server) handleGetCooldown(c *gin.Context) {
	successResponse(c, s.learning.GetCooldown(c.Param("market")))
}

func (s *Server) handleAdjustCooldown(c *gin.Context) {
	var result learning.TradeResult
	if err := c.ShouldBindJSON(&result); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid trade result: "+err.Error())
		return
	}
	if result.Market == "" {
		errorResponse(c, http.StatusBadRequest, "market is required")
		return
	}

	s.learning.AdjustCooldown(result.Market, result)
	successResponse(c, s.learning.GetCooldown(result.Market))
}

func (s *Server) handleGetLearningStates(c *gin.Context) {
	successResponse(c, s.learning.LearningStates())
}

func (s *Server) handleStartLearning(c *gin.Context) {
	ticker := c.Param("ticker")
	s.learning.StartLearning(ticker)
	successResponse(c, gin.H{"ticker": ticker, "enabled": true})
}

func (s *Server) handleStopLearning(c *gin.Context) {
	ticker := c.Param("ticker")
	s.learning.StopLearning(ticker)
	successResponse(c, gin.H{"ticker": ticker, "enabled": false})
}

// --- query helpers ---

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func queryInt64(c *gin.Context, key string, fallback int64) int64 {
	if v := c.Query(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
