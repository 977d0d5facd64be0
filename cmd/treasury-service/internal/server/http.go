package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"treasury/cmd/treasury-service/internal/data"
	"treasury/cmd/treasury-service/internal/domain"
	"treasury/cmd/treasury-service/internal/service"
	pkgerrors "treasury/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HTTPServer HTTP服务器
type HTTPServer struct {
	engine  *gin.Engine
	service *service.TreasuryService
	data    *data.Data
	logger  *zap.Logger
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(srv *service.TreasuryService, d *data.Data, logger *zap.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	s := &HTTPServer{
		engine:  gin.New(),
		service: srv,
		data:    d,
		logger:  logger,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.registerRoutes()

	return s
}

// Engine 暴露gin引擎给http.Server
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

func (s *HTTPServer) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.ready)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/v1")
	{
		api.POST("/authorize", s.authorize)
		api.POST("/deposit", s.deposit)

		api.POST("/budgets", s.createBudget)
		api.GET("/budgets/:agent_id", s.getBudget)
		api.PUT("/budgets/:agent_id/status", s.setStatus)
		api.GET("/budgets/:agent_id/transactions", s.getTransactions)
		api.GET("/budgets/:agent_id/recent", s.getRecent)
		api.POST("/budgets/:agent_id/rescale", s.rescale)

		api.GET("/breaker", s.breakerState)
		api.POST("/freeze", s.freeze)
		api.POST("/unfreeze", s.unfreeze)
	}
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "treasury-service",
	})
}

func (s *HTTPServer) ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"database": true, "redis": true}
	status := http.StatusOK

	if err := s.data.PingDB(ctx); err != nil {
		checks["database"] = false
		status = http.StatusServiceUnavailable
	}
	if err := s.data.PingRedis(ctx); err != nil {
		checks["redis"] = false
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"ready": status == http.StatusOK, "checks": checks}
	if s.service.AuditDegraded() {
		// 可用但降级：消费仍然安全，审计在追赶
		body["audit"] = "degraded"
	}
	c.JSON(status, body)
}

func (s *HTTPServer) authorize(c *gin.Context) {
	var req service.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	reply, err := s.service.Authorize(c.Request.Context(), &req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *HTTPServer) deposit(c *gin.Context) {
	var req service.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	reply, err := s.service.Deposit(c.Request.Context(), &req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *HTTPServer) createBudget(c *gin.Context) {
	var req service.CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	budget, err := s.service.CreateBudget(c.Request.Context(), &req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, budget)
}

func (s *HTTPServer) getBudget(c *gin.Context) {
	budget, err := s.service.GetBudget(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

func (s *HTTPServer) setStatus(c *gin.Context) {
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	if err := s.service.SetStatus(c.Request.Context(), c.Param("agent_id"), &req); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(req.Status)})
}

func (s *HTTPServer) getTransactions(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	txs, err := s.service.GetTransactions(c.Request.Context(), c.Param("agent_id"), from, to, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

func (s *HTTPServer) getRecent(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	txs, err := s.service.GetRecentActivity(c.Request.Context(), c.Param("agent_id"), n)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

func (s *HTTPServer) rescale(c *gin.Context) {
	limits, err := s.service.Rescale(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *HTTPServer) breakerState(c *gin.Context) {
	state, err := s.service.BreakerState(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *HTTPServer) freeze(c *gin.Context) {
	var req service.BreakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	if err := s.service.Freeze(c.Request.Context(), &req); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frozen": true})
}

func (s *HTTPServer) unfreeze(c *gin.Context) {
	var req service.BreakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
		return
	}

	if err := s.service.Unfreeze(c.Request.Context(), &req); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frozen": false})
}

// renderError 领域错误到HTTP状态码的映射。业务拒绝按原因区分，
// 让调用方能分辨"稍后再试"和"不被允许"。
func (s *HTTPServer) renderError(c *gin.Context, err error) {
	var limitErr *domain.UsageLimitExceededError

	switch {
	case errors.As(err, &limitErr):
		c.JSON(int(pkgerrors.ErrUsageLimitExceeded.Code), gin.H{
			"error":  pkgerrors.ErrUsageLimitExceeded.Reason,
			"reason": limitErr.Reason,
			"limit":  limitErr.Limit,
		})
	case errors.Is(err, domain.ErrEmergencyFreeze):
		c.JSON(int(pkgerrors.ErrEmergencyFreeze.Code), gin.H{"error": pkgerrors.ErrEmergencyFreeze.Reason})
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.JSON(int(pkgerrors.ErrInsufficientFunds.Code), gin.H{"error": pkgerrors.ErrInsufficientFunds.Reason})
	case errors.Is(err, domain.ErrContentionExceeded):
		c.JSON(int(pkgerrors.ErrContentionExceeded.Code), gin.H{"error": pkgerrors.ErrContentionExceeded.Reason})
	case errors.Is(err, domain.ErrAgentNotFound):
		c.JSON(int(pkgerrors.ErrAgentNotFound.Code), gin.H{"error": pkgerrors.ErrAgentNotFound.Reason})
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrBudgetExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": pkgerrors.ErrBadRequest.Reason, "message": err.Error()})
	default:
		s.logger.Error("internal error", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": pkgerrors.ErrInternalServerError.Reason})
	}
}

// requestLogger 请求日志中间件
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if v := c.Query("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
	}
	if v := c.Query("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
