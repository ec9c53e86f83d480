package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mock Lanari Pay gateway for local development. Speaks the same two
// endpoints the real service does: process.php to initiate a charge and
// status.php to ask what became of it. Charges start out pending and
// resolve after a configurable settle delay, so the poller has something
// realistic to chew on.

type ProcessRequest struct {
	APIKey        string `json:"api_key" binding:"required"`
	APISecret     string `json:"api_secret" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	CustomerPhone string `json:"customer_phone" binding:"required"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
}

type StatusRequest struct {
	APIKey        string `json:"api_key" binding:"required"`
	APISecret     string `json:"api_secret" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

type GatewayResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type charge struct {
	id         string
	phone      string
	amount     int64
	createdAt  time.Time
	willFail   bool
	failReason string
}

// MockGateway keeps every initiated charge in memory and resolves each
// one after settleDelay.
type MockGateway struct {
	mu          sync.Mutex
	charges     map[string]*charge
	successRate float64
	settleDelay time.Duration
	rng         *rand.Rand
}

func NewMockGateway(successRate float64, settleDelay time.Duration) *MockGateway {
	return &MockGateway{
		charges:     make(map[string]*charge),
		successRate: successRate,
		settleDelay: settleDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *MockGateway) initiate(req *ProcessRequest) *charge {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := &charge{
		id:        "LP-" + uuid.New().String()[:12],
		phone:     req.CustomerPhone,
		amount:    req.Amount,
		createdAt: time.Now(),
	}
	if g.rng.Float64() >= g.successRate {
		c.willFail = true
		c.failReason = g.randomFailReason()
	}
	g.charges[c.id] = c
	return c
}

func (g *MockGateway) lookup(id string) *charge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges[id]
}

func (g *MockGateway) randomFailReason() string {
	reasons := []string{
		"Insufficient funds on customer wallet",
		"Customer declined the payment prompt",
		"Payment prompt timed out",
		"Customer wallet is locked",
	}
	return reasons[g.rng.Intn(len(reasons))]
}

type Handler struct {
	gateway   *MockGateway
	apiKey    string
	apiSecret string
}

func NewHandler(gateway *MockGateway, apiKey, apiSecret string) *Handler {
	return &Handler{gateway: gateway, apiKey: apiKey, apiSecret: apiSecret}
}

func (h *Handler) authorized(apiKey, apiSecret string) bool {
	return apiKey == h.apiKey && apiSecret == h.apiSecret
}

// Process initiates a mobile money charge. The customer still has to
// approve on their handset, so the answer is always "pending" with a
// transaction id to poll.
func (h *Handler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	if !h.authorized(req.APIKey, req.APISecret) {
		c.JSON(http.StatusOK, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Invalid API credentials",
		})
		return
	}

	if req.Amount <= 0 {
		c.JSON(http.StatusOK, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Amount must be greater than zero",
		})
		return
	}

	charge := h.gateway.initiate(&req)

	log.Info().
		Str("transaction_id", charge.id).
		Str("phone", req.CustomerPhone).
		Int64("amount", req.Amount).
		Msg("Charge initiated")

	c.JSON(http.StatusOK, GatewayResponse{
		Success:       true,
		Status:        "pending",
		Message:       "Payment initiated successfully, awaiting customer approval",
		TransactionID: charge.id,
	})
}

// Status reports what became of a charge. Pending until the settle delay
// has passed, then the pre-rolled verdict.
func (h *Handler) Status(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	if !h.authorized(req.APIKey, req.APISecret) {
		c.JSON(http.StatusOK, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Invalid API credentials",
		})
		return
	}

	charge := h.gateway.lookup(req.TransactionID)
	if charge == nil {
		c.JSON(http.StatusOK, GatewayResponse{
			Success: false,
			Status:  "failed",
			Message: "Transaction not found",
		})
		return
	}

	if time.Since(charge.createdAt) < h.gateway.settleDelay {
		c.JSON(http.StatusOK, GatewayResponse{
			Success:       true,
			Status:        "pending",
			Message:       "Awaiting customer approval",
			TransactionID: charge.id,
		})
		return
	}

	if charge.willFail {
		log.Warn().
			Str("transaction_id", charge.id).
			Str("reason", charge.failReason).
			Msg("Charge failed")
		c.JSON(http.StatusOK, GatewayResponse{
			Success:       false,
			Status:        "failed",
			Message:       charge.failReason,
			TransactionID: charge.id,
		})
		return
	}

	log.Info().
		Str("transaction_id", charge.id).
		Msg("Charge completed")
	c.JSON(http.StatusOK, GatewayResponse{
		Success:       true,
		Status:        "success",
		Message:       "Payment completed successfully",
		TransactionID: charge.id,
	})
}

// UpdateConfig tunes the mock at runtime, handy for scripting failure
// scenarios in e2e runs.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
		SettleDelay *string  `json:"settle_delay"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.gateway.mu.Lock()
	defer h.gateway.mu.Unlock()

	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		h.gateway.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
	}
	if config.SettleDelay != nil {
		if d, err := time.ParseDuration(*config.SettleDelay); err == nil && d >= 0 {
			h.gateway.settleDelay = d
			log.Info().Dur("settle_delay", d).Msg("Updated settle delay")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Configuration updated",
		"success_rate": h.gateway.successRate,
		"settle_delay": h.gateway.settleDelay.String(),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	api := router.Group("/lanari_pay/api/payment")
	{
		api.POST("/process.php", handler.Process)
		api.POST("/status.php", handler.Status)
	}

	router.PUT("/config", handler.UpdateConfig)

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	apiKey := getEnv("API_KEY", "test_key")
	apiSecret := getEnv("API_SECRET", "test_secret")
	successRate := getEnvFloat("SUCCESS_RATE", 0.9)
	settleDelay := getEnvDuration("SETTLE_DELAY", 20*time.Second)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("settle_delay", settleDelay).
		Msg("Starting Mock Lanari Pay Gateway")

	gateway := NewMockGateway(successRate, settleDelay)
	handler := NewHandler(gateway, apiKey, apiSecret)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
