package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
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

// CheckoutStatus is the provider-side state of a checkout session.
type CheckoutStatus string

const (
	StatusPending CheckoutStatus = "pending"
	StatusSuccess CheckoutStatus = "success"
	StatusFailed  CheckoutStatus = "failed"
)

// CheckoutRequest is what the listing service sends to open a session.
type CheckoutRequest struct {
	TxRef       string `json:"tx_ref" binding:"required"`
	Method      string `json:"method" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	ReturnURL   string `json:"return_url"`
}

type CheckoutResponse struct {
	TxRef       string         `json:"tx_ref"`
	CheckoutURL string         `json:"checkout_url"`
	Status      CheckoutStatus `json:"status"`
}

type callbackPayload struct {
	TxRef   string `json:"tx_ref"`
	Outcome string `json:"outcome"`
}

type session struct {
	req       CheckoutRequest
	status    CheckoutStatus
	createdAt time.Time
}

// MockProvider simulates a payment aggregator: it opens checkout sessions
// and, after a random delay, posts a signed callback to the caller. A
// fraction of callbacks are delivered twice to exercise the consumer's
// idempotency handling.
type MockProvider struct {
	confirmRate   float64
	duplicateRate float64
	minDelay      time.Duration
	maxDelay      time.Duration
	secret        string
	baseURL       string
	providerID    string

	mu       sync.RWMutex
	sessions map[string]*session
	rng      *rand.Rand
}

func NewMockProvider(confirmRate, duplicateRate float64, minDelay, maxDelay time.Duration, secret, baseURL string) *MockProvider {
	return &MockProvider{
		confirmRate:   confirmRate,
		duplicateRate: duplicateRate,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		secret:        secret,
		baseURL:       baseURL,
		providerID:    "MOCK_PROVIDER_" + uuid.New().String()[:8],
		sessions:      make(map[string]*session),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) openSession(req CheckoutRequest) *CheckoutResponse {
	m.mu.Lock()
	m.sessions[req.TxRef] = &session{req: req, status: StatusPending, createdAt: time.Now()}
	m.mu.Unlock()

	go m.settle(req)

	return &CheckoutResponse{
		TxRef:       req.TxRef,
		CheckoutURL: fmt.Sprintf("%s/checkout/%s", m.baseURL, req.TxRef),
		Status:      StatusPending,
	}
}

// settle decides the outcome after a random delay and delivers the
// callback.
func (m *MockProvider) settle(req CheckoutRequest) {
	time.Sleep(m.randomDelay())

	outcome := StatusFailed
	if m.shouldConfirm() {
		outcome = StatusSuccess
	}

	m.mu.Lock()
	if s, ok := m.sessions[req.TxRef]; ok {
		s.status = outcome
	}
	duplicate := m.rng.Float64() < m.duplicateRate
	m.mu.Unlock()

	if req.CallbackURL == "" {
		log.Warn().Str("tx_ref", req.TxRef).Msg("No callback URL, outcome not delivered")
		return
	}

	m.deliverCallback(req.CallbackURL, req.TxRef, string(outcome))
	if duplicate {
		log.Info().Str("tx_ref", req.TxRef).Msg("Delivering duplicate callback")
		m.deliverCallback(req.CallbackURL, req.TxRef, string(outcome))
	}
}

func (m *MockProvider) deliverCallback(url, txRef, outcome string) {
	body, err := json.Marshal(callbackPayload{TxRef: txRef, Outcome: outcome})
	if err != nil {
		log.Error().Err(err).Str("tx_ref", txRef).Msg("Failed to marshal callback")
		return
	}

	mac := hmac.New(sha256.New, []byte(m.secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("tx_ref", txRef).Msg("Failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Payment-Signature", signature)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("tx_ref", txRef).Msg("Callback delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("tx_ref", txRef).
		Str("outcome", outcome).
		Int("status", resp.StatusCode).
		Msg("Callback delivered")
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldConfirm() bool {
	return m.rng.Float64() < m.confirmRate
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

// Checkout opens a session and schedules the signed callback.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("tx_ref", req.TxRef).
		Str("method", req.Method).
		Int64("amount_cents", req.AmountCents).
		Msg("Checkout session requested")

	c.JSON(http.StatusOK, h.provider.openSession(req))
}

// GetCheckout reports the current session state, the reconciliation path
// for a service that missed callbacks.
func (h *Handler) GetCheckout(c *gin.Context) {
	txRef := c.Param("tx_ref")
	if txRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tx_ref is required"})
		return
	}

	h.provider.mu.RLock()
	s, ok := h.provider.sessions[txRef]
	h.provider.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tx_ref"})
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		TxRef:       txRef,
		CheckoutURL: fmt.Sprintf("%s/checkout/%s", h.provider.baseURL, txRef),
		Status:      s.status,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"provider_id":  h.provider.providerID,
		"timestamp":    time.Now(),
		"confirm_rate": h.provider.confirmRate,
	})
}

// UpdateConfig changes simulation rates at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg struct {
		ConfirmRate   *float64 `json:"confirm_rate"`
		DuplicateRate *float64 `json:"duplicate_rate"`
	}

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if cfg.ConfirmRate != nil && *cfg.ConfirmRate >= 0 && *cfg.ConfirmRate <= 1.0 {
		h.provider.confirmRate = *cfg.ConfirmRate
		log.Info().Float64("rate", *cfg.ConfirmRate).Msg("Updated confirm rate")
	}
	if cfg.DuplicateRate != nil && *cfg.DuplicateRate >= 0 && *cfg.DuplicateRate <= 1.0 {
		h.provider.duplicateRate = *cfg.DuplicateRate
		log.Info().Float64("rate", *cfg.DuplicateRate).Msg("Updated duplicate rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"confirm_rate":   h.provider.confirmRate,
		"duplicate_rate": h.provider.duplicateRate,
	})
}

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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", handler.Checkout)
		v1.GET("/checkout/:tx_ref", handler.GetCheckout)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	secret := getEnv("PROVIDER_SECRET", "dev-secret")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)
	confirmRate := getEnvFloat("CONFIRM_RATE", 0.9)
	duplicateRate := getEnvFloat("DUPLICATE_RATE", 0.1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Float64("confirm_rate", confirmRate).
		Float64("duplicate_rate", duplicateRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock payment provider")

	provider := NewMockProvider(confirmRate, duplicateRate, minDelay, maxDelay, secret, baseURL)
	handler := NewHandler(provider)
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
