package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrMethodNotSupported  = errors.New("payment method has no configured endpoint")
	ErrEndpointUnavailable = errors.New("payment endpoint unavailable")
)

// InitiateRequest asks the provider to open a checkout session. TxRef is
// generated on our side and echoed in every later callback, it is the
// correlation and idempotency key for the whole charge.
type InitiateRequest struct {
	TxRef       string              `json:"tx_ref"`
	Method      model.PaymentMethod `json:"method"`
	AmountCents int64               `json:"amount_cents"`
	Currency    string              `json:"currency"`
	CallbackURL string              `json:"callback_url"`
	ReturnURL   string              `json:"return_url"`
}

type InitiateResponse struct {
	TxRef       string `json:"tx_ref"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.SuccessfulReqs.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type endpointState int32

const (
	stateHealthy endpointState = iota
	stateCircuitOpen
)

// Endpoint is one provider checkout backend (telebirr, cbe, optionally
// cash when a cash confirmation URL is configured).
type Endpoint struct {
	method model.PaymentMethod
	url    string
	client *fasthttp.Client

	metrics          *EndpointMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func newEndpoint(method model.PaymentMethod, url string, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		method:  method,
		url:     url,
		client:  client,
		metrics: &EndpointMetrics{},
	}
	e.state.Store(int32(stateHealthy))
	return e
}

func (e *Endpoint) available() bool {
	if endpointState(e.state.Load()) == stateCircuitOpen {
		if time.Now().Unix() > e.circuitOpenUntil.Load() {
			e.state.Store(int32(stateHealthy))
			return true
		}
		return false
	}
	return true
}

type Config struct {
	// Endpoints maps payment method to base URL.
	Endpoints map[model.PaymentMethod]string

	CallbackURL string
	ReturnURL   string

	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// Client talks to the external payment provider. Every call is bounded by
// the configured timeout, a failing endpoint opens its circuit so initiate
// fails fast instead of queueing behind a dead provider.
type Client struct {
	config    *Config
	endpoints map[model.PaymentMethod]*Endpoint
	mu        sync.RWMutex
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one payment endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.CircuitBreakerThreshold == 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout == 0 {
		config.CircuitBreakerTimeout = 60 * time.Second
	}

	client := &Client{
		config:    config,
		endpoints: make(map[model.PaymentMethod]*Endpoint, len(config.Endpoints)),
	}

	for method, url := range config.Endpoints {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		}
		client.endpoints[method] = newEndpoint(method, url, httpClient)
		logger.Info("Payment endpoint initialized", "method", string(method), "url", url)
	}

	return client, nil
}

// Initiate opens a checkout session for the given charge. Retries stay on
// the same endpoint, the method dictates which backend handles the money.
func (c *Client) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	endpoint, err := c.endpointFor(req.Method)
	if err != nil {
		return nil, err
	}

	if req.CallbackURL == "" {
		req.CallbackURL = c.config.CallbackURL
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.config.ReturnURL
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		if !endpoint.available() {
			lastErr = fmt.Errorf("%w: %s circuit open", ErrEndpointUnavailable, req.Method)
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, endpoint, "POST", "/api/v1/checkout", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)
			logger.Warn("Initiate request failed, retrying", "error", err, "method", string(req.Method), "attempt", attempt+1)
			lastErr = err
			continue
		}

		endpoint.metrics.RecordSuccess(latency)

		var resp InitiateResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if resp.CheckoutURL == "" {
			return nil, errors.New("provider returned no checkout url")
		}

		logger.Info("Checkout session opened", "tx_ref", req.TxRef, "method", string(req.Method), "latency_ms", latency)
		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// VerifyStatus queries the provider for the current state of a charge, a
// reconciliation path besides callbacks.
func (c *Client) VerifyStatus(ctx context.Context, method model.PaymentMethod, txRef string) (*InitiateResponse, error) {
	endpoint, err := c.endpointFor(method)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/checkout/%s", txRef)
	response, err := c.doRequest(ctx, endpoint, "GET", path, nil)
	if err != nil {
		endpoint.metrics.RecordFailure()
		c.checkCircuitBreaker(endpoint)
		return nil, err
	}
	endpoint.metrics.RecordSuccess(0)

	var resp InitiateResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *Client) endpointFor(method model.PaymentMethod) (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	endpoint, ok := c.endpoints[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
	}
	return endpoint, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint *Endpoint, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := endpoint.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(endpoint *Endpoint) {
	consecutiveFails := endpoint.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		endpoint.state.Store(int32(stateCircuitOpen))
		endpoint.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
		logger.Warn("Circuit breaker opened", "method", string(endpoint.method), "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

// EndpointStats is a point-in-time snapshot for diagnostics.
type EndpointStats struct {
	Method           string
	URL              string
	CircuitOpen      bool
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	ConsecutiveFails int32
}

func (c *Client) Stats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		stats = append(stats, EndpointStats{
			Method:           string(e.method),
			URL:              e.url,
			CircuitOpen:      endpointState(e.state.Load()) == stateCircuitOpen,
			TotalRequests:    e.metrics.TotalRequests.Load(),
			SuccessfulReqs:   e.metrics.SuccessfulReqs.Load(),
			FailedReqs:       e.metrics.FailedReqs.Load(),
			SuccessRate:      e.metrics.SuccessRate(),
			AvgLatencyMs:     e.metrics.AvgLatencyMs(),
			ConsecutiveFails: e.metrics.ConsecutiveFails.Load(),
		})
	}
	return stats
}
