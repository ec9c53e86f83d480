package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	processPath = "/process.php"
	statusPath  = "/status.php"

	defaultInitiateTimeout = 60 * time.Second
	defaultStatusTimeout   = 30 * time.Second
	defaultDescription     = "Tontine payment"
)

// TransportError marks calls where no usable answer came back: network
// failures, timeouts, non-2xx answers, undecodable bodies. The caller must
// treat the payment as ambiguous, never as failed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "gateway transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type Config struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	InitiateTimeout time.Duration
	StatusTimeout   time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client talks to Lanari Pay. Credentials come from configuration and ride
// on every request body, as the API demands.
type Client struct {
	config *Config
	client *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.APIKey == "" || config.APISecret == "" {
		return nil, errors.New("api credentials are required")
	}
	if config.InitiateTimeout <= 0 {
		config.InitiateTimeout = defaultInitiateTimeout
	}
	if config.StatusTimeout <= 0 {
		config.StatusTimeout = defaultStatusTimeout
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.InitiateTimeout,
		WriteTimeout:        config.InitiateTimeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	logger.Info("Lanari client initialized", "base_url", config.BaseURL)

	return &Client{
		config: config,
		client: httpClient,
	}, nil
}

// InitiateRequest is the input for starting a charge.
type InitiateRequest struct {
	Amount      int64
	PhoneNumber string
	Description string
}

type initiatePayload struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	Amount        int64  `json:"amount"`
	CustomerPhone string `json:"customer_phone"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
}

type statusPayload struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	TransactionID string `json:"transaction_id"`
}

// Initiate starts a mobile money charge. The response still has to go
// through InitiationAccepted; a decoded body is no promise of success.
func (c *Client) Initiate(ctx context.Context, req *InitiateRequest) (*Response, error) {
	payload := initiatePayload{
		APIKey:        c.config.APIKey,
		APISecret:     c.config.APISecret,
		Amount:        req.Amount,
		CustomerPhone: req.PhoneNumber,
		Currency:      "RWF",
		Description:   sanitizeDescription(req.Description),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, processPath, body, c.config.InitiateTimeout)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("Lanari process call failed", "error", err, "latency_ms", latency)
		return nil, err
	}

	logger.Info("Lanari process call done", "status", resp.Status, "transaction_id", resp.TransactionID, "latency_ms", latency)

	return resp, nil
}

// QueryStatus asks the gateway for the state of a charge.
func (c *Client) QueryStatus(ctx context.Context, transactionID string) (*Response, error) {
	payload := statusPayload{
		APIKey:        c.config.APIKey,
		APISecret:     c.config.APISecret,
		TransactionID: transactionID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.doRequest(ctx, statusPath, body, c.config.StatusTimeout)
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte, timeout time.Duration) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, &TransportError{Err: err}
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, &TransportError{Err: fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())}
	}

	var result Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return &result, nil
}

// sanitizeDescription strips everything the gateway chokes on and falls
// back to a generic label.
func sanitizeDescription(s string) string {
	if s == "" {
		return defaultDescription
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			return r
		}
		return -1
	}, s)
	if strings.TrimSpace(cleaned) == "" {
		return defaultDescription
	}
	return cleaned
}
