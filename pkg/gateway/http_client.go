package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
)

// maxResponseBody bounds how much of a gateway response is read.
const maxResponseBody = 1 << 20

var ErrMissingCredentials = errors.New("gateway key id and secret are required")

// HTTPClient calls the gateway REST API with basic auth.
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	breaker   *CircuitBreaker
	logger    *slog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) HTTPClientOption {
	return func(h *HTTPClient) {
		h.breaker = cb
	}
}

func WithLogger(l *slog.Logger) HTTPClientOption {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTPClient returns ErrMissingCredentials when the key pair is not set.
func NewHTTPClient(cfg Config, opts ...HTTPClientOption) (*HTTPClient, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, ErrMissingCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: timeout},
		breaker:   NewCircuitBreaker(cfg.BreakerFailures, 1, cfg.BreakerCooldown),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("gateway_client"))
	return c, nil
}

func (c *HTTPClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, ErrBadRequest.WithMessage("order amount must be positive")
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.breaker != nil && !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return ErrBadRequest.WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return ErrUnknown.WithCause(err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure()
		cerr := ClassifyError(err)
		c.logger.WarnContext(ctx, "gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			logger.Duration(time.Since(start)),
			logger.Error(cerr),
		)
		return cerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.recordFailure()
		return ClassifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env errorEnvelope
		_ = json.Unmarshal(raw, &env)
		detail := env.Error.Description
		if env.Error.Code != "" {
			detail = strings.TrimSpace(env.Error.Code + " " + detail)
		}
		cerr := ClassifyStatus(resp.StatusCode, detail)
		if cerr.Kind == apperr.KindGateway {
			c.recordFailure()
		} else {
			c.recordSuccess()
		}
		c.logger.WarnContext(ctx, "gateway returned error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", cerr.Code),
		)
		return cerr
	}

	c.recordSuccess()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ErrUnknown.WithMessage("failed to decode gateway response").WithCause(err)
	}
	return nil
}

func (c *HTTPClient) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

func (c *HTTPClient) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}
