package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry settings for calls to collaborating services
type Config struct {
	// Retries is the number of attempts after the first one
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Timeout   time.Duration
}

// DefaultConfig returns the default outbound configuration
func DefaultConfig() Config {
	return Config{
		Retries:   6,
		BaseDelay: 2 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		Timeout:   10 * time.Second,
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, string(e.Body))
}

// Retryable reports whether the status is worth retrying
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Request describes a single JSON call
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Client performs JSON HTTP calls with exponential backoff
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// New creates a new Client
func New(cfg Config, logger *slog.Logger) *Client {
	return NewWithHTTPClient(&http.Client{Timeout: cfg.Timeout}, cfg, logger)
}

// NewWithHTTPClient creates a Client over an existing http.Client
func NewWithHTTPClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
	}
}

// Do sends the request, decoding a successful JSON response into result.
// A *[]byte result receives the raw body instead.
// Transport failures, 5xx and 429 responses are retried; other errors are not.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, req, payload, result)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Warn("outbound request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		return err
	}

	return backoff.Retry(operation, c.policy(ctx))
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	if c.cfg.MaxDelay > 0 {
		exp.MaxInterval = c.cfg.MaxDelay
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(c.cfg.Retries, 0))), ctx)
}

func (c *Client) once(ctx context.Context, req Request, payload []byte, result any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	if raw, ok := result.(*[]byte); ok {
		*raw = respBody
		return nil
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
	}
	return nil
}
