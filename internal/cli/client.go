package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	adminKeyHeader   = "X-Admin-Key"
	adminActorHeader = "X-Admin-Actor"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	adminKey   string
	adminActor string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetLogger routes request tracing to logger
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetAdmin sets the credentials sent to /admin routes
func (c *Client) SetAdmin(key, actor string) {
	c.adminKey = key
	c.adminActor = actor
}

// APIError represents an error response from the API
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error. Login failures also carry an error code
// and diagnosis.
type ErrorResponse struct {
	Error     APIError        `json:"error"`
	ErrorCode string          `json:"error_code"`
	Diagnosis json.RawMessage `json:"diagnosis,omitempty"`
}

func (e *APIError) String() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// ResponseError is returned for any status of 400 or above
type ResponseError struct {
	StatusCode int
	ErrorCode  string
	API        APIError
	Body       []byte
}

func (e *ResponseError) Error() string {
	switch {
	case e.API.Code != "" && e.ErrorCode != "":
		return fmt.Sprintf("HTTP %d: %s [%s]", e.StatusCode, e.API.String(), e.ErrorCode)
	case e.API.Code != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.API.String())
	case e.ErrorCode != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.ErrorCode)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, string(e.Body))
	}
}

// Do performs an HTTP request
func (c *Client) Do(method, path string, body, result any) error {
	target := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.adminKey != "" && strings.HasPrefix(path, "/api/v1/admin/") {
		req.Header.Set(adminKeyHeader, c.adminKey)
		if c.adminActor != "" {
			req.Header.Set(adminActorHeader, c.adminActor)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", resp.Header.Get("X-Request-ID")),
		slog.Duration("duration", time.Since(start)),
	)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		respErr := &ResponseError{StatusCode: resp.StatusCode, Body: respBody}
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			respErr.API = errResp.Error
			respErr.ErrorCode = errResp.ErrorCode
		}
		return respErr
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Get performs a GET request
func (c *Client) Get(path string, result any) error {
	return c.Do(http.MethodGet, path, nil, result)
}

// GetQuery performs a GET request with query parameters
func (c *Client) GetQuery(path string, query url.Values, result any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.Do(http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(path string, body, result any) error {
	return c.Do(http.MethodPost, path, body, result)
}

// Patch performs a PATCH request
func (c *Client) Patch(path string, body, result any) error {
	return c.Do(http.MethodPatch, path, body, result)
}
