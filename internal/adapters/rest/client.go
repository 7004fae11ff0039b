// Package rest implements the HTTP client for the HU Lab portal API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "hulab-client/1.0"
)

// TokenSource supplies the bearer token attached to authenticated requests.
// An empty token leaves the request anonymous.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a plain function to the TokenSource interface.
type TokenSourceFunc func() string

// Token returns f().
func (f TokenSourceFunc) Token() string { return f() }

// Client talks to the portal REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	tokens     TokenSource

	// Logging
	logger logger.Logger
}

// NewClient creates a portal client with configuration options.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		logger:     logger.Get().Named("rest"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope mirrors the portal's JSON response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
	Message string          `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// getJSON issues a GET and decodes the envelope's data field into out.
// endpoint is the metrics label for the route, with IDs left as :id.
func (c *Client) getJSON(ctx context.Context, path, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, endpoint, nil, out)
}

// doJSON issues a request with an optional JSON body and decodes the
// envelope's data field into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	return c.do(req, endpoint, out)
}

// do sends the request, records metrics, and maps non-2xx responses to a
// typed *APIError.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("rest", "transport_error")
		return fmt.Errorf("%s %s: %w", req.Method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status := strconv.Itoa(resp.StatusCode)
	metrics.RecordHTTPRequest(endpoint, req.Method, status)
	metrics.RecordHTTPRequestDuration(endpoint, req.Method, status, float64(time.Since(start).Milliseconds()))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.logger.Debug(req.Context(), "request failed",
			logger.String("endpoint", endpoint),
			logger.String("method", req.Method),
			logger.Int("status", resp.StatusCode),
			logger.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	// The portal wraps payloads in an envelope; a few endpoints return the
	// resource bare. Try the envelope first and fall back to the raw body.
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError builds an *APIError from a non-2xx response body.
func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apiErr
	}
	if env.Error != nil {
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
	}
	if apiErr.Code == "" && env.Message != "" {
		apiErr.Message = env.Message
	}
	return apiErr
}
