package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// maxBodyBytes caps how much of an upstream body is read into memory
const maxBodyBytes = 8 << 20

// Limiter gates outbound calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewTokenBucket builds a per-minute token bucket limiter
// e.g. Polygon free tier: NewTokenBucket(5, 1) → 1 call / 12s
func NewTokenBucket(perMinute, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

// Response is a fully-read HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client wrapper with a per-call timeout, rate limiting and logging.
// No retries: callers decide based on criticality.
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	limiter    Limiter
	headers    map[string]string
}

// New creates a client with the given per-call timeout
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		headers:    make(map[string]string),
	}
}

// WithLimiter sets the limiter waited on before every request
func (c *Client) WithLimiter(l Limiter) *Client {
	c.limiter = l
	return c
}

// WithHeader adds a header sent with every request
func (c *Client) WithHeader(key, value string) *Client {
	c.headers[key] = value
	return c
}

// Timeout returns the per-call timeout
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", redactURL(err))
	}
	return c.Do(req)
}

// PostJSON performs a POST request with JSON body
func (c *Client) PostJSON(ctx context.Context, url string, data interface{}) (*Response, error) {
	var body io.Reader = http.NoBody
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", redactURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create DELETE request: %w", redactURL(err))
	}
	return c.Do(req)
}

// redactURL drops the query string (api keys) from *url.Error text
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if base, _, found := strings.Cut(uerr.URL, "?"); found {
			uerr.URL = base
		}
	}
	return err
}

// Do executes the request once, reading the whole body
func (c *Client) Do(req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	path := req.URL.Path

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = redactURL(err)
		c.logger.WithFields(map[string]interface{}{
			"method":   req.Method,
			"host":     req.URL.Host,
			"path":     path,
			"duration": time.Since(start),
			"error":    err.Error(),
		}).Warn("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}

	// query string is not logged (api keys)
	c.logger.WithFields(map[string]interface{}{
		"method":      req.Method,
		"host":        req.URL.Host,
		"path":        path,
		"status_code": resp.StatusCode,
		"duration":    out.Duration,
	}).Debug("HTTP request completed")

	return out, nil
}
