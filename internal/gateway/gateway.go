package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sabq4org/so7ba.ai/pkg/httputil"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
	"github.com/sabq4org/so7ba.ai/pkg/redis"
)

// ErrDataUnavailable is returned for every upstream failure: unknown provider,
// transport error, timeout, non-200 status and malformed JSON.
// Callers treat it as an expected outcome and fall back to neutral values.
var ErrDataUnavailable = errors.New("data unavailable")

// Provider names
const (
	Polygon       = "polygon"
	UnusualWhales = "unusualwhales"
	Finviz        = "finviz"
)

// AuthStyle how a provider expects its credential
type AuthStyle int

const (
	AuthNone       AuthStyle = iota
	AuthQueryParam           // ?{param}=key
	AuthBearer               // Authorization: Bearer key
)

// Provider describes one upstream data feed
type Provider struct {
	Name       string
	BaseURL    string
	Auth       AuthStyle
	AuthParam  string // query param name for AuthQueryParam
	Credential string
	Limiter    httputil.Limiter
}

type registered struct {
	Provider
	client *httputil.Client
}

// cacheRule caches responses of endpoints with a given prefix
type cacheRule struct {
	provider string
	prefix   string
	ttl      time.Duration
}

// Gateway is the uniform query surface over all market data providers.
// No retries are performed here.
// ⭐ SSOT: 외부 시세/분석 피드 호출은 Gateway를 통해서만
type Gateway struct {
	mu        sync.RWMutex
	providers map[string]*registered
	timeout   time.Duration
	logger    *logger.Logger

	cache      *redis.Cache
	cacheRules []cacheRule
}

// New creates a gateway with the per-call timeout
func New(timeout time.Duration, log *logger.Logger) *Gateway {
	return &Gateway{
		providers: make(map[string]*registered),
		timeout:   timeout,
		logger:    log.WithComponent("gateway"),
	}
}

// Register adds or replaces a provider
func (g *Gateway) Register(p Provider) {
	client := httputil.New(g.timeout, g.logger).
		WithHeader("Accept", "application/json, text/csv, text/html")
	if p.Auth == AuthBearer && p.Credential != "" {
		client.WithHeader("Authorization", "Bearer "+p.Credential)
	}
	if p.Limiter != nil {
		client.WithLimiter(p.Limiter)
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")

	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[p.Name] = &registered{Provider: p, client: client}
}

// Providers lists registered provider names
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// WithCache fronts idempotent queries with a Redis cache
func (g *Gateway) WithCache(c *redis.Cache) *Gateway {
	g.cache = c
	return g
}

// Cacheable marks endpoints starting with prefix as cacheable for ttl
func (g *Gateway) Cacheable(provider, prefix string, ttl time.Duration) *Gateway {
	g.cacheRules = append(g.cacheRules, cacheRule{provider: provider, prefix: prefix, ttl: ttl})
	return g
}

// Query issues a GET and returns the JSON body.
// Non-JSON bodies are reported as ErrDataUnavailable.
func (g *Gateway) Query(ctx context.Context, provider, endpoint string, params url.Values) (json.RawMessage, error) {
	body, err := g.queryRaw(ctx, provider, endpoint, params, json.Valid)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		g.logger.WithFields(map[string]interface{}{
			"provider": provider,
			"endpoint": endpoint,
		}).Warn("Malformed JSON from provider")
		return nil, unavailable(provider, endpoint, errors.New("malformed JSON"))
	}
	return json.RawMessage(body), nil
}

// QueryInto decodes the JSON body into out
func (g *Gateway) QueryInto(ctx context.Context, provider, endpoint string, params url.Values, out interface{}) error {
	raw, err := g.Query(ctx, provider, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(provider, endpoint, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// QueryRaw issues a GET and returns the body as-is (CSV exports, HTML)
func (g *Gateway) QueryRaw(ctx context.Context, provider, endpoint string, params url.Values) ([]byte, error) {
	return g.queryRaw(ctx, provider, endpoint, params, nil)
}

// queryRaw caches only bodies accepted by valid (nil = any 200 body)
func (g *Gateway) queryRaw(ctx context.Context, provider, endpoint string, params url.Values, valid func([]byte) bool) ([]byte, error) {
	g.mu.RLock()
	p, ok := g.providers[provider]
	g.mu.RUnlock()
	if !ok {
		return nil, unavailable(provider, endpoint, errors.New("unknown provider"))
	}

	if ttl, ok := g.cacheTTL(provider, endpoint); ok {
		key := redis.QueryKey(provider, endpoint, params.Encode())
		return g.cache.GetOrFetchValid(ctx, key, ttl, func() ([]byte, error) {
			return g.fetch(ctx, p, endpoint, params)
		}, valid)
	}
	return g.fetch(ctx, p, endpoint, params)
}

func (g *Gateway) fetch(ctx context.Context, p *registered, endpoint string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if p.Auth == AuthQueryParam && p.Credential != "" {
		q.Set(p.AuthParam, p.Credential)
	}

	fullURL := p.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	resp, err := p.client.Get(ctx, fullURL)
	if err != nil {
		return nil, unavailable(p.Name, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.WithFields(map[string]interface{}{
			"provider":    p.Name,
			"endpoint":    endpoint,
			"status_code": resp.StatusCode,
		}).Warn("Provider returned non-200")
		return nil, unavailable(p.Name, endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func (g *Gateway) cacheTTL(provider, endpoint string) (time.Duration, bool) {
	if g.cache == nil {
		return 0, false
	}
	for _, r := range g.cacheRules {
		if r.provider == provider && strings.HasPrefix(endpoint, r.prefix) {
			return r.ttl, true
		}
	}
	return 0, false
}

func unavailable(provider, endpoint string, cause error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, provider, endpoint, cause)
}

// Querier is the read surface provider clients depend on
type Querier interface {
	Query(ctx context.Context, provider, endpoint string, params url.Values) (json.RawMessage, error)
	QueryInto(ctx context.Context, provider, endpoint string, params url.Values, out interface{}) error
	QueryRaw(ctx context.Context, provider, endpoint string, params url.Values) ([]byte, error)
}

var _ Querier = (*Gateway)(nil)
