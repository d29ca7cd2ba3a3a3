package gateway

import (
	"github.com/sabq4org/so7ba.ai/pkg/config"
	"github.com/sabq4org/so7ba.ai/pkg/httputil"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
	"github.com/sabq4org/so7ba.ai/pkg/redis"
)

// NewFromConfig registers polygon, unusualwhales and finviz.
// With Redis enabled the providers share a cross-process sliding-window budget
// and idempotent endpoints are cached.
func NewFromConfig(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Gateway {
	g := New(cfg.HTTPTimeout, log)

	var shared *redis.RateLimiter
	if rdb.Enabled() {
		shared = redis.NewRateLimiter(rdb, "so7ba")
	}
	limiterFor := func(name string, p config.ProviderConfig) httputil.Limiter {
		if shared != nil {
			return shared.Bind(redis.PerMinute(name, p.RateLimitPerMinute))
		}
		return httputil.NewTokenBucket(p.RateLimitPerMinute, p.Burst)
	}

	g.Register(Provider{
		Name:       Polygon,
		BaseURL:    cfg.Polygon.BaseURL,
		Auth:       AuthQueryParam,
		AuthParam:  "apiKey",
		Credential: cfg.Polygon.APIKey,
		Limiter:    limiterFor(Polygon, cfg.Polygon),
	})
	g.Register(Provider{
		Name:       UnusualWhales,
		BaseURL:    cfg.UnusualWhales.BaseURL,
		Auth:       AuthBearer,
		Credential: cfg.UnusualWhales.APIKey,
		Limiter:    limiterFor(UnusualWhales, cfg.UnusualWhales),
	})
	g.Register(Provider{
		Name:       Finviz,
		BaseURL:    cfg.Finviz.BaseURL,
		Auth:       AuthQueryParam,
		AuthParam:  "auth",
		Credential: cfg.Finviz.APIKey,
		Limiter:    limiterFor(Finviz, cfg.Finviz),
	})

	if rdb.Enabled() {
		g.WithCache(redis.NewCache(rdb, "so7ba")).
			Cacheable(Polygon, "/v2/reference/news", redis.TTLMedium).
			Cacheable(UnusualWhales, "/api/stock/SPY/spot-exposures", redis.TTLLong).
			Cacheable(UnusualWhales, "/api/stock/", redis.TTLDaily).
			Cacheable(UnusualWhales, "/api/market/market-tide", redis.TTLShort)
	}

	return g
}
