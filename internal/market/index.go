package market

import (
	"context"
	"fmt"
	"math"

	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
	"github.com/sabq4org/so7ba.ai/internal/gateway"
	"github.com/sabq4org/so7ba.ai/pkg/config"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// IndexSource live index value plus ETF proxy prices
type IndexSource interface {
	IndexValue(ctx context.Context, index string) (float64, error)
	LastTrade(ctx context.Context, ticker string) (*polygon.Trade, error)
	PrevClose(ctx context.Context, symbol string) (float64, error)
}

// Index price sources
const (
	IndexLive    = "live"
	IndexDerived = "derived"
)

// IndexPrice reconciled index level
type IndexPrice struct {
	Symbol        string  `json:"symbol"`
	Value         float64 `json:"value"`
	Source        string  `json:"source"` // live, derived
	Live          float64 `json:"live,omitempty"`
	Derived       float64 `json:"derived,omitempty"`
	ProxySymbol   string  `json:"proxy_symbol"`
	ProxyPrice    float64 `json:"proxy_price,omitempty"`
	Ratio         float64 `json:"ratio"`
	DivergencePct float64 `json:"divergence_pct,omitempty"`
	Diverged      bool    `json:"diverged"`
	Approximate   bool    `json:"approximate"`
}

// =============================================================================
// IndexReconciler
// ⭐ SSOT: 지수 가격 정책 (live 우선, proxy × ratio 보조)
// =============================================================================

// IndexReconciler prefers the live index and cross-checks it against proxy × ratio
type IndexReconciler struct {
	source IndexSource
	config config.IndexConfig
	logger *logger.Logger
}

// NewIndexReconciler creates a new reconciler
func NewIndexReconciler(source IndexSource, cfg config.IndexConfig, log *logger.Logger) *IndexReconciler {
	return &IndexReconciler{
		source: source,
		config: cfg,
		logger: log.WithComponent("index_reconciler"),
	}
}

// Resolve returns live when available, derived (approximate) otherwise.
// Neither available is ErrDataUnavailable.
func (r *IndexReconciler) Resolve(ctx context.Context) (*IndexPrice, error) {
	p := &IndexPrice{
		Symbol:      r.config.IndexSymbol,
		ProxySymbol: r.config.ProxySymbol,
		Ratio:       r.config.ProxyRatio,
	}

	live, liveErr := r.source.IndexValue(ctx, r.config.IndexSymbol)
	if liveErr == nil && live > 0 {
		p.Live = live
	}

	proxy, proxyErr := r.proxyPrice(ctx)
	if proxyErr == nil && proxy > 0 {
		p.ProxyPrice = proxy
		p.Derived = round2(proxy * r.config.ProxyRatio)
	}

	switch {
	case p.Live > 0 && p.Derived > 0:
		p.Value = p.Live
		p.Source = IndexLive
		p.DivergencePct = round2(math.Abs(p.Live-p.Derived) / p.Live * 100)
		if p.DivergencePct > r.config.MaxDivergencePct {
			p.Diverged = true
			r.logger.WithFields(map[string]interface{}{
				"live":           p.Live,
				"derived":        p.Derived,
				"divergence_pct": p.DivergencePct,
			}).Warn("Index live and derived values diverge")
		}
	case p.Live > 0:
		p.Value = p.Live
		p.Source = IndexLive
	case p.Derived > 0:
		p.Value = p.Derived
		p.Source = IndexDerived
		p.Approximate = true
	default:
		return nil, fmt.Errorf("%w: %s (live: %v, proxy: %v)", gateway.ErrDataUnavailable, r.config.IndexSymbol, liveErr, proxyErr)
	}
	return p, nil
}

// proxyPrice last trade, falling back to the previous close
func (r *IndexReconciler) proxyPrice(ctx context.Context) (float64, error) {
	t, err := r.source.LastTrade(ctx, r.config.ProxySymbol)
	if err == nil && t.Price > 0 {
		return t.Price, nil
	}
	return r.source.PrevClose(ctx, r.config.ProxySymbol)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
