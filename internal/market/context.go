// Package market builds the market-wide context shown next to the scan
// results: net premium tide, largest dark pool prints, recent congress
// disclosures and the reconciled index level.
package market

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Source market-wide analytics feed
type Source interface {
	MarketTide(ctx context.Context) (*unusualwhales.MarketTide, error)
	DarkPoolRecent(ctx context.Context) ([]unusualwhales.DarkPoolTrade, error)
	CongressTrades(ctx context.Context) ([]unusualwhales.CongressTrade, error)
}

// Sentiment market tide reading
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Tide latest net premium reading
type Tide struct {
	Date           string    `json:"date"`
	Timestamp      string    `json:"timestamp,omitempty"`
	NetCallPremium float64   `json:"net_call_premium"`
	NetPutPremium  float64   `json:"net_put_premium"`
	NetVolume      float64   `json:"net_volume"`
	Sentiment      Sentiment `json:"sentiment"`
}

// DarkPoolPrint one off-exchange print
type DarkPoolPrint struct {
	Ticker     string  `json:"ticker"`
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	Notional   float64 `json:"premium"`
	ExecutedAt string  `json:"executed_at,omitempty"`
}

// CongressTrade one congressional disclosure
type CongressTrade struct {
	Member          string `json:"member"`
	Ticker          string `json:"ticker"`
	TxnType         string `json:"txn_type"`
	Amounts         string `json:"amounts"`
	TransactionDate string `json:"transaction_date"`
	FiledAt         string `json:"filed_at_date"`
}

// Context market-wide snapshot. Missing pieces stay nil/empty.
type Context struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Tide      *Tide           `json:"market_tide,omitempty"`
	DarkPool  []DarkPoolPrint `json:"darkpool"`
	Congress  []CongressTrade `json:"congress"`
	Index     *IndexPrice     `json:"index,omitempty"`
}

// ContextConfig display limits
type ContextConfig struct {
	TopDarkPool int `yaml:"top_darkpool"`
	TopCongress int `yaml:"top_congress"`

	// |call - put| below this fraction of the gross premium is neutral
	NeutralBand float64 `yaml:"neutral_band"`
}

// DefaultContextConfig top 5 each, 10% neutral band
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		TopDarkPool: 5,
		TopCongress: 5,
		NeutralBand: 0.10,
	}
}

// =============================================================================
// ContextBuilder
// =============================================================================

// ContextBuilder fetches each context piece independently
type ContextBuilder struct {
	source Source
	index  *IndexReconciler // nil = 지수 생략
	config ContextConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(source Source, index *IndexReconciler, config ContextConfig, log *logger.Logger) *ContextBuilder {
	return &ContextBuilder{
		source: source,
		index:  index,
		config: config,
		logger: log.WithComponent("market_context"),
		now:    time.Now,
	}
}

// Build never fails; unavailable pieces are logged and left empty
func (b *ContextBuilder) Build(ctx context.Context) *Context {
	mc := &Context{
		FetchedAt: b.now(),
		DarkPool:  []DarkPoolPrint{},
		Congress:  []CongressTrade{},
	}

	if t, err := b.source.MarketTide(ctx); err != nil {
		b.warn("market_tide", err)
	} else {
		mc.Tide = TideFrom(t, b.config.NeutralBand)
	}

	if rows, err := b.source.DarkPoolRecent(ctx); err != nil {
		b.warn("darkpool", err)
	} else {
		mc.DarkPool = TopDarkPool(rows, b.config.TopDarkPool)
	}

	if rows, err := b.source.CongressTrades(ctx); err != nil {
		b.warn("congress", err)
	} else {
		mc.Congress = RecentCongress(rows, b.config.TopCongress)
	}

	if b.index != nil {
		if p, err := b.index.Resolve(ctx); err != nil {
			b.warn("index", err)
		} else {
			mc.Index = p
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"tide":     mc.Tide != nil,
		"darkpool": len(mc.DarkPool),
		"congress": len(mc.Congress),
		"index":    mc.Index != nil,
	}).Info("Market context built")
	return mc
}

func (b *ContextBuilder) warn(piece string, err error) {
	b.logger.WithFields(map[string]interface{}{
		"piece": piece,
		"error": err.Error(),
	}).Warn("Market context piece unavailable")
}

// TideFrom classifies net call vs net put premium
func TideFrom(t *unusualwhales.MarketTide, neutralBand float64) *Tide {
	call := t.NetCallPremium.Float()
	put := t.NetPutPremium.Float()
	return &Tide{
		Date:           t.Date,
		Timestamp:      t.Timestamp,
		NetCallPremium: call,
		NetPutPremium:  put,
		NetVolume:      t.NetVolume.Float(),
		Sentiment:      classify(call, put, neutralBand),
	}
}

// classify compares call vs put premium.
// put premium is usually reported negative when puts are bought; sign is kept as is.
func classify(call, put, band float64) Sentiment {
	gross := math.Abs(call) + math.Abs(put)
	if gross == 0 {
		return SentimentNeutral
	}
	diff := call - put
	if math.Abs(diff) <= gross*band {
		return SentimentNeutral
	}
	if diff > 0 {
		return SentimentBullish
	}
	return SentimentBearish
}

// TopDarkPool largest n prints by notional
func TopDarkPool(rows []unusualwhales.DarkPoolTrade, n int) []DarkPoolPrint {
	prints := make([]DarkPoolPrint, 0, len(rows))
	for _, r := range rows {
		prints = append(prints, DarkPoolPrint{
			Ticker:     r.Ticker,
			Price:      r.Price.Float(),
			Size:       r.Size.Float(),
			Notional:   r.Notional(),
			ExecutedAt: r.ExecutedAt,
		})
	}
	sort.SliceStable(prints, func(i, j int) bool {
		return prints[i].Notional > prints[j].Notional
	})
	if n > 0 && len(prints) > n {
		prints = prints[:n]
	}
	return prints
}

// RecentCongress first n disclosures as reported (newest first)
func RecentCongress(rows []unusualwhales.CongressTrade, n int) []CongressTrade {
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	out := make([]CongressTrade, 0, len(rows))
	for _, r := range rows {
		member := r.Name
		if member == "" {
			member = r.Reporter
		}
		out = append(out, CongressTrade{
			Member:          member,
			Ticker:          r.Ticker,
			TxnType:         r.TxnType,
			Amounts:         r.Amounts,
			TransactionDate: r.TransactionDate,
			FiledAt:         r.FiledAtDate,
		})
	}
	return out
}
