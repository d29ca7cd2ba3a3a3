package selection

import (
	"context"
	"errors"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

var errNoQuoteSource = errors.New("reference price unavailable")

type chainAPI interface {
	OptionChain(ctx context.Context, underlying string, f polygon.ChainFilter) ([]contracts.ContractQuote, error)
}

// QuoteSource resolves an underlying price when the scanner had none
type QuoteSource interface {
	PrevClose(ctx context.Context, symbol string) (float64, error)
}

// Selector picks one option contract per candidate
// ⭐ SSOT: 계약 선택 로직은 여기서만
type Selector struct {
	chain    chainAPI
	quotes   QuoteSource
	criteria Criteria
	logger   *logger.Logger
	now      func() time.Time
}

// NewSelector creates a new contract selector
func NewSelector(chain chainAPI, quotes QuoteSource, criteria Criteria, log *logger.Logger) *Selector {
	return &Selector{
		chain:    chain,
		quotes:   quotes,
		criteria: criteria,
		logger:   log.WithComponent("selector"),
		now:      time.Now,
	}
}

// Criteria returns the active criteria
func (s *Selector) Criteria() Criteria {
	return s.criteria
}

// Select returns the best contract or nil when nothing qualifies.
// A nil result is not an error.
func (s *Selector) Select(ctx context.Context, symbol string, dir contracts.Direction, price float64) (*contracts.ContractQuote, error) {
	if price <= 0 {
		resolved, err := s.resolvePrice(ctx, symbol)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("No reference price, skipping selection")
			return nil, nil
		}
		price = resolved
	}

	now := s.now()
	low, high := s.criteria.StrikeWindow(price, dir)
	filter := polygon.ChainFilter{
		Right:         dir.Right(),
		StrikeMin:     low,
		StrikeMax:     high,
		ExpirationMin: now.AddDate(0, 0, s.criteria.MinDTE).Format(contracts.ExpiryISO),
		ExpirationMax: now.AddDate(0, 0, s.criteria.MaxDTE).Format(contracts.ExpiryISO),
		Limit:         s.criteria.ChainLimit,
	}

	chain, err := s.chain.OptionChain(ctx, symbol, filter)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Option chain unavailable")
		return nil, nil
	}

	best, filtered := rank(chain, s.criteria, price, dir)

	s.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"direction": dir,
		"chain":     len(chain),
		"filters":   filtered,
		"selected":  best != nil,
	}).Debug("Selection completed")

	return best, nil
}

func (s *Selector) resolvePrice(ctx context.Context, symbol string) (float64, error) {
	if s.quotes == nil {
		return 0, errNoQuoteSource
	}
	p, err := s.quotes.PrevClose(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if p <= 0 {
		return 0, errNoQuoteSource
	}
	return p, nil
}
