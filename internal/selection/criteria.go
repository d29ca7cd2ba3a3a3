package selection

import (
	"math"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// Criteria defines contract hard cuts
// SSOT: strategy YAML selection
type Criteria struct {
	// Expiration window (calendar days)
	MinDTE int `yaml:"min_dte"`
	MaxDTE int `yaml:"max_dte"`

	// |delta| band
	DeltaMin    float64 `yaml:"delta_min"`
	DeltaMax    float64 `yaml:"delta_max"`
	TargetDelta float64 `yaml:"target_delta"`

	// Mid price band (per share)
	PriceMin float64 `yaml:"price_min"`
	PriceMax float64 `yaml:"price_max"`

	// Liquidity
	MinOpenInterest int64   `yaml:"min_open_interest"`
	MinVolume       int64   `yaml:"min_volume"`
	MaxSpreadPct    float64 `yaml:"max_spread_pct"` // (ask-bid)/mid 상한 (미만이어야 통과)

	// Strike window relative to the underlying price
	CallStrikeLow  float64 `yaml:"call_strike_low"`
	CallStrikeHigh float64 `yaml:"call_strike_high"`
	PutStrikeLow   float64 `yaml:"put_strike_low"`
	PutStrikeHigh  float64 `yaml:"put_strike_high"`

	ChainLimit int `yaml:"chain_limit"`
}

// DefaultCriteria returns default selection criteria
func DefaultCriteria() Criteria {
	return Criteria{
		MinDTE:      5,
		MaxDTE:      15,
		DeltaMin:    0.20,
		DeltaMax:    0.40,
		TargetDelta: 0.30,

		PriceMin: 0.50,
		PriceMax: 8.00,

		MinOpenInterest: 500,
		MinVolume:       100,
		MaxSpreadPct:    0.20,

		CallStrikeLow:  1.00, // ATM ~ 15% OTM
		CallStrikeHigh: 1.15,
		PutStrikeLow:   0.85,
		PutStrikeHigh:  1.00,

		ChainLimit: 50,
	}
}

// StrikeWindow returns the [low, high] strike range for the direction
func (c Criteria) StrikeWindow(price float64, dir contracts.Direction) (float64, float64) {
	if dir == contracts.DirectionPut {
		return price * c.PutStrikeLow, price * c.PutStrikeHigh
	}
	return price * c.CallStrikeLow, price * c.CallStrikeHigh
}

// checkContract checks if a quote passes all hard cuts.
// Returns empty string if passed, otherwise returns filter name
func (c Criteria) checkContract(q contracts.ContractQuote, price float64, dir contracts.Direction) string {
	// Right must match direction
	if q.Right != dir.Right() {
		return "right"
	}

	// Strike window (server filter에 더해 재확인)
	if price > 0 {
		low, high := c.StrikeWindow(price, dir)
		if q.Strike < low-1e-9 || q.Strike > high+1e-9 {
			return "strike"
		}
	}

	delta := math.Abs(q.Greeks.Delta)
	if delta < c.DeltaMin || delta > c.DeltaMax {
		return "delta"
	}

	mid := q.Mid
	if mid == 0 {
		mid = contracts.MidPrice(q.Bid, q.Ask)
	}
	if mid < c.PriceMin || mid > c.PriceMax {
		return "price"
	}

	if q.OpenInterest < c.MinOpenInterest {
		return "open_interest"
	}

	if q.Volume < c.MinVolume {
		return "volume"
	}

	if q.SpreadPct() >= c.MaxSpreadPct {
		return "spread"
	}

	return ""
}
