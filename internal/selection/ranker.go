package selection

import (
	"math"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// Best returns the highest scoring contract that passes every hard cut, or nil.
// Ties keep the earlier (lower strike) contract.
func Best(chain []contracts.ContractQuote, criteria Criteria, price float64, dir contracts.Direction) *contracts.ContractQuote {
	best, _ := rank(chain, criteria, price, dir)
	return best
}

func rank(chain []contracts.ContractQuote, criteria Criteria, price float64, dir contracts.Direction) (*contracts.ContractQuote, map[string]int) {
	var best *contracts.ContractQuote
	bestScore := math.Inf(-1)
	filtered := make(map[string]int) // filter name -> count

	for i := range chain {
		q := chain[i]
		if q.Mid == 0 {
			q.Mid = contracts.MidPrice(q.Bid, q.Ask)
		}
		if reason := criteria.checkContract(q, price, dir); reason != "" {
			filtered[reason]++
			continue
		}

		score := criteria.score(q)
		if score > bestScore {
			bestScore = score
			best = &q
		}
	}
	return best, filtered
}

// score of a contract that already passed the hard cuts
func (c Criteria) score(q contracts.ContractQuote) float64 {
	delta := math.Abs(q.Greeks.Delta)
	s := 0.0
	if delta >= c.DeltaMin && delta <= c.DeltaMax {
		s += 2
	}
	if q.SpreadPct() < c.MaxSpreadPct {
		s++
	}
	if q.Volume >= c.MinVolume {
		s++
	}
	if q.OpenInterest >= c.MinOpenInterest {
		s++
	}
	// proximity to target delta (0 at ±0.10)
	s += math.Max(0, 1-math.Abs(delta-c.TargetDelta)*10)
	return s
}
