package scorecard

import (
	"sort"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// Report recommendation summary for one scan run
type Report struct {
	Calls        []contracts.Scorecard `json:"calls"`
	Puts         []contracts.Scorecard `json:"puts"`
	EarningsRisk []string              `json:"earnings_risk"`
	Evaluated    int                   `json:"evaluated"`
}

// BuildReport keeps the top N calls and puts scoring at least minScore,
// highest first. Equal scores keep input order.
func BuildReport(cards []contracts.Scorecard, minScore float64, topN int) Report {
	r := Report{
		Calls:        []contracts.Scorecard{},
		Puts:         []contracts.Scorecard{},
		EarningsRisk: []string{},
		Evaluated:    len(cards),
	}

	seen := make(map[string]bool)
	for _, sc := range cards {
		if sc.EarningsRisk && !seen[sc.Candidate.Symbol] {
			seen[sc.Candidate.Symbol] = true
			r.EarningsRisk = append(r.EarningsRisk, sc.Candidate.Symbol)
		}
		if sc.Composite < minScore {
			continue
		}
		if sc.Candidate.Direction == contracts.DirectionPut {
			r.Puts = append(r.Puts, sc)
		} else {
			r.Calls = append(r.Calls, sc)
		}
	}

	r.Calls = top(r.Calls, topN)
	r.Puts = top(r.Puts, topN)
	return r
}

// Report builds the report with the configured min score and size
func (a *Aggregator) Report(cards []contracts.Scorecard) Report {
	return BuildReport(cards, a.config.Report.MinScore, a.config.Report.TopN)
}

func top(cards []contracts.Scorecard, n int) []contracts.Scorecard {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Composite > cards[j].Composite
	})
	if n > 0 && len(cards) > n {
		cards = cards[:n]
	}
	return cards
}
