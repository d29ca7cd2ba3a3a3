package scorecard

import (
	"fmt"
	"math"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// Aggregator combines signal results into a Scorecard
// ⭐ SSOT: 종합 점수/티어 계산은 여기서만
type Aggregator struct {
	config Config
}

// NewAggregator creates a new aggregator
func NewAggregator(config Config) *Aggregator {
	return &Aggregator{config: config}
}

// Config returns the active scoring config
func (a *Aggregator) Config() Config {
	return a.config
}

// MaxScore Σ max_sub * weight
func (a *Aggregator) MaxScore() float64 {
	w := a.config.Weights
	return w.Scan + w.News + 2*w.Flow + w.Sweep + w.IVRank + w.GEX + w.NoEarnings + w.Spread
}

// Score builds the scorecard. Pure: same inputs give the same output.
func (a *Aggregator) Score(c contracts.Candidate, results []contracts.SignalResult, contract *contracts.ContractQuote) contracts.Scorecard {
	w := a.config.Weights

	news, _ := contracts.FindResult(results, contracts.EvaluatorNews)
	earnings := news.Flag(contracts.FlagEarningsRisk)

	components := []contracts.ComponentScore{
		component(contracts.ComponentScan, 1, 1, w.Scan),
		fromResult(contracts.ComponentNews, results, contracts.EvaluatorNews, 1, w.News),
		fromResult(contracts.ComponentFlow, results, contracts.EvaluatorFlow, 2, w.Flow),
		fromResult(contracts.ComponentSweep, results, contracts.EvaluatorSweep, 1, w.Sweep),
		fromResult(contracts.ComponentIVRank, results, contracts.EvaluatorIVRank, 1, w.IVRank),
		fromResult(contracts.ComponentGEX, results, contracts.EvaluatorGEX, 1, w.GEX),
		component(contracts.ComponentNoEarnings, boolScore(!earnings), 1, w.NoEarnings),
		component(contracts.ComponentSpread, boolScore(contract != nil && contract.SpreadPct() < a.config.SpreadCeiling), 1, w.Spread),
	}

	maxScore := a.MaxScore()
	total := 0.0
	for _, comp := range components {
		total += comp.Points
	}
	total = math.Max(0, math.Min(total, maxScore))
	total = math.Round(total*100) / 100

	details := make([]string, 0, len(results)+2)
	for _, r := range results {
		details = append(details, r.Rationale...)
	}
	if earnings {
		details = append(details, "Earnings risk: reduce size or skip")
	}

	var plan *contracts.TradePlan
	var selected *contracts.ContractQuote
	if contract != nil {
		q := *contract
		selected = &q
		plan = PlanFor(q.Mid, a.config.Plan)
		details = append(details, fmt.Sprintf("Contract %s %s %.2f exp %s (delta %.2f, spread %.1f%%)",
			q.Symbol, q.Right.Label(), q.Strike, q.Expiration, q.Greeks.Delta, q.SpreadPct()*100))
	} else {
		details = append(details, "No liquid contract found")
	}

	sc := contracts.Scorecard{
		Candidate:    c,
		Composite:    total,
		MaxScore:     maxScore,
		Tier:         TierFor(total, a.config.Thresholds),
		Components:   components,
		Contract:     selected,
		EarningsRisk: earnings,
		Details:      details,
		Plan:         plan,
	}

	return sc
}

// TierFor maps a composite score to a tier
func TierFor(score float64, t Thresholds) contracts.Tier {
	switch {
	case score >= t.EnterMin:
		return contracts.TierEnter
	case score >= t.ReducedMin:
		return contracts.TierReducedSize
	default:
		return contracts.TierSkip
	}
}

// PlanFor computes targets from the entry mid. Nil without a usable mid.
func PlanFor(mid float64, cfg PlanConfig) *contracts.TradePlan {
	if mid <= 0 {
		return nil
	}
	maxContracts := int(cfg.MaxRiskDollars / (mid * 100))
	if maxContracts > cfg.MaxContracts {
		maxContracts = cfg.MaxContracts
	}
	return &contracts.TradePlan{
		EntryMid:     mid,
		TP1Price:     round2(mid * cfg.TP1Multiplier),
		TP2Price:     round2(mid * cfg.TP2Multiplier),
		StopPrice:    round2(mid * cfg.StopMultiplier),
		MaxContracts: maxContracts,
	}
}

func fromResult(name string, results []contracts.SignalResult, evaluator contracts.EvaluatorName, maxSub int, weight float64) contracts.ComponentScore {
	r, ok := contracts.FindResult(results, evaluator)
	if !ok {
		return component(name, 0, maxSub, weight)
	}
	return component(name, r.SubScore, maxSub, weight)
}

func component(name string, sub, maxSub int, weight float64) contracts.ComponentScore {
	if sub < 0 {
		sub = 0
	}
	if sub > maxSub {
		sub = maxSub
	}
	return contracts.ComponentScore{
		Name:     name,
		SubScore: sub,
		MaxSub:   maxSub,
		Weight:   weight,
		Points:   float64(sub) * weight,
	}
}

func boolScore(b bool) int {
	if b {
		return 1
	}
	return 0
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
