package scorecard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

func result(name contracts.EvaluatorName, score, max int) contracts.SignalResult {
	return contracts.SignalResult{Evaluator: name, SubScore: score, MaxScore: max, Available: true}
}

func newsResult(score int, earnings bool) contracts.SignalResult {
	r := result(contracts.EvaluatorNews, score, 1)
	r.Observations = map[string]any{contracts.FlagEarningsRisk: earnings}
	return r
}

func tightContract() *contracts.ContractQuote {
	return &contracts.ContractQuote{
		Symbol:     "AAPL",
		Expiration: "2025-02-21",
		Strike:     210,
		Right:      contracts.RightCall,
		Bid:        2.40,
		Ask:        2.60,
		Mid:        2.50,
		Greeks:     contracts.Greeks{Delta: 0.3},
	}
}

func candidate(dir contracts.Direction, symbol string) contracts.Candidate {
	return contracts.Candidate{Symbol: symbol, Direction: dir, ReferencePrice: 200, Source: contracts.SourceUWBullish}
}

func TestAggregator_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		results  []contracts.SignalResult
		contract *contracts.ContractQuote
		want     float64
		tier     contracts.Tier
	}{
		{
			name: "all signals",
			results: []contracts.SignalResult{
				newsResult(1, false),
				result(contracts.EvaluatorFlow, 2, 2),
				result(contracts.EvaluatorSweep, 1, 1),
				result(contracts.EvaluatorGEX, 1, 1),
				result(contracts.EvaluatorIVRank, 1, 1),
			},
			contract: tightContract(),
			want:     9,
			tier:     contracts.TierEnter,
		},
		{
			name: "seven enters",
			results: []contracts.SignalResult{
				newsResult(1, false),
				result(contracts.EvaluatorFlow, 2, 2),
				result(contracts.EvaluatorSweep, 0, 1),
				result(contracts.EvaluatorGEX, 1, 1),
				result(contracts.EvaluatorIVRank, 0, 1),
			},
			contract: tightContract(),
			want:     7,
			tier:     contracts.TierEnter,
		},
		{
			name: "six reduced size",
			results: []contracts.SignalResult{
				newsResult(1, false),
				result(contracts.EvaluatorFlow, 1, 2),
				result(contracts.EvaluatorSweep, 0, 1),
				result(contracts.EvaluatorGEX, 1, 1),
				result(contracts.EvaluatorIVRank, 0, 1),
			},
			contract: tightContract(),
			want:     6,
			tier:     contracts.TierReducedSize,
		},
		{
			name: "four skips",
			results: []contracts.SignalResult{
				newsResult(1, true),
				result(contracts.EvaluatorFlow, 1, 2),
				result(contracts.EvaluatorSweep, 0, 1),
				result(contracts.EvaluatorGEX, 1, 1),
				result(contracts.EvaluatorIVRank, 0, 1),
			},
			contract: nil,
			want:     4,
			tier:     contracts.TierSkip,
		},
		{
			name:    "nothing available scores scan and no_earnings",
			results: nil,
			want:    2,
			tier:    contracts.TierSkip,
		},
	}

	a := NewAggregator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := a.Score(candidate(contracts.DirectionCall, "AAPL"), tt.results, tt.contract)
			assert.InDelta(t, tt.want, sc.Composite, 1e-9)
			assert.Equal(t, tt.tier, sc.Tier)
			assert.Equal(t, 9.0, sc.MaxScore)
			assert.Len(t, sc.Components, 8)
		})
	}
}

func TestAggregator_Bounds(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	inflated := []contracts.SignalResult{
		newsResult(5, false),
		result(contracts.EvaluatorFlow, 9, 2),
		result(contracts.EvaluatorSweep, 4, 1),
		result(contracts.EvaluatorGEX, -2, 1),
	}
	sc := a.Score(candidate(contracts.DirectionPut, "TSLA"), inflated, tightContract())

	assert.GreaterOrEqual(t, sc.Composite, 0.0)
	assert.LessOrEqual(t, sc.Composite, sc.MaxScore)
	for _, c := range sc.Components {
		assert.GreaterOrEqual(t, c.SubScore, 0, c.Name)
		assert.LessOrEqual(t, c.SubScore, c.MaxSub, c.Name)
	}
}

func TestAggregator_Idempotent(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	results := []contracts.SignalResult{newsResult(1, true), result(contracts.EvaluatorFlow, 2, 2)}
	c := candidate(contracts.DirectionCall, "NVDA")

	first := a.Score(c, results, tightContract())
	second := a.Score(c, results, tightContract())
	assert.Equal(t, first, second)
}

func TestAggregator_EarningsRiskAndSpread(t *testing.T) {
	a := NewAggregator(DefaultConfig())

	wide := tightContract()
	wide.Bid, wide.Ask = 2.0, 3.0 // 40%

	sc := a.Score(candidate(contracts.DirectionCall, "AAPL"), []contracts.SignalResult{newsResult(1, true)}, wide)
	assert.True(t, sc.EarningsRisk)

	noEarn, ok := sc.Component(contracts.ComponentNoEarnings)
	require.True(t, ok)
	assert.Equal(t, 0, noEarn.SubScore)

	spread, ok := sc.Component(contracts.ComponentSpread)
	require.True(t, ok)
	assert.Equal(t, 0, spread.SubScore)
}

func TestAggregator_Weights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Flow = 2
	a := NewAggregator(cfg)

	assert.Equal(t, 11.0, a.MaxScore())
	sc := a.Score(candidate(contracts.DirectionCall, "AMD"), []contracts.SignalResult{result(contracts.EvaluatorFlow, 2, 2)}, nil)
	flow, _ := sc.Component(contracts.ComponentFlow)
	assert.Equal(t, 4.0, flow.Points)
}

func TestTierFor(t *testing.T) {
	th := DefaultConfig().Thresholds
	tests := []struct {
		score float64
		want  contracts.Tier
	}{
		{9, contracts.TierEnter},
		{7, contracts.TierEnter},
		{6.99, contracts.TierReducedSize},
		{6, contracts.TierReducedSize},
		{5, contracts.TierReducedSize},
		{4.99, contracts.TierSkip},
		{4, contracts.TierSkip},
		{0, contracts.TierSkip},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score, th), "score=%v", tt.score)
	}
}

func TestPlanFor(t *testing.T) {
	p := PlanFor(2.50, DefaultConfig().Plan)
	require.NotNil(t, p)
	assert.Equal(t, 3.13, p.TP1Price)
	assert.Equal(t, 3.75, p.TP2Price)
	assert.Equal(t, 1.75, p.StopPrice)
	assert.Equal(t, 2, p.MaxContracts) // 600 / 250

	p = PlanFor(1.00, DefaultConfig().Plan)
	assert.Equal(t, 3, p.MaxContracts)

	p = PlanFor(7.00, DefaultConfig().Plan)
	assert.Equal(t, 0, p.MaxContracts)

	assert.Nil(t, PlanFor(0, DefaultConfig().Plan))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Weights.GEX = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Thresholds.ReducedMin = 8
	assert.Error(t, cfg.Validate())
}
