package signals

import (
	"context"
	"fmt"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

type ivRankAPI interface {
	IVRank(ctx context.Context, ticker string) (float64, error)
}

// IVRankEvaluator awards 1 when the 1y IV rank sits inside the target band
type IVRankEvaluator struct {
	api    ivRankAPI
	config IVRankConfig
}

// NewIVRankEvaluator creates the IV rank evaluator
func NewIVRankEvaluator(api ivRankAPI, config IVRankConfig) *IVRankEvaluator {
	return &IVRankEvaluator{api: api, config: config}
}

// Name returns "iv_rank"
func (e *IVRankEvaluator) Name() contracts.EvaluatorName { return contracts.EvaluatorIVRank }

// MaxScore is 1
func (e *IVRankEvaluator) MaxScore() int { return 1 }

// Evaluate checks min <= rank <= max (inclusive)
func (e *IVRankEvaluator) Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult {
	rank, err := e.api.IVRank(ctx, c.Symbol)
	if err != nil {
		return unavailable(e.Name(), e.MaxScore(), err)
	}

	in := rank >= e.config.Min && rank <= e.config.Max
	score := 0
	msg := fmt.Sprintf("IV rank %.0f%% outside [%.0f, %.0f]", rank, e.config.Min, e.config.Max)
	if in {
		score = 1
		msg = fmt.Sprintf("IV rank %.0f%% in band", rank)
	}
	return contracts.SignalResult{
		SubScore:     score,
		Rationale:    []string{msg},
		Observations: map[string]any{"iv_rank": rank, "in_band": in},
		Available:    true,
	}
}
