package contracts

// =============================================================================
// Signal Results
// ⭐ SSOT: 평가기 결과 타입은 여기서만
// =============================================================================

// EvaluatorName 평가기 식별자
type EvaluatorName string

const (
	EvaluatorNews   EvaluatorName = "news"
	EvaluatorFlow   EvaluatorName = "flow"
	EvaluatorSweep  EvaluatorName = "sweep"
	EvaluatorGEX    EvaluatorName = "gex"
	EvaluatorIVRank EvaluatorName = "iv_rank"
)

// Observation keys shared between evaluators and the aggregator
const (
	FlagEarningsRisk = "earnings_risk"
)

// SignalResult 평가기 1회 결과 (불변)
type SignalResult struct {
	Evaluator    EvaluatorName  `json:"evaluator"`
	SubScore     int            `json:"sub_score"`
	MaxScore     int            `json:"max_score"`
	Rationale    []string       `json:"rationale"`
	Observations map[string]any `json:"observations,omitempty"`
	Available    bool           `json:"available"`
}

// Unavailable is the neutral result for an evaluator that had no data
func Unavailable(name EvaluatorName, maxScore int, reason string) SignalResult {
	return SignalResult{
		Evaluator: name,
		SubScore:  0,
		MaxScore:  maxScore,
		Rationale: []string{reason},
		Available: false,
	}
}

// Clamped returns a copy with SubScore bounded to [0, MaxScore]
func (r SignalResult) Clamped() SignalResult {
	if r.SubScore < 0 {
		r.SubScore = 0
	}
	if r.SubScore > r.MaxScore {
		r.SubScore = r.MaxScore
	}
	return r
}

// Flag reads a boolean observation; missing or non-bool is false
func (r SignalResult) Flag(key string) bool {
	v, ok := r.Observations[key].(bool)
	return ok && v
}

// FindResult returns the result produced by name
func FindResult(results []SignalResult, name EvaluatorName) (SignalResult, bool) {
	for _, r := range results {
		if r.Evaluator == name {
			return r, true
		}
	}
	return SignalResult{}, false
}
