package signals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
)

var errGEXNotPrepared = errors.New("gamma exposure not prepared")

type exposureAPI interface {
	SpotExposures(ctx context.Context, ticker string) ([]unusualwhales.StrikeExposure, error)
}

// GEXSummary market-wide gamma/delta exposure for one run
type GEXSummary struct {
	Ticker     string  `json:"ticker"`
	TotalGamma float64 `json:"gamma_value"`
	Gamma      string  `json:"gamma"` // positive | negative
	CallDelta  float64 `json:"call_delta"`
	PutDelta   float64 `json:"put_delta"`
	Bias       string  `json:"delta"` // bullish | bearish
	Strikes    int     `json:"strikes"`
}

// Supports reports whether the delta bias matches the direction
func (s GEXSummary) Supports(d contracts.Direction) bool {
	if d == contracts.DirectionPut {
		return s.Bias == "bearish"
	}
	return s.Bias == "bullish"
}

// SummarizeExposures aggregates strike rows into totals
func SummarizeExposures(ticker string, rows []unusualwhales.StrikeExposure) GEXSummary {
	s := GEXSummary{Ticker: ticker, Strikes: len(rows)}
	for _, r := range rows {
		cg, pg := r.Gamma()
		cd, pd := r.Delta()
		s.TotalGamma += cg + pg
		s.CallDelta += cd
		s.PutDelta += pd
	}
	s.Gamma = "positive"
	if s.TotalGamma < 0 {
		s.Gamma = "negative"
	}
	s.Bias = "bearish"
	if math.Abs(s.CallDelta) > math.Abs(s.PutDelta) {
		s.Bias = "bullish"
	}
	return s
}

// GEXEvaluator computes exposure once per run (Prepare) and scores every
// candidate against the same summary.
type GEXEvaluator struct {
	api    exposureAPI
	ticker string

	mu      sync.RWMutex
	summary *GEXSummary
	err     error
}

// NewGEXEvaluator creates the market-wide gamma exposure evaluator
func NewGEXEvaluator(api exposureAPI, config GEXConfig) *GEXEvaluator {
	return &GEXEvaluator{api: api, ticker: config.Ticker, err: errGEXNotPrepared}
}

// Name returns "gex"
func (e *GEXEvaluator) Name() contracts.EvaluatorName { return contracts.EvaluatorGEX }

// MaxScore is 1
func (e *GEXEvaluator) MaxScore() int { return 1 }

// Prepare fetches strike exposures for the index proxy
func (e *GEXEvaluator) Prepare(ctx context.Context) error {
	rows, err := e.api.SpotExposures(ctx, e.ticker)
	if err == nil && len(rows) == 0 {
		err = fmt.Errorf("no strike exposures for %s", e.ticker)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.summary, e.err = nil, err
		return fmt.Errorf("gex prepare: %w", err)
	}
	s := SummarizeExposures(e.ticker, rows)
	e.summary, e.err = &s, nil
	return nil
}

// Summary returns the prepared summary, if any
func (e *GEXEvaluator) Summary() (*GEXSummary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.summary, e.summary != nil
}

// Evaluate scores 1 when the aggregate delta bias matches the direction
func (e *GEXEvaluator) Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult {
	e.mu.RLock()
	s, err := e.summary, e.err
	e.mu.RUnlock()
	if s == nil {
		return unavailable(e.Name(), e.MaxScore(), err)
	}

	score := 0
	msg := fmt.Sprintf("GEX %s gamma, %s delta: does not support %s", s.Gamma, s.Bias, c.Direction)
	if s.Supports(c.Direction) {
		score = 1
		msg = fmt.Sprintf("GEX %s gamma, %s delta: supports %s", s.Gamma, s.Bias, c.Direction)
	}
	return contracts.SignalResult{
		SubScore:  score,
		Rationale: []string{msg},
		Observations: map[string]any{
			"gamma":       s.Gamma,
			"delta_bias":  s.Bias,
			"gamma_value": s.TotalGamma,
		},
		Available: true,
	}
}
