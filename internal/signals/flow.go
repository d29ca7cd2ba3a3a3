package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
)

type flowAPI interface {
	FlowAlerts(ctx context.Context, ticker string, p unusualwhales.FlowParams) ([]unusualwhales.FlowAlert, error)
}

type flowEntry struct {
	alerts []unusualwhales.FlowAlert
	err    error
}

// FlowFeed memoizes flow alerts per symbol for one run so the flow and
// sweep evaluators share a single upstream call. Prepare clears it.
type FlowFeed struct {
	api    flowAPI
	params unusualwhales.FlowParams

	mu    sync.Mutex
	cache map[string]flowEntry
}

// NewFlowFeed creates the shared flow feed
func NewFlowFeed(api flowAPI, config FlowConfig) *FlowFeed {
	return &FlowFeed{
		api:    api,
		params: unusualwhales.FlowParams{Limit: config.Limit, MinPremium: config.MinPremium},
		cache:  make(map[string]flowEntry),
	}
}

// Prepare resets the per-run memo
func (f *FlowFeed) Prepare(ctx context.Context) error {
	f.mu.Lock()
	f.cache = make(map[string]flowEntry)
	f.mu.Unlock()
	return nil
}

// Alerts returns the (memoized) alerts for symbol
func (f *FlowFeed) Alerts(ctx context.Context, symbol string) ([]unusualwhales.FlowAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.cache[symbol]; ok {
		return e.alerts, e.err
	}
	alerts, err := f.api.FlowAlerts(ctx, symbol, f.params)
	f.cache[symbol] = flowEntry{alerts: alerts, err: err}
	return alerts, err
}

// FlowSummary aggregates alerts
type FlowSummary struct {
	CallPremium float64 `json:"call_premium"`
	PutPremium  float64 `json:"put_premium"`
	NetPremium  float64 `json:"net_premium"`
	AskSide     int     `json:"ask_side"`
	BidSide     int     `json:"bid_side"`
	Sweeps      int     `json:"sweeps"`
	Alerts      int     `json:"alerts"`
}

// Summarize totals premium and order side counts
func Summarize(alerts []unusualwhales.FlowAlert) FlowSummary {
	var s FlowSummary
	for _, a := range alerts {
		p := a.TotalPremium.Float()
		switch {
		case a.IsCall():
			s.CallPremium += p
		case a.IsPut():
			s.PutPremium += p
		}
		if a.TotalAskSidePrem.Float() > 0 {
			s.AskSide++
		}
		if a.TotalBidSidePrem.Float() > 0 {
			s.BidSide++
		}
		if a.IsSweep() {
			s.Sweeps++
		}
	}
	s.NetPremium = s.CallPremium - s.PutPremium
	s.Alerts = len(alerts)
	return s
}

// FlowEvaluator scores net premium and order-side agreement
type FlowEvaluator struct {
	feed *FlowFeed
}

// NewFlowEvaluator creates the flow evaluator
func NewFlowEvaluator(feed *FlowFeed) *FlowEvaluator {
	return &FlowEvaluator{feed: feed}
}

// Name returns "flow"
func (e *FlowEvaluator) Name() contracts.EvaluatorName { return contracts.EvaluatorFlow }

// MaxScore is 2
func (e *FlowEvaluator) MaxScore() int { return 2 }

// Evaluate awards 2 when premium and order side both agree, 1 for premium only
func (e *FlowEvaluator) Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult {
	alerts, err := e.feed.Alerts(ctx, c.Symbol)
	if err != nil {
		return unavailable(e.Name(), e.MaxScore(), err)
	}
	s := Summarize(alerts)

	rationale := []string{fmt.Sprintf("Call $%.1fM vs Put $%.1fM", s.CallPremium/1e6, s.PutPremium/1e6)}
	score := 0
	switch {
	case c.Direction == contracts.DirectionCall && s.NetPremium > 0 && s.AskSide > s.BidSide:
		score = 2
		rationale = append(rationale, "Flow strongly bullish")
	case c.Direction == contracts.DirectionPut && s.NetPremium < 0 && s.BidSide >= s.AskSide:
		score = 2
		rationale = append(rationale, "Flow strongly bearish")
	case (c.Direction == contracts.DirectionCall && s.NetPremium > 0) ||
		(c.Direction == contracts.DirectionPut && s.NetPremium < 0):
		score = 1
		rationale = append(rationale, "Flow mildly supports direction")
	default:
		rationale = append(rationale, "Flow does not support direction")
	}

	return contracts.SignalResult{
		SubScore:  score,
		Rationale: rationale,
		Observations: map[string]any{
			"call_premium": s.CallPremium,
			"put_premium":  s.PutPremium,
			"net_premium":  s.NetPremium,
			"ask_side":     s.AskSide,
			"bid_side":     s.BidSide,
			"alerts":       s.Alerts,
		},
		Available: true,
	}
}

// SweepEvaluator awards 1 when any alert was a sweep
type SweepEvaluator struct {
	feed *FlowFeed
}

// NewSweepEvaluator creates the sweep evaluator on the shared feed
func NewSweepEvaluator(feed *FlowFeed) *SweepEvaluator {
	return &SweepEvaluator{feed: feed}
}

// Name returns "sweep"
func (e *SweepEvaluator) Name() contracts.EvaluatorName { return contracts.EvaluatorSweep }

// MaxScore is 1
func (e *SweepEvaluator) MaxScore() int { return 1 }

// Evaluate checks has_sweep / alert_rule
func (e *SweepEvaluator) Evaluate(ctx context.Context, c contracts.Candidate) contracts.SignalResult {
	alerts, err := e.feed.Alerts(ctx, c.Symbol)
	if err != nil {
		return unavailable(e.Name(), e.MaxScore(), err)
	}
	s := Summarize(alerts)

	if s.Sweeps == 0 {
		return contracts.SignalResult{
			SubScore:     0,
			Rationale:    []string{"No sweeps"},
			Observations: map[string]any{"sweeps": 0},
			Available:    true,
		}
	}
	return contracts.SignalResult{
		SubScore:     1,
		Rationale:    []string{fmt.Sprintf("%d sweeps detected", s.Sweeps)},
		Observations: map[string]any{"sweeps": s.Sweeps},
		Available:    true,
	}
}
