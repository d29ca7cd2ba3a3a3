package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/market"
	"github.com/sabq4org/so7ba.ai/internal/scanner"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
	"github.com/sabq4org/so7ba.ai/internal/signals"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// CandidateScanner discovery stage
type CandidateScanner interface {
	Run(ctx context.Context) (*scanner.Result, error)
}

// SignalRegistry evaluation stage
type SignalRegistry interface {
	Prepare(ctx context.Context) error
	EvaluateAll(ctx context.Context, c contracts.Candidate) []contracts.SignalResult
}

// ContractSelector selection stage (nil contract = nothing qualified)
type ContractSelector interface {
	Select(ctx context.Context, symbol string, dir contracts.Direction, price float64) (*contracts.ContractQuote, error)
}

// ContextBuilder market-wide context (optional)
type ContextBuilder interface {
	Build(ctx context.Context) *market.Context
}

// GEXSummarizer exposes the prepared market gamma summary (optional)
type GEXSummarizer interface {
	Summary() (*signals.GEXSummary, bool)
}

// RunStore persists finished runs (optional)
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
}

// RunPublisher receives finished runs, e.g. the websocket hub (optional)
type RunPublisher interface {
	PublishRun(ctx context.Context, run *Run)
}

// Run holds the results of one scan run
type Run struct {
	ID            string                            `json:"run_id"`
	StartedAt     time.Time                         `json:"started_at"`
	FinishedAt    time.Time                         `json:"finished_at"`
	Duration      time.Duration                     `json:"duration_ns"`
	ScannerCounts map[contracts.DiscoverySource]int `json:"scanner_counts"`
	UsedFallback  bool                              `json:"used_fallback"`
	Market        *market.Context                   `json:"market,omitempty"`
	GEX           *signals.GEXSummary               `json:"gex,omitempty"`
	MaxScore      float64                           `json:"scorecard_max"`
	Scorecards    []contracts.Scorecard             `json:"scorecards"`
	Report        scorecard.Report                  `json:"report"`
	Warnings      []string                          `json:"warnings,omitempty"`
}

// =============================================================================
// Pipeline
// ⭐ SSOT: 스캔 파이프라인 조율은 여기서만
// Scanner → Evaluators → Selector → Aggregator → (Store, Publisher)
// =============================================================================

// Pipeline coordinates one scan run
type Pipeline struct {
	scanner    CandidateScanner
	registry   SignalRegistry
	selector   ContractSelector
	aggregator *scorecard.Aggregator

	market    ContextBuilder
	gex       GEXSummarizer
	store     RunStore
	publisher RunPublisher

	logger *logger.Logger
	now    func() time.Time
}

// New creates a new pipeline
func New(
	scan CandidateScanner,
	registry SignalRegistry,
	selector ContractSelector,
	aggregator *scorecard.Aggregator,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		scanner:    scan,
		registry:   registry,
		selector:   selector,
		aggregator: aggregator,
		logger:     log.WithComponent("pipeline"),
		now:        time.Now,
	}
}

// SetMarketContext 시장 컨텍스트 빌더 설정
func (p *Pipeline) SetMarketContext(b ContextBuilder) { p.market = b }

// SetGEX GEX 요약 제공자 설정
func (p *Pipeline) SetGEX(g GEXSummarizer) { p.gex = g }

// SetStore 실행 결과 저장소 설정
func (p *Pipeline) SetStore(s RunStore) { p.store = s }

// SetPublisher 실행 결과 발행자 설정
func (p *Pipeline) SetPublisher(pub RunPublisher) { p.publisher = pub }

// Run executes scan → evaluate → select → score → report.
// Upstream failures degrade to neutral scores; only cancellation aborts.
func (p *Pipeline) Run(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		StartedAt:  p.now(),
		Scorecards: []contracts.Scorecard{},
		MaxScore:   p.aggregator.MaxScore(),
	}
	log := p.logger.WithField("run_id", run.ID)
	log.Info("Starting scan run")

	if p.market != nil {
		run.Market = p.market.Build(ctx)
	}

	// 1. Scan
	scan, err := p.scanner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	run.ScannerCounts = scan.Counts
	run.UsedFallback = scan.UsedFallback

	// 2. Shared per-run data (flow feed, GEX)
	if err := p.registry.Prepare(ctx); err != nil {
		run.Warnings = append(run.Warnings, fmt.Sprintf("prepare: %v", err))
	}
	if p.gex != nil {
		if s, ok := p.gex.Summary(); ok {
			run.GEX = s
		}
	}

	// 3. Per candidate
	for i, c := range scan.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", run.ID, err)
		}
		card := p.evaluate(ctx, c)
		run.Scorecards = append(run.Scorecards, card)

		log.WithFields(map[string]interface{}{
			"n":         i + 1,
			"of":        len(scan.Candidates),
			"symbol":    c.Symbol,
			"direction": c.Direction,
			"score":     card.Composite,
			"tier":      card.Tier,
			"contract":  card.Contract != nil,
		}).Info("Candidate scored")
	}

	sort.SliceStable(run.Scorecards, func(i, j int) bool {
		return run.Scorecards[i].Composite > run.Scorecards[j].Composite
	})
	run.Report = p.aggregator.Report(run.Scorecards)

	run.FinishedAt = p.now()
	run.Duration = run.FinishedAt.Sub(run.StartedAt)

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to persist scan run")
			run.Warnings = append(run.Warnings, fmt.Sprintf("persist: %v", err))
		}
	}
	if p.publisher != nil {
		p.publisher.PublishRun(ctx, run)
	}

	log.WithFields(map[string]interface{}{
		"candidates": len(run.Scorecards),
		"calls":      len(run.Report.Calls),
		"puts":       len(run.Report.Puts),
		"duration":   run.Duration.String(),
	}).Info("Scan run completed")
	return run, nil
}

func (p *Pipeline) evaluate(ctx context.Context, c contracts.Candidate) contracts.Scorecard {
	results := p.registry.EvaluateAll(ctx, c)

	contract, err := p.selector.Select(ctx, c.Symbol, c.Direction, c.ReferencePrice)
	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"symbol": c.Symbol,
			"error":  err.Error(),
		}).Warn("Contract selection failed")
		contract = nil
	}

	return p.aggregator.Score(c, results, contract)
}
