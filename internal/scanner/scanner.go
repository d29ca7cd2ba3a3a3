package scanner

import (
	"context"
	"sort"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Source discovers directional candidates from one upstream
type Source interface {
	// Provider short name used in the source tag (uw, finviz)
	Provider() string
	Discover(ctx context.Context, dir contracts.Direction) ([]contracts.Candidate, error)
}

// Config holds scanner limits
type Config struct {
	MaxCandidates int      `yaml:"max_candidates"`     // downstream 평가 전 상한
	Fallback      []string `yaml:"fallback_watchlist"` // 업스트림 모두 비었을 때
}

// DefaultConfig 기본 스캐너 설정
func DefaultConfig() Config {
	return Config{
		MaxCandidates: 20,
		Fallback:      []string{"TSLA", "NVDA", "AAPL", "MSFT", "AMZN", "META", "AMD", "NFLX"},
	}
}

// Result scan output with per-source counts
type Result struct {
	Candidates   []contracts.Candidate             `json:"candidates"`
	Counts       map[contracts.DiscoverySource]int `json:"scanner_counts"`
	UsedFallback bool                              `json:"used_fallback"`
}

// Scanner merges discovery sources into one deduplicated candidate list
// ⭐ SSOT: 후보 병합/중복제거 우선순위는 여기서만
type Scanner struct {
	sources []Source // priority order
	config  Config
	logger  *logger.Logger
}

// New creates a scanner; sources are listed highest priority first
func New(config Config, log *logger.Logger, sources ...Source) *Scanner {
	return &Scanner{
		sources: sources,
		config:  config,
		logger:  log.WithComponent("scanner"),
	}
}

// Scan returns the merged candidate list
func (s *Scanner) Scan(ctx context.Context) ([]contracts.Candidate, error) {
	res, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

// Run scans bullish then bearish; within each direction sources go in priority order.
// The first occurrence of a symbol wins. A failing source counts as empty.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	res := &Result{Counts: make(map[contracts.DiscoverySource]int)}
	seen := make(map[string]struct{})
	var merged []contracts.Candidate

	for _, dir := range []contracts.Direction{contracts.DirectionCall, contracts.DirectionPut} {
		for _, src := range s.sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			tag := contracts.SourceFor(src.Provider(), dir)
			found, err := src.Discover(ctx, dir)
			if err != nil {
				s.logger.WithFields(map[string]interface{}{
					"source": tag,
					"error":  err.Error(),
				}).Warn("Discovery source failed, treating as empty")
				continue
			}
			res.Counts[tag] = len(found)

			for _, c := range found {
				if _, dup := seen[c.Symbol]; dup {
					continue
				}
				seen[c.Symbol] = struct{}{}
				c.Source = tag
				c.Direction = dir
				merged = append(merged, c)
			}
		}
	}

	if len(merged) == 0 {
		s.logger.Warn("No candidates from any source, using fallback watchlist")
		res.UsedFallback = true
		for _, sym := range s.config.Fallback {
			c, err := contracts.NewCandidate(sym, contracts.DirectionCall, 0, contracts.SourceFallback)
			if err != nil {
				continue
			}
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Volume > merged[j].Volume
	})
	if s.config.MaxCandidates > 0 && len(merged) > s.config.MaxCandidates {
		merged = merged[:s.config.MaxCandidates]
	}
	res.Candidates = merged

	s.logger.WithFields(map[string]interface{}{
		"candidates": len(merged),
		"fallback":   res.UsedFallback,
	}).Info("Scan completed")
	return res, nil
}
