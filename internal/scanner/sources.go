package scanner

import (
	"context"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/finviz"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
)

// =============================================================================
// Options-activity source (Unusual Whales screener)
// =============================================================================

type screenerAPI interface {
	ScreenerContracts(ctx context.Context, dir contracts.Direction, p unusualwhales.ScreenerParams) ([]unusualwhales.ScreenerContract, error)
}

// UWSource discovers symbols with unusual directional option activity
type UWSource struct {
	api    screenerAPI
	params unusualwhales.ScreenerParams
}

// NewUWSource creates the options-activity source
func NewUWSource(api screenerAPI, params unusualwhales.ScreenerParams) *UWSource {
	return &UWSource{api: api, params: params}
}

// Provider returns "uw"
func (s *UWSource) Provider() string { return "uw" }

// Discover returns one candidate per underlying (first row wins)
func (s *UWSource) Discover(ctx context.Context, dir contracts.Direction) ([]contracts.Candidate, error) {
	rows, err := s.api.ScreenerContracts(ctx, dir, s.params)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]contracts.Candidate, 0, len(rows))
	for _, r := range rows {
		c, err := contracts.NewCandidate(r.Symbol(), dir, r.Price(), contracts.SourceFor(s.Provider(), dir))
		if err != nil {
			continue
		}
		if _, dup := seen[c.Symbol]; dup {
			continue
		}
		seen[c.Symbol] = struct{}{}
		c.Volume = int64(r.Volume.Float())
		c.Premium = r.Premium.Float()
		c.RawMetrics = map[string]any{
			"premium":       c.Premium,
			"open_interest": r.OpenInterest.Float(),
			"option_symbol": r.OptionSymbol,
		}
		out = append(out, c)
	}
	return out, nil
}

// =============================================================================
// Technical source (Finviz screener)
// =============================================================================

type screenAPI interface {
	Screen(ctx context.Context, filters string) ([]finviz.Row, error)
}

// FinvizSource discovers symbols from technical screens
type FinvizSource struct {
	api     screenAPI
	bullish string
	bearish string
}

// NewFinvizSource creates the technical source with per-direction filters
func NewFinvizSource(api screenAPI, bullishFilters, bearishFilters string) *FinvizSource {
	return &FinvizSource{api: api, bullish: bullishFilters, bearish: bearishFilters}
}

// Provider returns "finviz"
func (s *FinvizSource) Provider() string { return "finviz" }

// Discover runs the direction's screen
func (s *FinvizSource) Discover(ctx context.Context, dir contracts.Direction) ([]contracts.Candidate, error) {
	filters := s.bullish
	if dir == contracts.DirectionPut {
		filters = s.bearish
	}

	rows, err := s.api.Screen(ctx, filters)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.Candidate, 0, len(rows))
	for _, r := range rows {
		c, err := contracts.NewCandidate(r.Ticker, dir, r.Price, contracts.SourceFor(s.Provider(), dir))
		if err != nil {
			continue
		}
		c.Volume = r.Volume
		c.ChangePct = r.ChangePct
		c.RawMetrics = map[string]any{"change_pct": r.ChangePct}
		out = append(out, c)
	}
	return out, nil
}
