package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/finviz"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

type stubSource struct {
	provider string
	byDir    map[contracts.Direction][]string
	volume   map[string]int64
	err      error
}

func (s *stubSource) Provider() string { return s.provider }

func (s *stubSource) Discover(ctx context.Context, dir contracts.Direction) ([]contracts.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []contracts.Candidate
	for _, sym := range s.byDir[dir] {
		c, _ := contracts.NewCandidate(sym, dir, 100, contracts.SourceFor(s.provider, dir))
		c.Volume = s.volume[sym]
		out = append(out, c)
	}
	return out, nil
}

func symbols(cs []contracts.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Symbol
	}
	return out
}

func TestScan_DeduplicatesByPriority(t *testing.T) {
	uw := &stubSource{provider: "uw", byDir: map[contracts.Direction][]string{
		contracts.DirectionCall: {"NVDA"},
		contracts.DirectionPut:  {"TSLA"},
	}}
	fv := &stubSource{provider: "finviz", byDir: map[contracts.Direction][]string{
		contracts.DirectionCall: {"NVDA", "AAPL"},
		contracts.DirectionPut:  {"AAPL", "TSLA", "INTC"},
	}}

	res, err := New(DefaultConfig(), logger.NewNop(), uw, fv).Run(context.Background())
	require.NoError(t, err)

	bySymbol := map[string]contracts.Candidate{}
	for _, c := range res.Candidates {
		_, dup := bySymbol[c.Symbol]
		require.False(t, dup, "duplicate %s", c.Symbol)
		bySymbol[c.Symbol] = c
	}

	tests := []struct {
		symbol string
		source contracts.DiscoverySource
		dir    contracts.Direction
	}{
		{"NVDA", contracts.SourceUWBullish, contracts.DirectionCall},
		{"AAPL", contracts.SourceFinvizBullish, contracts.DirectionCall}, // bullish beats bearish
		{"TSLA", contracts.SourceUWBearish, contracts.DirectionPut},
		{"INTC", contracts.SourceFinvizBearish, contracts.DirectionPut},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			c, ok := bySymbol[tt.symbol]
			require.True(t, ok)
			assert.Equal(t, tt.source, c.Source)
			assert.Equal(t, tt.dir, c.Direction)
		})
	}
	assert.Len(t, res.Candidates, 4)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 2, res.Counts[contracts.SourceFinvizBullish])
}

func TestScan_SortAndCap(t *testing.T) {
	uw := &stubSource{
		provider: "uw",
		byDir:    map[contracts.Direction][]string{contracts.DirectionCall: {"A", "B", "C", "D"}},
		volume:   map[string]int64{"A": 10, "B": 300, "C": 300, "D": 50},
	}

	cfg := DefaultConfig()
	cfg.MaxCandidates = 3
	got, err := New(cfg, logger.NewNop(), uw).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D"}, symbols(got)) // stable for ties
}

func TestScan_Fallback(t *testing.T) {
	failing := &stubSource{provider: "uw", err: errors.New("boom")}
	empty := &stubSource{provider: "finviz"}

	res, err := New(DefaultConfig(), logger.NewNop(), failing, empty).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.UsedFallback)
	assert.Equal(t, DefaultConfig().Fallback, symbols(res.Candidates))
	for _, c := range res.Candidates {
		assert.Equal(t, contracts.DirectionCall, c.Direction)
		assert.Equal(t, contracts.SourceFallback, c.Source)
	}
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig(), logger.NewNop(), &stubSource{provider: "uw"}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeScreener struct {
	rows []unusualwhales.ScreenerContract
}

func (f fakeScreener) ScreenerContracts(ctx context.Context, dir contracts.Direction, p unusualwhales.ScreenerParams) ([]unusualwhales.ScreenerContract, error) {
	return f.rows, nil
}

type fakeFinviz struct {
	got  string
	rows []finviz.Row
}

func (f *fakeFinviz) Screen(ctx context.Context, filters string) ([]finviz.Row, error) {
	f.got = filters
	return f.rows, nil
}

func TestUWSource_Discover(t *testing.T) {
	src := NewUWSource(fakeScreener{rows: []unusualwhales.ScreenerContract{
		{UnderlyingSymbol: "nvda", UnderlyingPrice: 131, Volume: 5400, Premium: 1.2e6},
		{UnderlyingSymbol: "NVDA", UnderlyingPrice: 131, Volume: 100},
		{UnderlyingSymbol: ""},
	}}, unusualwhales.DefaultScreenerParams())

	got, err := src.Discover(context.Background(), contracts.DirectionCall)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "NVDA", got[0].Symbol)
	assert.Equal(t, int64(5400), got[0].Volume)
	assert.Equal(t, 1.2e6, got[0].Premium)
	assert.Equal(t, contracts.SourceUWBullish, got[0].Source)
}

func TestFinvizSource_Discover(t *testing.T) {
	api := &fakeFinviz{rows: []finviz.Row{{Ticker: "AMD", Price: 118.5, ChangePct: -2.1, Volume: 9000}}}
	src := NewFinvizSource(api, "bull", "bear")

	got, err := src.Discover(context.Background(), contracts.DirectionPut)
	require.NoError(t, err)
	assert.Equal(t, "bear", api.got)
	require.Len(t, got, 1)
	assert.Equal(t, contracts.SourceFinvizBearish, got[0].Source)
	assert.Equal(t, -2.1, got[0].ChangePct)
}
