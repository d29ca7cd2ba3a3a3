package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/pkg/config"
	"github.com/sabq4org/so7ba.ai/pkg/database"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_history.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "history.scan_runs")
	assert.Contains(t, string(data), "history.trade_events")
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, &config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewRepository(db.Pool, logger.NewNop())
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestRepository_RunRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cand, err := contracts.NewCandidate("aapl", contracts.DirectionCall, 230.5, contracts.SourceUWBullish)
	require.NoError(t, err)

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &pipeline.Run{
		ID:            uuid.NewString(),
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Duration:      3 * time.Second,
		ScannerCounts: map[contracts.DiscoverySource]int{contracts.SourceUWBullish: 1},
		MaxScore:      9,
		Scorecards: []contracts.Scorecard{{
			Candidate: cand,
			Composite: 7.5,
			MaxScore:  9,
			Tier:      contracts.TierEnter,
			Details:   []string{"Flow: bullish"},
			Plan:      &contracts.TradePlan{EntryMid: 2.1, TP1Price: 2.63, TP2Price: 3.15, StopPrice: 1.47, MaxContracts: 2},
		}},
	}
	require.NoError(t, repo.SaveRun(ctx, run))
	// idempotent
	require.NoError(t, repo.SaveRun(ctx, run))

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.RunID)
	assert.Equal(t, int64(3000), latest.DurationMs)
	assert.Equal(t, 1, latest.ScannerCounts[contracts.SourceUWBullish])

	cards, err := repo.Scorecards(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "AAPL", cards[0].Candidate.Symbol)
	assert.Equal(t, 7.5, cards[0].Composite)
	require.NotNil(t, cards[0].Plan)
	assert.Equal(t, 2.63, cards[0].Plan.TP1Price)

	hist, err := repo.SymbolHistory(ctx, "aapl", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hist)

	runs, err := repo.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}

func TestRepository_RecordTrade(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	oc := contracts.OptionContract{Symbol: "AAPL", Expiry: "20250221", Strike: 230, Right: contracts.RightCall, ConID: 500001}
	res := &contracts.TradeResult{
		Status:     contracts.TradeFilled,
		Message:    "TP1_SELL_HALF: sold 2 @ 2.60",
		OrderID:    "PAPER-" + uuid.NewString(),
		Contract:   &oc,
		Side:       contracts.OrderSideSell,
		Quantity:   2,
		Filled:     2,
		FillPrice:  2.6,
		PositionID: 7,
	}
	repo.NotifyMonitor(ctx, &contracts.MonitorReport{Trades: []contracts.PositionCheck{
		{PositionID: 7, Executed: res},
		{PositionID: 8},
	}})

	events, err := repo.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "exit", events[0].Kind)
	assert.Equal(t, res.OrderID, events[0].Result.OrderID)
	assert.Equal(t, 2.6, events[0].Result.FillPrice)
}
