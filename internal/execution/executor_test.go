package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
	"github.com/sabq4org/so7ba.ai/internal/ledger"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

type fakeMarket struct {
	snapshot *contracts.ContractQuote
	snapErr  error
	last     *polygon.Trade
}

func (f *fakeMarket) OptionSnapshot(ctx context.Context, oc contracts.OptionContract) (*contracts.ContractQuote, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snapshot, nil
}

func (f *fakeMarket) LastTrade(ctx context.Context, ticker string) (*polygon.Trade, error) {
	if f.last == nil {
		return nil, errors.New("no trades")
	}
	return f.last, nil
}

func marketQuote(bid, ask float64) *contracts.ContractQuote {
	return &contracts.ContractQuote{
		Ticker:            "O:AAPL250221C00230000",
		Symbol:            "AAPL",
		Expiration:        "2025-02-21",
		Strike:            230,
		Right:             contracts.RightCall,
		Bid:               bid,
		Ask:               ask,
		Mid:               contracts.MidPrice(bid, ask),
		Greeks:            contracts.Greeks{Delta: 0.312345, Gamma: 0.041, Theta: -0.052, Vega: 0.118},
		ImpliedVolatility: 0.383333,
		OpenInterest:      1520,
	}
}

type executorFixture struct {
	market   *fakeMarket
	broker   *PaperBroker
	store    *ledger.Store
	executor *Executor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	log := logger.NewNop()
	f := &executorFixture{
		market: &fakeMarket{snapshot: marketQuote(2.40, 2.60), last: &polygon.Trade{Price: 2.55, Size: 3}},
		broker: NewPaperBroker(10000),
		store:  ledger.NewStore(filepath.Join(t.TempDir(), "trades_log.json"), log),
	}
	f.broker.SetQuote(testContract(), contracts.BrokerQuote{Bid: 2.40, Ask: 2.60, Last: 2.55})

	gate := NewCapitalGate(DefaultCapitalGateConfig(), log)
	f.executor = NewExecutor(f.market, f.broker, f.store, gate, nil, fastFill, log)
	f.executor.now = func() time.Time { return monitorNow }
	return f
}

func TestExecutor_Verify(t *testing.T) {
	f := newExecutorFixture(t)

	res := f.executor.Verify(context.Background(), testContract())
	assert.True(t, res.Verified)
	assert.Equal(t, "O:AAPL250221C00230000", res.Ticker)
	assert.Equal(t, 2.55, res.LastPrice)
	assert.Equal(t, 2.5, res.Mid)
	assert.Equal(t, 0.2, res.Spread)
	assert.Equal(t, 8.0, res.SpreadPct)
	assert.True(t, res.SpreadOK)
	assert.Equal(t, 0.3123, res.Greeks.Delta)
	assert.Equal(t, 0.3833, res.IV)
	assert.Equal(t, int64(1520), res.OpenInterest)
}

func TestExecutor_VerifyEdges(t *testing.T) {
	t.Run("one-sided market", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.market.snapshot = marketQuote(0, 2.60)

		res := f.executor.Verify(context.Background(), testContract())
		assert.True(t, res.Verified)
		assert.Equal(t, 999.0, res.SpreadPct)
		assert.False(t, res.SpreadOK)
	})

	t.Run("wide spread", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.market.snapshot = marketQuote(2.00, 3.00)

		res := f.executor.Verify(context.Background(), testContract())
		assert.Equal(t, 40.0, res.SpreadPct)
		assert.False(t, res.SpreadOK)
	})

	t.Run("snapshot unavailable", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.market.snapErr = errors.New("not entitled")
		f.market.last = nil

		res := f.executor.Verify(context.Background(), testContract())
		assert.False(t, res.Verified)
		assert.Contains(t, res.Message, "not entitled")
		assert.Zero(t, res.LastPrice)
	})

	t.Run("bad expiry", func(t *testing.T) {
		f := newExecutorFixture(t)
		oc := testContract()
		oc.Expiry = "next friday"

		res := f.executor.Verify(context.Background(), oc)
		assert.False(t, res.Verified)
		assert.Empty(t, res.Ticker)
	})
}

func TestExecutor_BuyFilled(t *testing.T) {
	f := newExecutorFixture(t)

	res := f.executor.Buy(context.Background(), testContract(), 2, 0)
	require.Equal(t, contracts.TradeFilled, res.Status, res.Message)
	assert.Equal(t, 1, res.PositionID)
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, 2.5, res.FillPrice)
	assert.Equal(t, 500.0, res.TotalCost)
	assert.NotEmpty(t, res.OrderID)
	require.NotNil(t, res.Contract)
	assert.NotZero(t, res.Contract.ConID)

	require.NotNil(t, res.Plan)
	assert.InDelta(t, 3.13, res.Plan.TP1Price, 1e-9)
	assert.InDelta(t, 3.75, res.Plan.TP2Price, 1e-9)
	assert.InDelta(t, 1.75, res.Plan.StopPrice, 1e-9)

	open, err := f.store.OpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	p := open[0]
	assert.Equal(t, "20250221", p.Expiration)
	assert.Equal(t, 2, p.QuantityRemaining)
	assert.Equal(t, 2.5, p.EntryPrice)
	assert.Equal(t, 500.0, p.TotalCost)
	assert.Equal(t, 0.3123, p.EntryGreeks.Delta)
	assert.Equal(t, 0.3833, p.EntryIV)
	assert.Equal(t, int64(1520), p.EntryOI)
	assert.Equal(t, monitorNow, p.OpenTime)

	placed := f.broker.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, contracts.OrderSideBuy, placed[0].Side)
	assert.Equal(t, contracts.OrderTypeMarket, placed[0].Type)
}

func TestExecutor_BuyBlocked(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *executorFixture)
		qty    int
		status contracts.TradeStatus
		maxQty int
	}{
		{
			name:   "position too large",
			setup:  func(f *executorFixture) {},
			qty:    10,
			status: contracts.TradeRejected,
			maxQty: 8,
		},
		{
			name:   "spread too wide",
			setup:  func(f *executorFixture) { f.market.snapshot = marketQuote(2.00, 3.00) },
			qty:    1,
			status: contracts.TradeRejected,
		},
		{
			name:   "unknown contract",
			setup:  func(f *executorFixture) { f.broker.SetUnknown(testContract()) },
			qty:    1,
			status: contracts.TradeError,
		},
		{
			name: "three open trades",
			setup: func(f *executorFixture) {
				for _, strike := range []float64{200, 210, 220} {
					oc := testContract()
					oc.Strike = strike
					p, err := contracts.NewPosition(contracts.PositionEntry{Contract: oc, Quantity: 1, FillPrice: 1, At: monitorNow})
					if err != nil {
						panic(err)
					}
					if _, err := f.store.Open(p); err != nil {
						panic(err)
					}
				}
			},
			qty:    1,
			status: contracts.TradeRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t)
			tt.setup(f)
			before, err := f.store.OpenCount()
			require.NoError(t, err)

			res := f.executor.Buy(context.Background(), testContract(), tt.qty, 0)
			assert.Equal(t, tt.status, res.Status)
			assert.NotEmpty(t, res.Message)
			if tt.maxQty > 0 {
				require.NotNil(t, res.MaxQuantity)
				assert.Equal(t, tt.maxQty, *res.MaxQuantity)
			}

			assert.Empty(t, f.broker.Placed())
			after, err := f.store.OpenCount()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestExecutor_BuyUnverifiedProceeds(t *testing.T) {
	f := newExecutorFixture(t)
	f.market.snapErr = errors.New("feed down")

	res := f.executor.Buy(context.Background(), testContract(), 1, 2.55)
	require.Equal(t, contracts.TradeFilled, res.Status, res.Message)
	require.NotNil(t, res.Verify)
	assert.False(t, res.Verify.Verified)
	assert.Equal(t, 2.55, res.FillPrice)

	placed := f.broker.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, contracts.OrderTypeLimit, placed[0].Type)
}

func TestExecutor_BuyNotFilled(t *testing.T) {
	f := newExecutorFixture(t)
	f.broker.SetFillMode(FillNever)

	res := f.executor.Buy(context.Background(), testContract(), 1, 2.10)
	assert.Equal(t, contracts.TradeUnfilled, res.Status)
	assert.Zero(t, res.PositionID)

	state, err := f.broker.OrderStatus(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCanceled, state.Status)

	count, err := f.store.OpenCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExecutor_Sell(t *testing.T) {
	ctx := context.Background()

	t.Run("partial then full", func(t *testing.T) {
		f := newExecutorFixture(t)
		require.Equal(t, contracts.TradeFilled, f.executor.Buy(ctx, testContract(), 2, 0).Status)

		res := f.executor.Sell(ctx, testContract(), 1, 3.00)
		require.Equal(t, contracts.TradeFilled, res.Status, res.Message)
		assert.Equal(t, 1, res.PositionID)

		open, err := f.store.OpenPositions()
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, 1, open[0].QuantityRemaining)

		res = f.executor.Sell(ctx, testContract(), 1, 3.20)
		require.Equal(t, contracts.TradeFilled, res.Status)

		positions, err := f.store.Load()
		require.NoError(t, err)
		require.Len(t, positions, 1)
		p := positions[0]
		assert.False(t, p.IsOpen())
		assert.Equal(t, contracts.CloseManual, p.CloseReason)
		require.NotNil(t, p.ClosePrice)
		assert.Equal(t, 3.20, *p.ClosePrice)
	})

	t.Run("no ledger entry", func(t *testing.T) {
		f := newExecutorFixture(t)

		res := f.executor.Sell(ctx, testContract(), 1, 0)
		assert.Equal(t, contracts.TradeFilled, res.Status)
		assert.Contains(t, res.Message, "(no ledger entry)")
		assert.Zero(t, res.PositionID)
	})

	t.Run("unknown contract", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.broker.SetUnknown(testContract())

		res := f.executor.Sell(ctx, testContract(), 1, 0)
		assert.Equal(t, contracts.TradeError, res.Status)
		assert.Empty(t, f.broker.Placed())
	})
}

func TestExecutor_Portfolio(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	held, err := f.broker.QualifyContract(ctx, testContract())
	require.NoError(t, err)
	f.broker.SetQuote(testContract(), contracts.BrokerQuote{Bid: 2.90, Ask: 3.10})
	f.broker.SetHolding(contracts.BrokerPosition{Contract: held, Quantity: 2, AvgCost: 250})

	flat := testContract()
	flat.Strike = 240
	f.broker.SetHolding(contracts.BrokerPosition{Contract: flat, Quantity: 0, AvgCost: 100})

	view, err := f.executor.Portfolio(ctx)
	require.NoError(t, err)
	require.Len(t, view.Positions, 1)

	pp := view.Positions[0]
	assert.Equal(t, "AAPL 20250221 230C", pp.Symbol)
	assert.Equal(t, 2, pp.Quantity)
	assert.Equal(t, 2.5, pp.Entry)
	assert.Equal(t, 3.0, pp.Current)
	assert.Equal(t, 20.0, pp.PnLPct)
	assert.Equal(t, 100.0, pp.PnLDollar)

	assert.Len(t, view.Account, len(contracts.AccountTags))
	assert.Equal(t, 10000.0, view.Account[contracts.TagNetLiquidation])
}
