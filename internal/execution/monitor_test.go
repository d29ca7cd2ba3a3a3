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
	"github.com/sabq4org/so7ba.ai/internal/ledger"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

type fakeSnapshots struct {
	quotes map[string]*contracts.ContractQuote
	err    error
}

func (f *fakeSnapshots) OptionSnapshot(ctx context.Context, oc contracts.OptionContract) (*contracts.ContractQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[oc.String()]
	if !ok {
		return nil, errors.New("no snapshot")
	}
	return q, nil
}

type recordingNotifier struct {
	reports []*contracts.MonitorReport
}

func (r *recordingNotifier) NotifyMonitor(ctx context.Context, report *contracts.MonitorReport) {
	r.reports = append(r.reports, report)
}

var monitorNow = time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)

type monitorFixture struct {
	store     *ledger.Store
	snapshots *fakeSnapshots
	broker    *PaperBroker
	monitor   *PositionMonitor
}

// newMonitorFixture seeds one OPEN position: 4x AAPL 20250221 230C @ 2.00
func newMonitorFixture(t *testing.T, withBroker bool) *monitorFixture {
	t.Helper()
	log := logger.NewNop()
	store := ledger.NewStore(filepath.Join(t.TempDir(), "trades_log.json"), log)

	pos, err := contracts.NewPosition(contracts.PositionEntry{
		Contract:  testContract(),
		Quantity:  4,
		FillPrice: 2.00,
		Greeks:    contracts.Greeks{Delta: 0.30, Gamma: 0.04, Theta: -0.05, Vega: 0.12},
		IV:        0.40,
		OI:        1200,
		At:        monitorNow.Add(-72 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.Open(pos)
	require.NoError(t, err)

	f := &monitorFixture{
		store:     store,
		snapshots: &fakeSnapshots{quotes: map[string]*contracts.ContractQuote{}},
	}

	var broker Broker
	if withBroker {
		f.broker = NewPaperBroker(10000)
		broker = f.broker
	}
	f.monitor = NewPositionMonitor(store, f.snapshots, broker, nil, fastFill, log)
	f.monitor.now = func() time.Time { return monitorNow }
	return f
}

// market sets both the snapshot and (when present) the broker quote
func (f *monitorFixture) market(bid, ask float64, greeks contracts.Greeks, iv float64) {
	oc := testContract()
	f.snapshots.quotes[oc.String()] = &contracts.ContractQuote{
		Symbol:            oc.Symbol,
		Expiration:        "2025-02-21",
		Strike:            oc.Strike,
		Right:             oc.Right,
		Bid:               bid,
		Ask:               ask,
		Mid:               contracts.MidPrice(bid, ask),
		Greeks:            greeks,
		ImpliedVolatility: iv,
	}
	if f.broker != nil {
		f.broker.SetQuote(oc, contracts.BrokerQuote{Bid: bid, Ask: ask})
	}
}

func (f *monitorFixture) position(t *testing.T) contracts.Position {
	t.Helper()
	positions, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	return positions[0]
}

func TestPositionMonitor_TP1SellsHalf(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.market(2.55, 2.65, contracts.Greeks{Delta: 0.45, Gamma: 0.05}, 0.42)

	notifier := &recordingNotifier{}
	f.monitor.SetNotifier(notifier)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)

	check := report.Trades[0]
	assert.Equal(t, 10, check.DTE)
	assert.Equal(t, 30.0, check.PnLPercent)
	assert.Equal(t, contracts.ActionTP1SellHalf, check.Decision.Action)
	assert.Equal(t, 2, check.Decision.Quantity)
	require.NotNil(t, check.Executed)
	assert.Equal(t, contracts.TradeFilled, check.Executed.Status)
	assert.Equal(t, 2, check.Executed.Filled)
	assert.Equal(t, 2, check.Remaining)

	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "delta_drift", report.Alerts[0].Kind)

	placed := f.broker.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, contracts.OrderSideSell, placed[0].Side)
	assert.Equal(t, contracts.OrderTypeMarket, placed[0].Type)
	assert.Equal(t, 2, placed[0].Quantity)

	p := f.position(t)
	assert.True(t, p.IsOpen())
	assert.True(t, p.TP1Hit)
	assert.Equal(t, 2, p.QuantityRemaining)
	assert.Equal(t, 4, p.QuantityOpened)

	require.Len(t, notifier.reports, 1)
	assert.Same(t, report, notifier.reports[0])

	// second pass: TP1 already hit, +30% is a hold
	report, err = f.monitor.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionHold, report.Trades[0].Decision.Action)
	assert.Len(t, f.broker.Placed(), 1)
}

func TestPositionMonitor_DTEExitClosesEverything(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.monitor.now = func() time.Time { return time.Date(2025, 2, 19, 15, 0, 0, 0, time.UTC) }
	f.market(5.90, 6.10, contracts.Greeks{}, 0)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)

	check := report.Trades[0]
	assert.Equal(t, 1, check.DTE)
	assert.Equal(t, 200.0, check.PnLPercent)
	assert.Equal(t, contracts.ActionDTEExit, check.Decision.Action)

	p := f.position(t)
	assert.False(t, p.IsOpen())
	assert.Equal(t, contracts.CloseDTEExit, p.CloseReason)
	assert.Equal(t, 0, p.QuantityRemaining)
	require.NotNil(t, p.ClosePrice)
	assert.Equal(t, 6.0, *p.ClosePrice)

	report, err = f.monitor.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No open positions", report.Message)
	assert.Empty(t, report.Trades)
}

func TestPositionMonitor_PartialStopLossReduces(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.broker.SetFillMode(FillPartial)
	f.market(1.15, 1.25, contracts.Greeks{Delta: 0.22}, 0.40)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)

	check := report.Trades[0]
	assert.Equal(t, contracts.ActionStopLoss, check.Decision.Action)
	require.NotNil(t, check.Executed)
	assert.Equal(t, contracts.TradeUnfilled, check.Executed.Status)
	assert.Equal(t, 2, check.Executed.Filled)

	p := f.position(t)
	assert.True(t, p.IsOpen())
	assert.Equal(t, 2, p.QuantityRemaining)
	assert.False(t, p.TP1Hit)

	state, err := f.broker.OrderStatus(context.Background(), check.Executed.OrderID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCanceled, state.Status)
}

func TestPositionMonitor_RejectedExitLeavesLedger(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.broker.SetFillMode(FillReject)
	f.market(1.15, 1.25, contracts.Greeks{}, 0)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)

	check := report.Trades[0]
	require.NotNil(t, check.Executed)
	assert.Equal(t, contracts.TradeRejected, check.Executed.Status)

	p := f.position(t)
	assert.True(t, p.IsOpen())
	assert.Equal(t, 4, p.QuantityRemaining)
}

func TestPositionMonitor_DryRun(t *testing.T) {
	f := newMonitorFixture(t, true)
	f.monitor.SetDryRun(true)
	f.market(2.55, 2.65, contracts.Greeks{Delta: 0.31}, 0.40)

	before, err := f.store.Load()
	require.NoError(t, err)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, contracts.ActionTP1SellHalf, report.Trades[0].Decision.Action)
	assert.Nil(t, report.Trades[0].Executed)

	assert.Empty(t, f.broker.Placed())
	after, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPositionMonitor_WithoutBroker(t *testing.T) {
	f := newMonitorFixture(t, false)
	f.market(1.30, 1.40, contracts.Greeks{Delta: 0.25}, 0.50)

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)

	check := report.Trades[0]
	assert.InDelta(t, 1.35, check.CurrentPrice, 1e-9)
	assert.Equal(t, contracts.ActionStopLoss, check.Decision.Action)
	assert.Nil(t, check.Executed)
	assert.InDelta(t, 25.0, check.IVChangePct, 1e-9)
	assert.InDelta(t, -0.05, check.GreeksChange.Delta, 1e-9)

	assert.Len(t, report.Alerts, 1)
	assert.Equal(t, "iv_change", report.Alerts[0].Kind)
	assert.Equal(t, 4, f.position(t).QuantityRemaining)
}

func TestPositionMonitor_NoPriceHolds(t *testing.T) {
	f := newMonitorFixture(t, false)
	f.snapshots.err = errors.New("feed down")

	report, err := f.monitor.RunPass(context.Background())
	require.NoError(t, err)

	check := report.Trades[0]
	assert.Zero(t, check.CurrentPrice)
	assert.Equal(t, contracts.ActionHold, check.Decision.Action)
}

func TestPositionMonitor_EmptyLedger(t *testing.T) {
	store := ledger.NewStore(filepath.Join(t.TempDir(), "trades_log.json"), logger.NewNop())
	pm := NewPositionMonitor(store, &fakeSnapshots{}, NewPaperBroker(0), nil, fastFill, logger.NewNop())

	report, err := pm.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No open positions", report.Message)
	assert.Empty(t, report.Trades)
	assert.Empty(t, report.Alerts)
}

func TestApplyExit(t *testing.T) {
	at := monitorNow

	newPos := func(qty int) contracts.Position {
		p, err := contracts.NewPosition(contracts.PositionEntry{Contract: testContract(), Quantity: qty, FillPrice: 2, At: at})
		require.NoError(t, err)
		return p
	}

	t.Run("tp1 on single contract closes", func(t *testing.T) {
		p := newPos(1)
		require.NoError(t, applyExit(&p, contracts.ActionTP1SellHalf, 1, 2.6, at))
		assert.True(t, p.TP1Hit)
		assert.Equal(t, contracts.CloseTP1, p.CloseReason)
		assert.False(t, p.IsOpen())
	})

	t.Run("tp2 closes", func(t *testing.T) {
		p := newPos(2)
		p.TP1Hit = true
		require.NoError(t, applyExit(&p, contracts.ActionTP2SellRest, 2, 3.1, at))
		assert.Equal(t, contracts.CloseTP2, p.CloseReason)
	})

	t.Run("partial reduces", func(t *testing.T) {
		p := newPos(5)
		require.NoError(t, applyExit(&p, contracts.ActionStopLoss, 3, 1.3, at))
		assert.True(t, p.IsOpen())
		assert.Equal(t, 2, p.QuantityRemaining)
	})
}

func TestNotifiers(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	report := &contracts.MonitorReport{Message: "ok"}

	Notifiers{a, nil, b}.NotifyMonitor(context.Background(), report)
	assert.Len(t, a.reports, 1)
	assert.Len(t, b.reports, 1)
}
