package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// PositionStore ledger access used by the monitor
type PositionStore interface {
	Load() ([]contracts.Position, error)
	Save(positions []contracts.Position) error
}

// SnapshotSource option market snapshot (greeks, iv, bid/ask)
type SnapshotSource interface {
	OptionSnapshot(ctx context.Context, oc contracts.OptionContract) (*contracts.ContractQuote, error)
}

// MonitorNotifier receives each pass result (alerts, executed exits)
type MonitorNotifier interface {
	NotifyMonitor(ctx context.Context, report *contracts.MonitorReport)
}

// Notifiers fans one report out to several notifiers in order
type Notifiers []MonitorNotifier

// NotifyMonitor implements MonitorNotifier
func (ns Notifiers) NotifyMonitor(ctx context.Context, report *contracts.MonitorReport) {
	for _, n := range ns {
		if n != nil {
			n.NotifyMonitor(ctx, report)
		}
	}
}

// =============================================================================
// Position Monitor
// ⭐ SSOT: 보유 포지션 점검 및 청산 실행은 여기서만
// =============================================================================

// PositionMonitor checks every OPEN ledger position once per pass
type PositionMonitor struct {
	store     PositionStore
	snapshots SnapshotSource
	broker    Broker // nil = 판단만 (주문 없음)
	notifier  MonitorNotifier
	config    *contracts.ExitRulesConfig
	rules     []ExitRule
	fill      FillPollConfig
	logger    *logger.Logger
	dryRun    bool
	now       func() time.Time
}

// NewPositionMonitor 새 포지션 모니터 생성
func NewPositionMonitor(
	store PositionStore,
	snapshots SnapshotSource,
	broker Broker,
	config *contracts.ExitRulesConfig,
	fill FillPollConfig,
	log *logger.Logger,
) *PositionMonitor {
	if config == nil {
		config = contracts.DefaultExitRulesConfig()
	}
	return &PositionMonitor{
		store:     store,
		snapshots: snapshots,
		broker:    broker,
		config:    config,
		rules:     ExitRules(config),
		fill:      fill,
		logger:    log.WithComponent("position_monitor"),
		now:       time.Now,
	}
}

// SetNotifier 모니터 결과 알림 설정
func (pm *PositionMonitor) SetNotifier(n MonitorNotifier) {
	pm.notifier = n
}

// SetDryRun reports decisions without placing orders or writing the ledger
func (pm *PositionMonitor) SetDryRun(enabled bool) {
	pm.dryRun = enabled
	pm.logger.WithFields(map[string]interface{}{
		"dry_run": enabled,
	}).Info("Dry-run setting changed")
}

// RunPass loads the ledger, checks each OPEN position and rewrites the ledger once
func (pm *PositionMonitor) RunPass(ctx context.Context) (*contracts.MonitorReport, error) {
	report := &contracts.MonitorReport{
		CheckedAt: pm.now(),
		DryRun:    pm.dryRun,
		Trades:    []contracts.PositionCheck{},
		Alerts:    []contracts.GreeksAlert{},
	}

	positions, err := pm.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	open := 0
	for _, p := range positions {
		if p.IsOpen() {
			open++
		}
	}
	if open == 0 {
		report.Message = "No open positions"
		return report, nil
	}

	broker := pm.connect(ctx)
	if broker != nil {
		defer func() {
			if err := broker.Disconnect(context.WithoutCancel(ctx)); err != nil {
				pm.logger.WithError(err).Warn("Broker disconnect failed")
			}
		}()
	}

	changed := false
	actions := 0
	for i := range positions {
		if !positions[i].IsOpen() {
			continue
		}
		check, alerts, mutated := pm.checkPosition(ctx, broker, &positions[i])
		report.Trades = append(report.Trades, check)
		report.Alerts = append(report.Alerts, alerts...)
		if check.Decision.Action.Sells() {
			actions++
		}
		changed = changed || mutated
	}

	if changed && !pm.dryRun {
		if err := pm.store.Save(positions); err != nil {
			return report, fmt.Errorf("save ledger: %w", err)
		}
	}

	report.Message = fmt.Sprintf("Checked %d positions, %d exit signals, %d alerts", len(report.Trades), actions, len(report.Alerts))
	pm.logger.WithFields(map[string]interface{}{
		"positions": len(report.Trades),
		"exits":     actions,
		"alerts":    len(report.Alerts),
		"dry_run":   pm.dryRun,
	}).Info("Monitor pass completed")

	if pm.notifier != nil {
		pm.notifier.NotifyMonitor(ctx, report)
	}
	return report, nil
}

// connect returns the broker when execution is possible, otherwise nil
func (pm *PositionMonitor) connect(ctx context.Context) Broker {
	if pm.broker == nil {
		return nil
	}
	if err := pm.broker.Connect(ctx); err != nil {
		pm.logger.WithError(err).Warn("Broker unavailable, using snapshot prices only")
		return nil
	}
	return pm.broker
}

// checkPosition observes, decides and (optionally) executes one position.
// mutated reports whether p changed.
func (pm *PositionMonitor) checkPosition(ctx context.Context, broker Broker, p *contracts.Position) (contracts.PositionCheck, []contracts.GreeksAlert, bool) {
	now := pm.now()
	oc := p.Contract()

	check := contracts.PositionCheck{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Strike:     p.Strike,
		Right:      p.Right,
		Expiration: p.Expiration,
		Remaining:  p.QuantityRemaining,
		EntryPrice: p.EntryPrice,
	}

	snap := contracts.PositionSnapshot{Position: *p}

	dte, err := contracts.DaysToExpiry(p.Expiration, now)
	if err != nil {
		check.Error = fmt.Sprintf("invalid expiration: %v", err)
		check.Decision = contracts.ExitDecision{Action: contracts.ActionHold, Reason: check.Error}
		return check, nil, false
	}
	snap.DTE = dte

	// Greeks / IV / fallback price
	if q, err := pm.snapshots.OptionSnapshot(ctx, oc); err != nil {
		pm.logger.WithFields(map[string]interface{}{
			"id":       p.ID,
			"contract": oc.String(),
			"error":    err.Error(),
		}).Warn("Option snapshot unavailable")
	} else {
		snap.Greeks = q.Greeks
		snap.IV = q.ImpliedVolatility
		snap.CurrentPrice = q.Mid
		if snap.CurrentPrice == 0 {
			snap.CurrentPrice = contracts.MidPrice(q.Bid, q.Ask)
		}
	}

	// broker quote mid takes precedence
	qualified := oc
	if broker != nil {
		if qc, err := broker.QualifyContract(ctx, oc); err == nil && qc.ConID != 0 {
			qualified = qc
			if bq, err := broker.Quote(ctx, qc); err == nil && bq.Mid() > 0 {
				snap.CurrentPrice = bq.Mid()
			}
		}
	}

	snap.PnLPercent = PnLPercent(p.EntryPrice, snap.CurrentPrice)

	check.DTE = dte
	check.CurrentPrice = snap.CurrentPrice
	check.PnLPercent = snap.PnLPercent
	if !snap.Greeks.IsZero() {
		check.GreeksChange = snap.Greeks.Sub(p.EntryGreeks)
	}
	check.IVChangePct = IVChangePercent(p.EntryIV, snap.IV)

	alerts := GreeksAlerts(pm.config, snap)
	decision := Decide(pm.rules, snap)
	check.Decision = decision

	if !decision.Action.Sells() || pm.dryRun || broker == nil {
		return check, alerts, false
	}

	result, mutated := pm.executeExit(ctx, broker, qualified, p, decision, now)
	check.Executed = result
	check.Remaining = p.QuantityRemaining
	return check, alerts, mutated
}

// executeExit places the SELL, waits for the fill and applies the transition
func (pm *PositionMonitor) executeExit(
	ctx context.Context,
	broker Broker,
	oc contracts.OptionContract,
	p *contracts.Position,
	d contracts.ExitDecision,
	now time.Time,
) (*contracts.TradeResult, bool) {
	result := &contracts.TradeResult{
		Contract: &oc,
		Side:     contracts.OrderSideSell,
		Quantity: d.Quantity,
	}

	if oc.ConID == 0 {
		result.Status = contracts.TradeError
		result.Message = fmt.Sprintf("Contract not found: %s", oc)
		return result, false
	}

	order, err := contracts.NewOrder(oc, contracts.OrderSideSell, d.Quantity, 0)
	if err != nil {
		result.Status = contracts.TradeError
		result.Message = err.Error()
		return result, false
	}

	orderID, err := broker.PlaceOrder(ctx, order)
	if err != nil {
		result.Status = contracts.TradeError
		result.Message = fmt.Sprintf("place order: %v", err)
		return result, false
	}
	result.OrderID = orderID

	state, err := WaitForFill(ctx, broker, orderID, pm.fill, pm.logger)
	if err != nil {
		pm.logger.WithError(err).Warn("Fill polling interrupted")
	}
	if state == nil || state.Filled <= 0 {
		result.Status = unfilledStatus(state)
		result.Message = fmt.Sprintf("%s not filled (%s)", d.Action, statusOf(state))
		pm.cancelIfOpen(ctx, broker, state)
		return result, false
	}

	result.Filled = state.Filled
	result.FillPrice = state.AvgPrice
	result.TotalCost = round2(state.AvgPrice * 100 * float64(state.Filled))

	if err := applyExit(p, d.Action, state.Filled, state.AvgPrice, now); err != nil {
		result.Status = contracts.TradeError
		result.Message = fmt.Sprintf("ledger transition: %v", err)
		return result, false
	}

	result.PositionID = p.ID
	if state.Status == contracts.StatusFilled {
		result.Status = contracts.TradeFilled
		result.Message = fmt.Sprintf("%s: sold %d @ %.2f", d.Action, state.Filled, state.AvgPrice)
	} else {
		result.Status = contracts.TradeUnfilled
		result.Message = fmt.Sprintf("%s: partial fill %d/%d @ %.2f", d.Action, state.Filled, d.Quantity, state.AvgPrice)
		pm.cancelIfOpen(ctx, broker, state)
	}

	pm.logger.WithFields(map[string]interface{}{
		"id":        p.ID,
		"action":    d.Action,
		"filled":    state.Filled,
		"price":     state.AvgPrice,
		"remaining": p.QuantityRemaining,
		"status":    p.Status,
	}).Info("Exit executed")
	return result, true
}

func (pm *PositionMonitor) cancelIfOpen(ctx context.Context, broker Broker, state *contracts.OrderState) {
	if state == nil || state.Status.Terminal() {
		return
	}
	if err := broker.CancelOrder(context.WithoutCancel(ctx), state.OrderID); err != nil {
		pm.logger.WithFields(map[string]interface{}{
			"order_id": state.OrderID,
			"error":    err.Error(),
		}).Warn("Failed to cancel order")
	}
}

// applyExit mutates the position for a (partial) fill
func applyExit(p *contracts.Position, action contracts.ExitAction, filled int, price float64, at time.Time) error {
	if filled >= p.QuantityRemaining {
		if action == contracts.ActionTP1SellHalf {
			if err := p.MarkTP1(); err != nil {
				return err
			}
		}
		return p.Close(price, closeReason(action), at)
	}

	if err := p.Reduce(filled); err != nil {
		return err
	}
	if action == contracts.ActionTP1SellHalf {
		return p.MarkTP1()
	}
	return nil
}

func closeReason(a contracts.ExitAction) contracts.CloseReason {
	switch a {
	case contracts.ActionDTEExit:
		return contracts.CloseDTEExit
	case contracts.ActionStopLoss:
		return contracts.CloseSLExit
	case contracts.ActionTP1SellHalf:
		return contracts.CloseTP1
	case contracts.ActionTP2SellRest:
		return contracts.CloseTP2
	}
	return contracts.CloseManual
}

func unfilledStatus(s *contracts.OrderState) contracts.TradeStatus {
	if s != nil && (s.Status == contracts.StatusRejected || s.Status == contracts.StatusCanceled) {
		return contracts.TradeRejected
	}
	return contracts.TradeUnfilled
}

func statusOf(s *contracts.OrderState) contracts.Status {
	if s == nil {
		return contracts.StatusPending
	}
	return s.Status
}
