package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/external/polygon"
	"github.com/sabq4org/so7ba.ai/internal/ledger"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// OptionMarket market data used for pre-trade verification
type OptionMarket interface {
	SnapshotSource
	LastTrade(ctx context.Context, ticker string) (*polygon.Trade, error)
}

// TradeLedger ledger operations used by manual trades
type TradeLedger interface {
	Open(p contracts.Position) (contracts.Position, error)
	CloseManual(match contracts.OptionContract, qty int, price float64, at time.Time) (contracts.Position, error)
	OpenCount() (int, error)
}

// Executor runs manual verify / buy / sell / portfolio commands
// ⭐ SSOT: 수동 주문 흐름(검증 → 게이트 → 주문 → 원장)은 여기서만
type Executor struct {
	market OptionMarket
	broker Broker
	ledger TradeLedger
	gate   *CapitalGate
	exits  *contracts.ExitRulesConfig
	fill   FillPollConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewExecutor creates a new executor
func NewExecutor(
	market OptionMarket,
	broker Broker,
	trades TradeLedger,
	gate *CapitalGate,
	exits *contracts.ExitRulesConfig,
	fill FillPollConfig,
	log *logger.Logger,
) *Executor {
	if exits == nil {
		exits = contracts.DefaultExitRulesConfig()
	}
	return &Executor{
		market: market,
		broker: broker,
		ledger: trades,
		gate:   gate,
		exits:  exits,
		fill:   fill,
		logger: log.WithComponent("executor"),
		now:    time.Now,
	}
}

// =============================================================================
// Verify
// =============================================================================

// Verify checks the contract against the market data provider.
// Failures are reported in the result (Verified=false), never as an error.
func (e *Executor) Verify(ctx context.Context, oc contracts.OptionContract) *contracts.VerifyResult {
	result := &contracts.VerifyResult{
		Symbol: contracts.NormalizeSymbol(oc.Symbol),
		Expiry: oc.Expiry,
		Strike: oc.Strike,
		Right:  oc.Right,
	}

	ticker, err := contracts.OptionTicker(oc.Symbol, oc.Expiry, oc.Strike, oc.Right)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Ticker = ticker

	if trade, err := e.market.LastTrade(ctx, ticker); err != nil {
		e.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"error":  err.Error(),
		}).Warn("Last trade unavailable")
	} else {
		result.LastPrice = trade.Price
	}

	q, err := e.market.OptionSnapshot(ctx, oc)
	if err != nil {
		result.Message = fmt.Sprintf("snapshot unavailable: %v", err)
		return result
	}

	result.Bid = q.Bid
	result.Ask = q.Ask
	result.Mid = round2(contracts.MidPrice(q.Bid, q.Ask))
	result.Spread = round2(q.Ask - q.Bid)
	result.SpreadPct = 999
	if result.Mid > 0 {
		result.SpreadPct = math.Round((q.Ask-q.Bid)/result.Mid*100*10) / 10
	}
	result.Greeks = contracts.Greeks{
		Delta: round4(q.Greeks.Delta),
		Gamma: round4(q.Greeks.Gamma),
		Theta: round4(q.Greeks.Theta),
		Vega:  round4(q.Greeks.Vega),
	}
	result.IV = round4(q.ImpliedVolatility)
	result.OpenInterest = q.OpenInterest
	result.SpreadOK = result.SpreadPct < e.gate.Config().MaxSpreadPct*100
	result.Verified = true
	return result
}

// =============================================================================
// Buy
// =============================================================================

// Buy verifies, gates, places a BUY and records the fill in the ledger
func (e *Executor) Buy(ctx context.Context, oc contracts.OptionContract, qty int, limit float64) *contracts.TradeResult {
	verify := e.Verify(ctx, oc)
	result := &contracts.TradeResult{Side: contracts.OrderSideBuy, Quantity: qty, Verify: verify}
	if !verify.Verified {
		e.logger.WithField("message", verify.Message).Warn("Contract not verified, continuing without confirmation")
	}

	if err := e.broker.Connect(ctx); err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("broker connect: %v", err))
	}
	defer e.disconnect(ctx)

	openCount, err := e.ledger.OpenCount()
	if err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("ledger: %v", err))
	}

	qualified, err := e.broker.QualifyContract(ctx, oc)
	if err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("qualify: %v", err))
	}
	result.Contract = &qualified

	var quote contracts.BrokerQuote
	if qualified.ConID != 0 {
		if q, err := e.broker.Quote(ctx, qualified); err != nil {
			e.logger.WithError(err).Warn("Broker quote unavailable")
		} else {
			quote = *q
		}
	}

	account, err := e.broker.AccountSummary(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Account summary unavailable")
	}

	gate := e.gate.Check(GateCheckInput{
		Verify:         verify,
		OpenCount:      openCount,
		Contract:       qualified,
		Quantity:       qty,
		Quote:          quote,
		NetLiquidation: account[contracts.TagNetLiquidation],
	})
	if !gate.Passed {
		result.MaxQuantity = gate.MaxQuantity
		return fail(result, gate.Status, gate.Message)
	}

	state, err := e.place(ctx, qualified, contracts.OrderSideBuy, qty, limit, result)
	if err != nil {
		return fail(result, contracts.TradeError, err.Error())
	}
	if state.Filled <= 0 {
		return fail(result, unfilledStatus(state), fmt.Sprintf("Order not filled (%s)", state.Status))
	}

	pos, err := contracts.NewPosition(contracts.PositionEntry{
		Contract:  qualified,
		Quantity:  state.Filled,
		FillPrice: state.AvgPrice,
		Greeks:    verify.Greeks,
		IV:        verify.IV,
		OI:        verify.OpenInterest,
		At:        e.now(),
	})
	if err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("record position: %v", err))
	}
	pos, err = e.ledger.Open(pos)
	if err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("record position: %v", err))
	}

	result.PositionID = pos.ID
	result.Plan = e.plan(state.AvgPrice)
	result.Status = contracts.TradeFilled
	result.Message = fmt.Sprintf("Bought %d %s @ %.2f", state.Filled, qualified, state.AvgPrice)
	if state.Status != contracts.StatusFilled {
		result.Status = contracts.TradeUnfilled
		result.Message = fmt.Sprintf("Partial fill %d/%d %s @ %.2f", state.Filled, qty, qualified, state.AvgPrice)
	}
	return result
}

// =============================================================================
// Sell
// =============================================================================

// Sell places a SELL and applies it to the matching OPEN ledger entry (MANUAL)
func (e *Executor) Sell(ctx context.Context, oc contracts.OptionContract, qty int, limit float64) *contracts.TradeResult {
	result := &contracts.TradeResult{Side: contracts.OrderSideSell, Quantity: qty}

	if err := e.broker.Connect(ctx); err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("broker connect: %v", err))
	}
	defer e.disconnect(ctx)

	qualified, err := e.broker.QualifyContract(ctx, oc)
	if err != nil {
		return fail(result, contracts.TradeError, fmt.Sprintf("qualify: %v", err))
	}
	result.Contract = &qualified
	if qualified.ConID == 0 {
		return fail(result, contracts.TradeError, fmt.Sprintf("Contract not found: %s", oc))
	}

	state, err := e.place(ctx, qualified, contracts.OrderSideSell, qty, limit, result)
	if err != nil {
		return fail(result, contracts.TradeError, err.Error())
	}
	if state.Filled <= 0 {
		return fail(result, unfilledStatus(state), fmt.Sprintf("Order not filled (%s)", state.Status))
	}

	result.Status = contracts.TradeFilled
	result.Message = fmt.Sprintf("Sold %d %s @ %.2f", state.Filled, qualified, state.AvgPrice)
	if state.Status != contracts.StatusFilled {
		result.Status = contracts.TradeUnfilled
		result.Message = fmt.Sprintf("Partial fill %d/%d %s @ %.2f", state.Filled, qty, qualified, state.AvgPrice)
	}

	pos, err := e.ledger.CloseManual(qualified, state.Filled, state.AvgPrice, e.now())
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		e.logger.WithField("contract", qualified.String()).Warn("Sold contract has no open ledger entry")
		result.Message += " (no ledger entry)"
	case err != nil:
		e.logger.WithError(err).Error("Ledger update failed after sell")
		result.Message += fmt.Sprintf(" (ledger update failed: %v)", err)
	default:
		result.PositionID = pos.ID
	}
	return result
}

// =============================================================================
// Portfolio
// =============================================================================

// PortfolioPosition broker holding with mark-to-market
type PortfolioPosition struct {
	Contract  contracts.OptionContract `json:"contract"`
	Symbol    string                   `json:"symbol"`
	Quantity  int                      `json:"qty"`
	Entry     float64                  `json:"entry"`
	Current   float64                  `json:"current"`
	PnLPct    float64                  `json:"pnl_pct"`
	PnLDollar float64                  `json:"pnl_dollar"`
}

// PortfolioView broker positions and account values
type PortfolioView struct {
	Positions []PortfolioPosition `json:"positions"`
	Account   map[string]float64  `json:"account"`
}

// Portfolio marks every non-zero broker position to the quote mid (or last)
func (e *Executor) Portfolio(ctx context.Context) (*PortfolioView, error) {
	if err := e.broker.Connect(ctx); err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}
	defer e.disconnect(ctx)

	holdings, err := e.broker.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	view := &PortfolioView{Positions: []PortfolioPosition{}, Account: map[string]float64{}}
	for _, h := range holdings {
		if h.Quantity == 0 {
			continue
		}
		current := 0.0
		if q, err := e.broker.Quote(ctx, h.Contract); err != nil {
			e.logger.WithFields(map[string]interface{}{
				"contract": h.Contract.String(),
				"error":    err.Error(),
			}).Warn("Quote unavailable")
		} else {
			current = q.EstimatedPrice()
		}

		entry := h.AvgCost / 100
		pp := PortfolioPosition{
			Contract: h.Contract,
			Symbol:   h.Contract.String(),
			Quantity: h.Quantity,
			Entry:    round2(entry),
			Current:  round2(current),
		}
		if entry > 0 && current > 0 {
			pp.PnLPct = math.Round(((current/entry)-1)*100*10) / 10
		}
		if current > 0 {
			pp.PnLDollar = round2((current - entry) * 100 * math.Abs(float64(h.Quantity)))
		}
		view.Positions = append(view.Positions, pp)
	}

	account, err := e.broker.AccountSummary(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Account summary unavailable")
	}
	for _, tag := range contracts.AccountTags {
		if v, ok := account[tag]; ok {
			view.Account[tag] = v
		}
	}
	return view, nil
}

// =============================================================================
// Helpers
// =============================================================================

// place submits the order and waits for the fill
func (e *Executor) place(ctx context.Context, oc contracts.OptionContract, side contracts.OrderSide, qty int, limit float64, result *contracts.TradeResult) (*contracts.OrderState, error) {
	order, err := contracts.NewOrder(oc, side, qty, limit)
	if err != nil {
		return nil, err
	}
	orderID, err := e.broker.PlaceOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	result.OrderID = orderID

	state, err := WaitForFill(ctx, e.broker, orderID, e.fill, e.logger)
	if err != nil {
		e.logger.WithError(err).Warn("Fill polling interrupted")
	}
	if !state.Status.Terminal() {
		if err := e.broker.CancelOrder(context.WithoutCancel(ctx), orderID); err != nil {
			e.logger.WithFields(map[string]interface{}{
				"order_id": orderID,
				"error":    err.Error(),
			}).Warn("Failed to cancel order")
		}
	}

	result.Filled = state.Filled
	result.FillPrice = round2(state.AvgPrice)
	result.TotalCost = round2(state.AvgPrice * 100 * float64(state.Filled))
	return state, nil
}

// plan TP/SL prices from the exit rules
func (e *Executor) plan(fill float64) *contracts.TradePlan {
	if fill <= 0 {
		return nil
	}
	return &contracts.TradePlan{
		EntryMid:  round2(fill),
		TP1Price:  round2(fill * (1 + e.exits.TP1Percent/100)),
		TP2Price:  round2(fill * (1 + e.exits.TP2Percent/100)),
		StopPrice: round2(fill * (1 + e.exits.StopLossPercent/100)),
	}
}

func (e *Executor) disconnect(ctx context.Context) {
	if err := e.broker.Disconnect(context.WithoutCancel(ctx)); err != nil {
		e.logger.WithError(err).Warn("Broker disconnect failed")
	}
}

func fail(r *contracts.TradeResult, status contracts.TradeStatus, msg string) *contracts.TradeResult {
	r.Status = status
	r.Message = msg
	return r
}
