package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// Broker defines interface for the order execution gateway
// ⭐ SSOT: 브로커 연동 인터페이스는 여기서만 정의
type Broker interface {
	// Connect opens a session
	Connect(ctx context.Context) error

	// Disconnect closes the session
	Disconnect(ctx context.Context) error

	// QualifyContract resolves the broker instrument id (ConID 0 = not found)
	QualifyContract(ctx context.Context, oc contracts.OptionContract) (contracts.OptionContract, error)

	// Quote retrieves bid/ask/last for a qualified contract
	Quote(ctx context.Context, oc contracts.OptionContract) (*contracts.BrokerQuote, error)

	// PlaceOrder submits an order and returns the broker order id
	PlaceOrder(ctx context.Context, o contracts.Order) (string, error)

	// OrderStatus retrieves order progress
	OrderStatus(ctx context.Context, orderID string) (*contracts.OrderState, error)

	// CancelOrder cancels an open order
	CancelOrder(ctx context.Context, orderID string) error

	// AccountSummary retrieves account values by tag
	AccountSummary(ctx context.Context) (map[string]float64, error)

	// Positions retrieves current option holdings
	Positions(ctx context.Context) ([]contracts.BrokerPosition, error)
}

// FillMode controls how PaperBroker handles orders
type FillMode int

const (
	FillImmediately FillMode = iota // 즉시 전량 체결
	FillPartial                     // 절반 체결 후 대기
	FillNever                       // 미체결 (Submitted 유지)
	FillReject                      // 거부
)

// PaperBroker implements Broker in memory (dry runs, tests)
// ⭐ 실주문은 external/broker.Client 사용
type PaperBroker struct {
	mu        sync.Mutex
	quotes    map[string]contracts.BrokerQuote // key: contract string
	unknown   map[string]bool                  // qualify 실패 대상
	account   map[string]float64
	holdings  []contracts.BrokerPosition
	orders    map[string]*contracts.OrderState
	placed    []contracts.Order
	nextConID int64
	nextOrder int
	mode      FillMode
	connected bool
}

// NewPaperBroker creates a paper broker with the given net liquidation
func NewPaperBroker(netLiquidation float64) *PaperBroker {
	return &PaperBroker{
		quotes:  make(map[string]contracts.BrokerQuote),
		unknown: make(map[string]bool),
		account: map[string]float64{
			contracts.TagNetLiquidation: netLiquidation,
			contracts.TagTotalCashValue: netLiquidation,
			contracts.TagUnrealizedPnL:  0,
			contracts.TagBuyingPower:    netLiquidation,
		},
		orders:    make(map[string]*contracts.OrderState),
		nextConID: 500000,
	}
}

// SetQuote sets the market for a contract
func (b *PaperBroker) SetQuote(oc contracts.OptionContract, q contracts.BrokerQuote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[paperKey(oc)] = q
}

// SetUnknown makes QualifyContract return ConID 0 for the contract
func (b *PaperBroker) SetUnknown(oc contracts.OptionContract) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unknown[paperKey(oc)] = true
}

// SetFillMode changes how subsequent orders are handled
func (b *PaperBroker) SetFillMode(m FillMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
}

// SetHolding adds a broker-side holding
func (b *PaperBroker) SetHolding(p contracts.BrokerPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdings = append(b.holdings, p)
}

// Placed returns the orders received so far
func (b *PaperBroker) Placed() []contracts.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.Order, len(b.placed))
	copy(out, b.placed)
	return out
}

// Connect marks the session open
func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

// Disconnect marks the session closed
func (b *PaperBroker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// QualifyContract assigns a stable ConID per contract
func (b *PaperBroker) QualifyContract(ctx context.Context, oc contracts.OptionContract) (contracts.OptionContract, error) {
	exp, err := contracts.NormalizeExpiry(oc.Expiry, contracts.ExpiryCompact)
	if err != nil {
		return oc, err
	}
	oc.Expiry = exp
	oc.Symbol = contracts.NormalizeSymbol(oc.Symbol)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unknown[paperKey(oc)] {
		oc.ConID = 0
		return oc, nil
	}
	b.nextConID++
	oc.ConID = b.nextConID
	return oc, nil
}

// Quote returns the configured market
func (b *PaperBroker) Quote(ctx context.Context, oc contracts.OptionContract) (*contracts.BrokerQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[paperKey(oc)]
	if !ok {
		return nil, fmt.Errorf("no paper quote for %s", oc)
	}
	return &q, nil
}

// PlaceOrder fills according to the fill mode at limit (or estimated price)
func (b *PaperBroker) PlaceOrder(ctx context.Context, o contracts.Order) (string, error) {
	if o.Contract.ConID == 0 {
		return "", fmt.Errorf("place order %s: contract not qualified", o.Contract)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextOrder++
	id := fmt.Sprintf("PAPER-%d", b.nextOrder)
	b.placed = append(b.placed, o)

	price := o.LimitPrice
	if price == 0 {
		price = b.quotes[paperKey(o.Contract)].EstimatedPrice()
	}

	state := &contracts.OrderState{OrderID: id, Status: contracts.StatusSubmitted, Remaining: o.Quantity}
	switch b.mode {
	case FillImmediately:
		state.Status = contracts.StatusFilled
		state.Filled = o.Quantity
		state.Remaining = 0
		state.AvgPrice = price
	case FillPartial:
		half := o.Quantity / 2
		if half > 0 {
			state.Filled = half
			state.Remaining = o.Quantity - half
			state.AvgPrice = price
		}
	case FillReject:
		state.Status = contracts.StatusRejected
	}
	b.orders[id] = state
	return id, nil
}

// OrderStatus returns the stored state
func (b *PaperBroker) OrderStatus(ctx context.Context, orderID string) (*contracts.OrderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	cp := *s
	return &cp, nil
}

// CancelOrder cancels a non-terminal order
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if !s.Status.Terminal() {
		s.Status = contracts.StatusCanceled
	}
	return nil
}

// AccountSummary returns the paper account
func (b *PaperBroker) AccountSummary(ctx context.Context) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.account))
	for k, v := range b.account {
		out[k] = v
	}
	return out, nil
}

// Positions returns the paper holdings
func (b *PaperBroker) Positions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.BrokerPosition, len(b.holdings))
	copy(out, b.holdings)
	return out, nil
}

func paperKey(oc contracts.OptionContract) string {
	exp, err := contracts.NormalizeExpiry(oc.Expiry, contracts.ExpiryCompact)
	if err != nil {
		exp = oc.Expiry
	}
	return contracts.OptionContract{
		Symbol: contracts.NormalizeSymbol(oc.Symbol),
		Expiry: exp,
		Strike: oc.Strike,
		Right:  oc.Right,
	}.String()
}
