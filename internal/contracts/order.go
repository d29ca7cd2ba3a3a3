package contracts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OptionContract 거래 가능한 옵션 계약 (symbol, expiry, strike, right)
type OptionContract struct {
	Symbol string  `json:"symbol"`
	Expiry string  `json:"expiry"` // YYYYMMDD
	Strike float64 `json:"strike"`
	Right  Right   `json:"right"`
	ConID  int64   `json:"con_id,omitempty"` // broker instrument id (0 = unresolved)
}

// String e.g. "AAPL 20250221 230C"
func (c OptionContract) String() string {
	return fmt.Sprintf("%s %s %g%s", c.Symbol, c.Expiry, c.Strike, c.Right)
}

// Order represents an order passed to the broker
// ⭐ SSOT: Executor/Monitor → Broker 주문 정보 전달
type Order struct {
	ClientID   string         `json:"client_id"`
	Contract   OptionContract `json:"contract"`
	Side       OrderSide      `json:"side"` // BUY or SELL
	Type       OrderType      `json:"order_type"`
	Quantity   int            `json:"quantity"`
	LimitPrice float64        `json:"limit_price,omitempty"` // 0 for market order
	CreatedAt  time.Time      `json:"created_at"`
}

// NewOrder assigns a client id and validates quantity/price
func NewOrder(c OptionContract, side OrderSide, qty int, limit float64) (Order, error) {
	if qty <= 0 {
		return Order{}, ValidationError{"quantity", "must be > 0"}
	}
	if limit < 0 {
		return Order{}, ValidationError{"limit_price", "must be >= 0"}
	}
	typ := OrderTypeMarket
	if limit > 0 {
		typ = OrderTypeLimit
	}
	return Order{
		ClientID:   uuid.NewString(),
		Contract:   c,
		Side:       side,
		Type:       typ,
		Quantity:   qty,
		LimitPrice: limit,
		CreatedAt:  time.Now(),
	}, nil
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents market or limit order
type OrderType string

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeLimit  OrderType = "LMT"
)

// Status represents order status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether no further fills can happen
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// OrderState broker-side order progress
type OrderState struct {
	OrderID   string  `json:"order_id"`
	Status    Status  `json:"status"`
	Filled    int     `json:"filled"`
	Remaining int     `json:"remaining"`
	AvgPrice  float64 `json:"avg_fill_price"`
}

// IsMarketOrder checks if the order is a market order
func (o *Order) IsMarketOrder() bool {
	return o.Type == OrderTypeMarket
}

// =============================================================================
// Trade results (CLI/Monitor 공통 응답)
// =============================================================================

// TradeStatus 거래 결과 상태
type TradeStatus string

const (
	TradeFilled   TradeStatus = "FILLED"
	TradeRejected TradeStatus = "REJECTED"
	TradeError    TradeStatus = "ERROR"
	TradeUnfilled TradeStatus = "UNFILLED"
)

// TradeResult every rejection or failure carries status + message
type TradeResult struct {
	Status      TradeStatus     `json:"status"`
	Message     string          `json:"message"`
	OrderID     string          `json:"order_id,omitempty"`
	Contract    *OptionContract `json:"contract,omitempty"`
	Side        OrderSide       `json:"side,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	Filled      int             `json:"filled,omitempty"`
	FillPrice   float64         `json:"fill_price,omitempty"`
	TotalCost   float64         `json:"total_cost,omitempty"`
	PositionID  int             `json:"position_id,omitempty"`
	MaxQuantity *int            `json:"max_qty,omitempty"`
	Plan        *TradePlan      `json:"trade_plan,omitempty"`
	Verify      *VerifyResult   `json:"verify,omitempty"`
}

// VerifyResult 주문 전 계약 검증 결과
type VerifyResult struct {
	Ticker       string  `json:"ticker"`
	Symbol       string  `json:"symbol"`
	Expiry       string  `json:"expiry"`
	Strike       float64 `json:"strike"`
	Right        Right   `json:"right"`
	LastPrice    float64 `json:"last_price"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Mid          float64 `json:"mid"`
	Spread       float64 `json:"spread"`
	SpreadPct    float64 `json:"spread_pct"`
	Greeks       Greeks  `json:"greeks"`
	IV           float64 `json:"iv"`
	OpenInterest int64   `json:"open_interest"`
	SpreadOK     bool    `json:"spread_ok"`
	Verified     bool    `json:"verified"`
	Message      string  `json:"message,omitempty"`
}
