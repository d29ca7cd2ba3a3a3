package contracts

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Position (원장에 영속되는 포지션)
// ⭐ SSOT: 포지션 상태 전이는 이 파일의 메서드로만
// =============================================================================

// PositionStatus 포지션 상태
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// CloseReason 청산 사유
type CloseReason string

const (
	CloseDTEExit CloseReason = "DTE_EXIT"
	CloseSLExit  CloseReason = "SL_EXIT"
	CloseTP1     CloseReason = "TP1_SELL_HALF"
	CloseTP2     CloseReason = "TP2_SELL_REST"
	CloseManual  CloseReason = "MANUAL"
)

// Position invariant violations
var (
	ErrPositionClosed  = errors.New("position is closed")
	ErrTP1AlreadyHit   = errors.New("tp1 already hit")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Position 원장 레코드
type Position struct {
	ID                int            `json:"id"`
	Symbol            string         `json:"symbol"`
	Strike            float64        `json:"strike"`
	Right             Right          `json:"option_type"`
	Expiration        string         `json:"expiration"` // YYYYMMDD
	QuantityOpened    int            `json:"quantity_opened"`
	QuantityRemaining int            `json:"quantity_remaining"`
	EntryPrice        float64        `json:"entry_price"`
	TotalCost         float64        `json:"total_cost"`
	EntryGreeks       Greeks         `json:"entry_greeks"`
	EntryIV           float64        `json:"entry_iv"`
	EntryOI           int64          `json:"entry_oi"`
	Status            PositionStatus `json:"status"`
	OpenTime          time.Time      `json:"open_time"`
	TP1Hit            bool           `json:"tp1_hit"`
	ClosePrice        *float64       `json:"close_price,omitempty"`
	CloseTime         *time.Time     `json:"close_time,omitempty"`
	CloseReason       CloseReason    `json:"close_reason,omitempty"`
}

// PositionEntry 체결 시점 스냅샷
type PositionEntry struct {
	Contract  OptionContract
	Quantity  int
	FillPrice float64
	Greeks    Greeks
	IV        float64
	OI        int64
	At        time.Time
}

// NewPosition builds an OPEN position from a fill. ID is assigned by the ledger.
func NewPosition(e PositionEntry) (Position, error) {
	if NormalizeSymbol(e.Contract.Symbol) == "" {
		return Position{}, ValidationError{"symbol", "required"}
	}
	if e.Quantity <= 0 {
		return Position{}, ValidationError{"quantity", "must be > 0"}
	}
	if e.FillPrice <= 0 {
		return Position{}, ValidationError{"entry_price", "must be > 0"}
	}
	if e.Contract.Strike <= 0 {
		return Position{}, ValidationError{"strike", "must be > 0"}
	}
	exp, err := NormalizeExpiry(e.Contract.Expiry, ExpiryCompact)
	if err != nil {
		return Position{}, err
	}
	if e.Contract.Right != RightCall && e.Contract.Right != RightPut {
		return Position{}, ValidationError{"right", fmt.Sprintf("invalid right %q", e.Contract.Right)}
	}

	return Position{
		Symbol:            NormalizeSymbol(e.Contract.Symbol),
		Strike:            e.Contract.Strike,
		Right:             e.Contract.Right,
		Expiration:        exp,
		QuantityOpened:    e.Quantity,
		QuantityRemaining: e.Quantity,
		EntryPrice:        e.FillPrice,
		TotalCost:         e.FillPrice * 100 * float64(e.Quantity),
		EntryGreeks:       e.Greeks,
		EntryIV:           e.IV,
		EntryOI:           e.OI,
		Status:            PositionOpen,
		OpenTime:          e.At,
	}, nil
}

// IsOpen reports OPEN status
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// Contract returns the tradable contract tuple
func (p *Position) Contract() OptionContract {
	return OptionContract{
		Symbol: p.Symbol,
		Expiry: p.Expiration,
		Strike: p.Strike,
		Right:  p.Right,
	}
}

// Matches reports whether p is the given contract (expiry in either layout)
func (p *Position) Matches(c OptionContract) bool {
	exp, err := NormalizeExpiry(c.Expiry, ExpiryCompact)
	if err != nil {
		return false
	}
	return p.Symbol == NormalizeSymbol(c.Symbol) &&
		p.Expiration == exp &&
		p.Strike == c.Strike &&
		(c.Right == "" || p.Right == c.Right)
}

// Reduce sells qty contracts without closing.
// qty must leave at least one contract; use Close for the rest.
func (p *Position) Reduce(qty int) error {
	if !p.IsOpen() {
		return ErrPositionClosed
	}
	if qty <= 0 || qty >= p.QuantityRemaining {
		return fmt.Errorf("%w: reduce %d of %d", ErrInvalidQuantity, qty, p.QuantityRemaining)
	}
	p.QuantityRemaining -= qty
	return nil
}

// MarkTP1 flips tp1_hit once while OPEN
func (p *Position) MarkTP1() error {
	if !p.IsOpen() {
		return ErrPositionClosed
	}
	if p.TP1Hit {
		return ErrTP1AlreadyHit
	}
	p.TP1Hit = true
	return nil
}

// Close moves OPEN -> CLOSED once and zeroes the remaining quantity
func (p *Position) Close(price float64, reason CloseReason, at time.Time) error {
	if !p.IsOpen() {
		return ErrPositionClosed
	}
	if reason == "" {
		return ValidationError{"close_reason", "required"}
	}
	p.Status = PositionClosed
	p.QuantityRemaining = 0
	p.ClosePrice = &price
	p.CloseTime = &at
	p.CloseReason = reason
	return nil
}
