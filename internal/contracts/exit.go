package contracts

import "time"

// =============================================================================
// Exit Rules Configuration
// ⭐ SSOT: 청산규칙 설정은 여기서만
// =============================================================================

// ExitRulesConfig 청산 규칙 설정
type ExitRulesConfig struct {
	TP1Percent      float64 `json:"tp1_percent" yaml:"tp1_percent"`             // 1차 익절 (+25%, 절반 매도)
	TP2Percent      float64 `json:"tp2_percent" yaml:"tp2_percent"`             // 2차 익절 (+50%, 잔량)
	StopLossPercent float64 `json:"stop_loss_percent" yaml:"stop_loss_percent"` // 손절 (-30%)
	DTEExit         int     `json:"dte_exit" yaml:"dte_exit"`                   // 만기 임박 청산 (DTE <= 2)

	// 경고만 (자동 청산 아님)
	DeltaAlertThreshold float64 `json:"delta_alert_threshold" yaml:"delta_alert_threshold"`
	IVAlertPercent      float64 `json:"iv_alert_percent" yaml:"iv_alert_percent"`
}

// DefaultExitRulesConfig 기본 청산 규칙 설정 반환
func DefaultExitRulesConfig() *ExitRulesConfig {
	return &ExitRulesConfig{
		TP1Percent:          25.0,
		TP2Percent:          50.0,
		StopLossPercent:     -30.0,
		DTEExit:             2,
		DeltaAlertThreshold: 0.10,
		IVAlertPercent:      15.0,
	}
}

// ExitAction 청산 결정
type ExitAction string

const (
	ActionHold        ExitAction = "HOLD"
	ActionDTEExit     ExitAction = "DTE_EXIT"
	ActionStopLoss    ExitAction = "SL_EXIT"
	ActionTP1SellHalf ExitAction = "TP1_SELL_HALF"
	ActionTP2SellRest ExitAction = "TP2_SELL_REST"
)

// Sells reports whether the action places an order
func (a ExitAction) Sells() bool {
	return a != ActionHold && a != ""
}

// ClosesAll reports whether the action exits the entire remaining quantity
func (a ExitAction) ClosesAll() bool {
	return a == ActionDTEExit || a == ActionStopLoss || a == ActionTP2SellRest
}

// PositionSnapshot 모니터 1회 관측값
type PositionSnapshot struct {
	Position     Position `json:"-"`
	CurrentPrice float64  `json:"current_price"`
	PnLPercent   float64  `json:"pnl_pct"`
	DTE          int      `json:"dte"`
	Greeks       Greeks   `json:"current_greeks"`
	IV           float64  `json:"current_iv"`
}

// ExitDecision 청산 판단 결과
type ExitDecision struct {
	Action   ExitAction `json:"action"`
	Quantity int        `json:"quantity"`
	Reason   string     `json:"reason"`
}

// GreeksAlert 그릭스 변화 경고 (자동 청산 트리거 아님)
type GreeksAlert struct {
	PositionID int     `json:"position_id"`
	Symbol     string  `json:"symbol"`
	Kind       string  `json:"kind"` // delta_drift, iv_change
	Message    string  `json:"message"`
	Entry      float64 `json:"entry"`
	Current    float64 `json:"current"`
	Change     float64 `json:"change"`
}

// PositionCheck 포지션별 모니터 결과
type PositionCheck struct {
	PositionID   int          `json:"id"`
	Symbol       string       `json:"symbol"`
	Strike       float64      `json:"strike"`
	Right        Right        `json:"option_type"`
	Expiration   string       `json:"expiration"`
	Remaining    int          `json:"quantity_remaining"`
	EntryPrice   float64      `json:"entry_price"`
	CurrentPrice float64      `json:"current_price"`
	PnLPercent   float64      `json:"pnl_pct"`
	DTE          int          `json:"dte"`
	GreeksChange Greeks       `json:"greeks_change"`
	IVChangePct  float64      `json:"iv_change_pct"`
	Decision     ExitDecision `json:"decision"`
	Executed     *TradeResult `json:"execution,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// MonitorReport 모니터 1회 결과
type MonitorReport struct {
	CheckedAt time.Time       `json:"checked_at"`
	DryRun    bool            `json:"dry_run"`
	Trades    []PositionCheck `json:"trades"`
	Alerts    []GreeksAlert   `json:"alerts"`
	Message   string          `json:"message,omitempty"`
}
