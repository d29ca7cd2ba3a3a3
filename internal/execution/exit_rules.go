// Package execution - exit_rules.go
// 옵션 포지션 청산 규칙 (순서대로 평가, 첫 매칭 적용)
// - DTE <= 2: 전량 청산
// - 손절: -30% 이하 (현재가 > 0 일 때만)
// - TP1: +25% 이상, 절반 매도 (1회)
// - TP2: TP1 이후 +50% 이상, 잔량 매도
package execution

import (
	"fmt"
	"math"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// =============================================================================
// Exit transition table
// ⭐ SSOT: 청산 판단은 여기서만
// =============================================================================

// ExitRule one row of the transition table
type ExitRule struct {
	Action  contracts.ExitAction
	When    func(s contracts.PositionSnapshot) bool
	SellQty func(p contracts.Position) int
	Reason  func(s contracts.PositionSnapshot) string
}

// ExitRules builds the ordered table from config
func ExitRules(cfg *contracts.ExitRulesConfig) []ExitRule {
	if cfg == nil {
		cfg = contracts.DefaultExitRulesConfig()
	}
	all := func(p contracts.Position) int { return p.QuantityRemaining }

	return []ExitRule{
		{
			Action:  contracts.ActionDTEExit,
			When:    func(s contracts.PositionSnapshot) bool { return s.DTE <= cfg.DTEExit },
			SellQty: all,
			Reason: func(s contracts.PositionSnapshot) string {
				return fmt.Sprintf("DTE %d <= %d: exit all", s.DTE, cfg.DTEExit)
			},
		},
		{
			Action: contracts.ActionStopLoss,
			When: func(s contracts.PositionSnapshot) bool {
				return s.CurrentPrice > 0 && s.PnLPercent <= cfg.StopLossPercent
			},
			SellQty: all,
			Reason: func(s contracts.PositionSnapshot) string {
				return fmt.Sprintf("Stop loss: %.1f%% <= %.0f%%", s.PnLPercent, cfg.StopLossPercent)
			},
		},
		{
			Action: contracts.ActionTP1SellHalf,
			When: func(s contracts.PositionSnapshot) bool {
				return !s.Position.TP1Hit && s.PnLPercent >= cfg.TP1Percent
			},
			SellQty: func(p contracts.Position) int {
				half := p.QuantityRemaining / 2
				if half < 1 {
					half = 1
				}
				return half
			},
			Reason: func(s contracts.PositionSnapshot) string {
				return fmt.Sprintf("TP1: +%.1f%% >= +%.0f%%, sell half", s.PnLPercent, cfg.TP1Percent)
			},
		},
		{
			Action: contracts.ActionTP2SellRest,
			When: func(s contracts.PositionSnapshot) bool {
				return s.Position.TP1Hit && s.PnLPercent >= cfg.TP2Percent
			},
			SellQty: all,
			Reason: func(s contracts.PositionSnapshot) string {
				return fmt.Sprintf("TP2: +%.1f%% >= +%.0f%%, sell rest", s.PnLPercent, cfg.TP2Percent)
			},
		},
	}
}

// Decide walks the table in order; no match is HOLD
func Decide(rules []ExitRule, s contracts.PositionSnapshot) contracts.ExitDecision {
	for _, r := range rules {
		if r.When(s) {
			return contracts.ExitDecision{
				Action:   r.Action,
				Quantity: r.SellQty(s.Position),
				Reason:   r.Reason(s),
			}
		}
	}
	return contracts.ExitDecision{
		Action: contracts.ActionHold,
		Reason: fmt.Sprintf("Hold: %.1f%%, DTE %d", s.PnLPercent, s.DTE),
	}
}

// PnLPercent (current/entry - 1) * 100, 0 without prices
func PnLPercent(entry, current float64) float64 {
	if entry <= 0 || current <= 0 {
		return 0
	}
	return math.Round((current/entry-1)*100*100) / 100
}

// =============================================================================
// Greeks alerts (경고만, 자동 청산 아님)
// =============================================================================

// GreeksAlerts compares the snapshot against the entry greeks
func GreeksAlerts(cfg *contracts.ExitRulesConfig, s contracts.PositionSnapshot) []contracts.GreeksAlert {
	if cfg == nil {
		cfg = contracts.DefaultExitRulesConfig()
	}
	p := s.Position
	var alerts []contracts.GreeksAlert

	if !s.Greeks.IsZero() {
		dd := s.Greeks.Delta - p.EntryGreeks.Delta
		if math.Abs(dd) > cfg.DeltaAlertThreshold {
			alerts = append(alerts, contracts.GreeksAlert{
				PositionID: p.ID,
				Symbol:     p.Symbol,
				Kind:       "delta_drift",
				Message:    fmt.Sprintf("%s delta %.2f -> %.2f (%+.2f)", p.Contract(), p.EntryGreeks.Delta, s.Greeks.Delta, dd),
				Entry:      p.EntryGreeks.Delta,
				Current:    s.Greeks.Delta,
				Change:     round4(dd),
			})
		}
	}

	if ivc := IVChangePercent(p.EntryIV, s.IV); math.Abs(ivc) > cfg.IVAlertPercent {
		alerts = append(alerts, contracts.GreeksAlert{
			PositionID: p.ID,
			Symbol:     p.Symbol,
			Kind:       "iv_change",
			Message:    fmt.Sprintf("%s IV %.1f%% -> %.1f%% (%+.1f%%)", p.Contract(), p.EntryIV*100, s.IV*100, ivc),
			Entry:      p.EntryIV,
			Current:    s.IV,
			Change:     ivc,
		})
	}
	return alerts
}

// IVChangePercent relative IV change in percent, 0 without both values
func IVChangePercent(entry, current float64) float64 {
	if entry <= 0 || current <= 0 {
		return 0
	}
	return math.Round((current-entry)/entry*100*100) / 100
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
