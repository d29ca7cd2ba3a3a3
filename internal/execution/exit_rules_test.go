package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

func snapshot(remaining int, tp1Hit bool, entry, current float64, dte int) contracts.PositionSnapshot {
	p := contracts.Position{
		ID:                1,
		Symbol:            "AAPL",
		Strike:            230,
		Right:             contracts.RightCall,
		Expiration:        "20250221",
		QuantityOpened:    remaining,
		QuantityRemaining: remaining,
		EntryPrice:        entry,
		Status:            contracts.PositionOpen,
		TP1Hit:            tp1Hit,
	}
	return contracts.PositionSnapshot{
		Position:     p,
		CurrentPrice: current,
		PnLPercent:   PnLPercent(entry, current),
		DTE:          dte,
	}
}

func TestDecide(t *testing.T) {
	rules := ExitRules(contracts.DefaultExitRulesConfig())

	tests := []struct {
		name   string
		snap   contracts.PositionSnapshot
		action contracts.ExitAction
		qty    int
	}{
		{"dte exit beats +200%", snapshot(4, false, 1.0, 3.0, 1), contracts.ActionDTEExit, 4},
		{"dte at threshold", snapshot(2, false, 1.0, 1.0, 2), contracts.ActionDTEExit, 2},
		{"stop loss", snapshot(3, false, 2.0, 1.4, 10), contracts.ActionStopLoss, 3},
		{"stop loss after tp1", snapshot(2, true, 2.0, 1.2, 10), contracts.ActionStopLoss, 2},
		{"no stop without price", snapshot(3, false, 2.0, 0, 10), contracts.ActionHold, 0},
		{"tp1 sells half", snapshot(4, false, 2.0, 2.5, 10), contracts.ActionTP1SellHalf, 2},
		{"tp1 odd quantity rounds down", snapshot(3, false, 2.0, 2.6, 10), contracts.ActionTP1SellHalf, 1},
		{"tp1 single contract sells one", snapshot(1, false, 2.0, 2.6, 10), contracts.ActionTP1SellHalf, 1},
		{"tp1 already hit holds at +30%", snapshot(2, true, 2.0, 2.6, 10), contracts.ActionHold, 0},
		{"tp2 after tp1", snapshot(2, true, 2.0, 3.0, 10), contracts.ActionTP2SellRest, 2},
		{"+50% before tp1 is tp1", snapshot(4, false, 2.0, 3.2, 10), contracts.ActionTP1SellHalf, 2},
		{"hold", snapshot(3, false, 2.0, 2.1, 10), contracts.ActionHold, 0},
		{"just above stop", snapshot(3, false, 2.0, 1.41, 10), contracts.ActionHold, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(rules, tt.snap)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.qty, d.Quantity)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestPnLPercent(t *testing.T) {
	assert.Equal(t, 25.0, PnLPercent(2.0, 2.5))
	assert.Equal(t, -30.0, PnLPercent(2.0, 1.4))
	assert.Equal(t, 0.0, PnLPercent(2.0, 0))
	assert.Equal(t, 0.0, PnLPercent(0, 2.0))
}

func TestGreeksAlerts(t *testing.T) {
	cfg := contracts.DefaultExitRulesConfig()

	s := snapshot(2, false, 2.0, 2.1, 10)
	s.Position.EntryGreeks = contracts.Greeks{Delta: 0.30, Gamma: 0.04}
	s.Position.EntryIV = 0.40

	t.Run("no drift", func(t *testing.T) {
		s := s
		s.Greeks = contracts.Greeks{Delta: 0.35, Gamma: 0.04}
		s.IV = 0.44
		assert.Empty(t, GreeksAlerts(cfg, s))
	})

	t.Run("delta and iv", func(t *testing.T) {
		s := s
		s.Greeks = contracts.Greeks{Delta: 0.45, Gamma: 0.05}
		s.IV = 0.30
		alerts := GreeksAlerts(cfg, s)
		assert.Len(t, alerts, 2)
		assert.Equal(t, "delta_drift", alerts[0].Kind)
		assert.InDelta(t, 0.15, alerts[0].Change, 1e-9)
		assert.Equal(t, "iv_change", alerts[1].Kind)
		assert.InDelta(t, -25.0, alerts[1].Change, 1e-9)
	})

	t.Run("missing greeks", func(t *testing.T) {
		s := s
		assert.Empty(t, GreeksAlerts(cfg, s))
	})
}
