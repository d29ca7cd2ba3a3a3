package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// =============================================================================
// CapitalGate - 주문 전 자본/슬롯 게이트
// =============================================================================

// GateMode 게이트 동작 모드
type GateMode string

const (
	GateModeEnforce GateMode = "enforce" // 실제 차단
	GateModeShadow  GateMode = "shadow"  // 로깅만, 실제 차단 안함
	GateModeOff     GateMode = "off"     // 비활성화
)

// contractMultiplier US equity options
var contractMultiplier = decimal.NewFromInt(100)

// CapitalGateConfig capital gate limits
type CapitalGateConfig struct {
	Mode           GateMode `yaml:"mode"`
	MaxOpenTrades  int      `yaml:"max_open_trades"`
	MaxPositionPct float64  `yaml:"max_position_pct"` // net liquidation 대비 1건 최대 비중
	MaxSpreadPct   float64  `yaml:"max_spread_pct"`   // verify spread 상한
}

// DefaultCapitalGateConfig 3 open trades, 20% per position
func DefaultCapitalGateConfig() CapitalGateConfig {
	return CapitalGateConfig{
		Mode:           GateModeEnforce,
		MaxOpenTrades:  3,
		MaxPositionPct: 0.20,
		MaxSpreadPct:   0.20,
	}
}

// GateCheckInput everything the gate needs; no I/O inside Check
type GateCheckInput struct {
	Verify         *contracts.VerifyResult  // nil = not verified
	OpenCount      int                      // ledger OPEN entries
	Contract       contracts.OptionContract // qualified contract
	Quantity       int
	Quote          contracts.BrokerQuote
	NetLiquidation float64
}

// GateCheckResult 게이트 체크 결과
type GateCheckResult struct {
	Passed      bool                  `json:"passed"`
	Mode        GateMode              `json:"mode"`
	Status      contracts.TradeStatus `json:"status,omitempty"`
	Message     string                `json:"message"`
	WouldBlock  bool                  `json:"would_block"` // Shadow 모드에서 차단됐을지 여부
	EstPrice    float64               `json:"est_price"`
	EstCost     float64               `json:"est_cost"`
	MaxCost     float64               `json:"max_cost"`
	MaxQuantity *int                  `json:"max_qty,omitempty"`
}

// CapitalGate checks spread, open slots, qualification and position size
// ⭐ SSOT: 주문 전 자본 체크는 여기서만
type CapitalGate struct {
	config CapitalGateConfig
	logger *logger.Logger
}

// NewCapitalGate creates a new capital gate
func NewCapitalGate(config CapitalGateConfig, log *logger.Logger) *CapitalGate {
	return &CapitalGate{config: config, logger: log.WithComponent("capital_gate")}
}

// Config returns the gate limits
func (g *CapitalGate) Config() CapitalGateConfig {
	return g.config
}

// Check runs the checks in order and stops at the first failure
func (g *CapitalGate) Check(in GateCheckInput) *GateCheckResult {
	result := &GateCheckResult{Mode: g.config.Mode}

	if g.config.Mode == GateModeOff {
		result.Passed = true
		result.Message = "Capital gate is disabled"
		return result
	}

	blocked := g.evaluate(in, result)
	if !blocked {
		result.Passed = true
		result.Message = "All capital checks passed"
		return result
	}

	result.WouldBlock = true
	fields := map[string]interface{}{
		"contract": in.Contract.String(),
		"quantity": in.Quantity,
		"status":   result.Status,
		"message":  result.Message,
		"mode":     g.config.Mode,
	}

	// 미등록 계약은 모드와 무관하게 주문 불가
	if g.config.Mode == GateModeShadow && result.Status != contracts.TradeError {
		result.Passed = true
		g.logger.WithFields(fields).Warn("SHADOW BLOCK: Would have blocked order")
		return result
	}

	result.Passed = false
	g.logger.WithFields(fields).Warn("Order blocked by capital gate")
	return result
}

// evaluate fills result and reports whether any check failed
func (g *CapitalGate) evaluate(in GateCheckInput, result *GateCheckResult) bool {
	// 1. spread (verify 성공 시에만)
	if in.Verify != nil && in.Verify.Verified && !in.Verify.SpreadOK {
		result.Status = contracts.TradeRejected
		result.Message = fmt.Sprintf("Spread too wide: %.1f%% > %.1f%%", in.Verify.SpreadPct, g.config.MaxSpreadPct*100)
		return true
	}

	// 2. open slots
	if in.OpenCount >= g.config.MaxOpenTrades {
		result.Status = contracts.TradeRejected
		result.Message = fmt.Sprintf("Max %d open trades reached (%d open)", g.config.MaxOpenTrades, in.OpenCount)
		return true
	}

	// 3. qualified contract
	if in.Contract.ConID == 0 {
		result.Status = contracts.TradeError
		result.Message = fmt.Sprintf("Contract not found: %s", in.Contract)
		return true
	}

	// 4. position size
	estPrice := decimal.NewFromFloat(in.Quote.EstimatedPrice())
	netLiq := decimal.NewFromFloat(in.NetLiquidation)
	perContract := estPrice.Mul(contractMultiplier)
	estCost := perContract.Mul(decimal.NewFromInt(int64(in.Quantity)))
	maxCost := netLiq.Mul(decimal.NewFromFloat(g.config.MaxPositionPct))

	result.EstPrice = estPrice.InexactFloat64()
	result.EstCost = estCost.Round(2).InexactFloat64()
	result.MaxCost = maxCost.Round(2).InexactFloat64()

	// net liquidation 미확인(0)이면 한도 체크 생략
	if netLiq.IsPositive() && estCost.GreaterThan(maxCost) {
		maxQty := 0
		if perContract.IsPositive() {
			maxQty = int(maxCost.Div(perContract).Floor().IntPart())
		}
		result.Status = contracts.TradeRejected
		result.MaxQuantity = &maxQty
		result.Message = fmt.Sprintf("Cost $%s exceeds %s%% limit ($%s). Max qty: %d",
			estCost.StringFixed(0),
			decimal.NewFromFloat(g.config.MaxPositionPct*100).StringFixed(0),
			maxCost.StringFixed(0),
			maxQty)
		return true
	}
	return false
}
