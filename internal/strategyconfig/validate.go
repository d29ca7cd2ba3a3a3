package strategyconfig

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sabq4org/so7ba.ai/internal/execution"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// scheduleParser matches the scheduler (seconds field + descriptors)
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Scanner ===
	if cfg.Scanner.MaxCandidates <= 0 {
		return ValidationError{"scanner.max_candidates", "must be > 0"}
	}
	if cfg.Scanner.UWScreener.Limit <= 0 {
		return ValidationError{"scanner.uw_screener.limit", "must be > 0"}
	}
	if err := validatePctRange(cfg.Scanner.UWScreener.MinSidePercent, "scanner.uw_screener.min_side_percent"); err != nil {
		return err
	}
	if err := validatePctRange(cfg.Scanner.UWScreener.MaxMultilegRatio, "scanner.uw_screener.max_multileg_ratio"); err != nil {
		return err
	}
	if cfg.Scanner.Finviz.Bullish == "" || cfg.Scanner.Finviz.Bearish == "" {
		return ValidationError{"scanner.finviz", "bullish and bearish filters are required"}
	}

	// === Signals ===
	if cfg.Signals.News.Limit <= 0 {
		return ValidationError{"signals.news.limit", "must be > 0"}
	}
	if cfg.Signals.Flow.Limit <= 0 {
		return ValidationError{"signals.flow.limit", "must be > 0"}
	}
	if cfg.Signals.GEX.Ticker == "" {
		return ValidationError{"signals.gex.ticker", "required"}
	}
	iv := cfg.Signals.IVRank
	if iv.Min < 0 || iv.Max > 100 || iv.Min >= iv.Max {
		return ValidationError{"signals.iv_rank", "must satisfy 0 <= min < max <= 100"}
	}

	// === Selection ===
	sel := cfg.Selection
	if sel.MinDTE < 0 || sel.MinDTE > sel.MaxDTE {
		return ValidationError{"selection.min_dte", "must satisfy 0 <= min_dte <= max_dte"}
	}
	if !(sel.DeltaMin > 0 && sel.DeltaMin <= sel.TargetDelta && sel.TargetDelta <= sel.DeltaMax && sel.DeltaMax <= 1) {
		return ValidationError{"selection.delta", "must satisfy 0 < delta_min <= target_delta <= delta_max <= 1"}
	}
	if sel.PriceMin < 0 || sel.PriceMin >= sel.PriceMax {
		return ValidationError{"selection.price_min", "must satisfy 0 <= price_min < price_max"}
	}
	if sel.MaxSpreadPct <= 0 {
		return ValidationError{"selection.max_spread_pct", "must be > 0"}
	}
	if sel.CallStrikeLow > sel.CallStrikeHigh {
		return ValidationError{"selection.call_strike_low", "must be <= call_strike_high"}
	}
	if sel.PutStrikeLow > sel.PutStrikeHigh {
		return ValidationError{"selection.put_strike_low", "must be <= put_strike_high"}
	}
	if sel.ChainLimit <= 0 {
		return ValidationError{"selection.chain_limit", "must be > 0"}
	}

	// === Scorecard ===
	if err := cfg.Scorecard.Validate(); err != nil {
		return ValidationError{"scorecard", err.Error()}
	}
	plan := cfg.Scorecard.Plan
	if plan.TP1Multiplier <= 1 || plan.TP2Multiplier < plan.TP1Multiplier {
		return ValidationError{"scorecard.plan", "must satisfy 1 < tp1_multiplier <= tp2_multiplier"}
	}
	if plan.StopMultiplier <= 0 || plan.StopMultiplier >= 1 {
		return ValidationError{"scorecard.plan.stop_multiplier", "must be in (0, 1)"}
	}
	if plan.MaxContracts <= 0 {
		return ValidationError{"scorecard.plan.max_contracts", "must be > 0"}
	}
	if cfg.Scorecard.Report.TopN <= 0 {
		return ValidationError{"scorecard.report.top_n", "must be > 0"}
	}

	// === Market ===
	if cfg.Market.TopDarkPool < 0 || cfg.Market.TopCongress < 0 {
		return ValidationError{"market", "top_darkpool and top_congress must be >= 0"}
	}
	if cfg.Market.NeutralBand < 0 || cfg.Market.NeutralBand >= 1 {
		return ValidationError{"market.neutral_band", "must be in [0, 1)"}
	}

	// === Exit ===
	exit := cfg.Exit
	if exit.TP1Percent <= 0 || exit.TP2Percent <= exit.TP1Percent {
		return ValidationError{"exit", "must satisfy 0 < tp1_percent < tp2_percent"}
	}
	if exit.StopLossPercent >= 0 || exit.StopLossPercent <= -100 {
		return ValidationError{"exit.stop_loss_percent", "must be in (-100, 0)"}
	}
	if exit.DTEExit < 0 {
		return ValidationError{"exit.dte_exit", "must be >= 0"}
	}

	// === Capital gate ===
	switch cfg.Gate.Mode {
	case execution.GateModeEnforce, execution.GateModeShadow, execution.GateModeOff:
	default:
		return ValidationError{"capital_gate.mode", "must be one of: enforce, shadow, off"}
	}
	if cfg.Gate.MaxOpenTrades <= 0 {
		return ValidationError{"capital_gate.max_open_trades", "must be > 0"}
	}
	if cfg.Gate.MaxPositionPct <= 0 || cfg.Gate.MaxPositionPct > 1 {
		return ValidationError{"capital_gate.max_position_pct", "must be in (0, 1]"}
	}
	if cfg.Gate.MaxSpreadPct <= 0 {
		return ValidationError{"capital_gate.max_spread_pct", "must be > 0"}
	}

	// === Fill ===
	if cfg.Fill.Interval <= 0 || cfg.Fill.MaxPolls <= 0 {
		return ValidationError{"fill", "interval and max_polls must be > 0"}
	}

	// === Schedule ===
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return ValidationError{"schedule.timezone", err.Error()}
	}
	if _, err := scheduleParser.Parse(cfg.Schedule.Scan); err != nil {
		return ValidationError{"schedule.scan", err.Error()}
	}
	if _, err := scheduleParser.Parse(cfg.Schedule.Monitor); err != nil {
		return ValidationError{"schedule.monitor", err.Error()}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Gate.Mode != execution.GateModeEnforce {
		warnings = append(warnings, Warning{
			Code:    "GATE_NOT_ENFORCED",
			Message: fmt.Sprintf("capital gate mode %q: 한도 초과 주문도 실행됨", cfg.Gate.Mode),
		})
	}

	if cfg.Selection.MaxSpreadPct > cfg.Gate.MaxSpreadPct {
		warnings = append(warnings, Warning{
			Code:    "SPREAD_MISMATCH",
			Message: "selection.max_spread_pct > capital_gate.max_spread_pct: 선정된 계약이 매수 단계에서 차단될 수 있음",
		})
	}

	if cfg.Exit.DTEExit >= cfg.Selection.MinDTE {
		warnings = append(warnings, Warning{
			Code:    "DTE_EXIT_OVERLAP",
			Message: "exit.dte_exit >= selection.min_dte: 진입 직후 만기 청산 가능",
		})
	}

	if cfg.Scorecard.Thresholds.EnterMin > scorecard.NewAggregator(cfg.Scorecard).MaxScore() {
		warnings = append(warnings, Warning{
			Code:    "ENTER_UNREACHABLE",
			Message: "scorecard.thresholds.enter_min exceeds the maximum composite score",
		})
	}

	return warnings
}

// validatePctRange는 비율 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
