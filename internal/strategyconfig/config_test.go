package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/execution"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Empty(t, Warn(cfg))
}

func TestLoad_ShippedStrategy(t *testing.T) {
	path := "../../config/strategy/options_momentum.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)
	assert.Equal(t, "options_momentum", cfg.Meta.StrategyID)
	assert.Equal(t, 2*time.Second, cfg.Fill.Interval)
	assert.Equal(t, execution.GateModeEnforce, cfg.Gate.Mode)

	// 배포 YAML = 코드 기본값
	want, err := Hash(Default())
	require.NoError(t, err)
	got, err := Hash(cfg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_PartialOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
meta:
  strategy_id: aggressive
capital_gate:
  max_open_trades: 5
fill:
  interval: 500ms
`))
	require.NoError(t, err)

	assert.Equal(t, "aggressive", cfg.Meta.StrategyID)
	assert.Equal(t, 5, cfg.Gate.MaxOpenTrades)
	assert.Equal(t, 500*time.Millisecond, cfg.Fill.Interval)

	// 생략한 필드는 기본값 유지
	assert.Equal(t, 0.20, cfg.Gate.MaxPositionPct)
	assert.Equal(t, 15, cfg.Fill.MaxPolls)
	assert.Equal(t, Default().Selection, cfg.Selection)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`
selection:
  min_dte: 5
  max_dtee: 15
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_dtee")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"zero candidates", func(c *Config) { c.Scanner.MaxCandidates = 0 }, "scanner.max_candidates"},
		{"side percent above 1", func(c *Config) { c.Scanner.UWScreener.MinSidePercent = 70 }, "scanner.uw_screener.min_side_percent"},
		{"missing finviz filters", func(c *Config) { c.Scanner.Finviz.Bearish = "" }, "scanner.finviz"},
		{"iv rank inverted", func(c *Config) { c.Signals.IVRank.Min = 70 }, "signals.iv_rank"},
		{"dte window inverted", func(c *Config) { c.Selection.MinDTE = 20 }, "selection.min_dte"},
		{"target delta outside band", func(c *Config) { c.Selection.TargetDelta = 0.5 }, "selection.delta"},
		{"price band inverted", func(c *Config) { c.Selection.PriceMin = 10 }, "selection.price_min"},
		{"call strike window inverted", func(c *Config) { c.Selection.CallStrikeLow = 1.2 }, "selection.call_strike_low"},
		{"tier thresholds inverted", func(c *Config) { c.Scorecard.Thresholds.ReducedMin = 8 }, "scorecard"},
		{"tp1 multiplier below 1", func(c *Config) { c.Scorecard.Plan.TP1Multiplier = 0.9 }, "scorecard.plan"},
		{"stop multiplier above 1", func(c *Config) { c.Scorecard.Plan.StopMultiplier = 1.2 }, "scorecard.plan.stop_multiplier"},
		{"neutral band 1", func(c *Config) { c.Market.NeutralBand = 1 }, "market.neutral_band"},
		{"tp2 below tp1", func(c *Config) { c.Exit.TP2Percent = 20 }, "exit"},
		{"positive stop loss", func(c *Config) { c.Exit.StopLossPercent = 30 }, "exit.stop_loss_percent"},
		{"unknown gate mode", func(c *Config) { c.Gate.Mode = "strict" }, "capital_gate.mode"},
		{"position pct above 1", func(c *Config) { c.Gate.MaxPositionPct = 20 }, "capital_gate.max_position_pct"},
		{"zero fill interval", func(c *Config) { c.Fill.Interval = 0 }, "fill"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"five-field cron", func(c *Config) { c.Schedule.Scan = "0 12 * * MON-FRI" }, "schedule.scan"},
		{"bad monitor cron", func(c *Config) { c.Schedule.Monitor = "every 15 minutes" }, "schedule.monitor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Gate.Mode = execution.GateModeShadow
	cfg.Selection.MaxSpreadPct = 0.30
	cfg.Exit.DTEExit = 5
	cfg.Scorecard.Thresholds.EnterMin = 12
	cfg.Scorecard.Thresholds.ReducedMin = 10

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"GATE_NOT_ENFORCED", "SPREAD_MISMATCH", "DTE_EXIT_OVERLAP", "ENTER_UNREACHABLE"}, codes)
}

func TestHash(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	// 동일 설정 → 동일 해시
	b, _ := Hash(Default())
	assert.Equal(t, a, b)

	changed := Default()
	changed.Exit.TP1Percent = 30
	c, _ := Hash(changed)
	assert.NotEqual(t, a, c)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("capital_gate:\n  mode: yolo\n"), 0o644))
	_, err = LoadOrDefault(bad)
	assert.ErrorContains(t, err, "capital_gate.mode")
}
