package strategyconfig

import (
	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/execution"
	"github.com/sabq4org/so7ba.ai/internal/external/finviz"
	"github.com/sabq4org/so7ba.ai/internal/external/unusualwhales"
	"github.com/sabq4org/so7ba.ai/internal/market"
	"github.com/sabq4org/so7ba.ai/internal/scanner"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
	"github.com/sabq4org/so7ba.ai/internal/selection"
	"github.com/sabq4org/so7ba.ai/internal/signals"
)

// Config는 옵션 스크리닝 전략의 전체 설정
// ⭐ SSOT: 튜닝 파라미터는 이 구조체에서만 (코드 기본값 = Default())
type Config struct {
	Meta      Meta                        `yaml:"meta" json:"meta"`
	Scanner   Scanner                     `yaml:"scanner" json:"scanner"`
	Signals   signals.Config              `yaml:"signals" json:"signals"`
	Selection selection.Criteria          `yaml:"selection" json:"selection"`
	Scorecard scorecard.Config            `yaml:"scorecard" json:"scorecard"`
	Market    market.ContextConfig        `yaml:"market" json:"market"`
	Exit      contracts.ExitRulesConfig   `yaml:"exit" json:"exit"`
	Gate      execution.CapitalGateConfig `yaml:"capital_gate" json:"capital_gate"`
	Fill      execution.FillPollConfig    `yaml:"fill" json:"fill"`
	Schedule  Schedule                    `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Scanner discovery settings
type Scanner struct {
	scanner.Config `yaml:",inline"`
	UWScreener     unusualwhales.ScreenerParams `yaml:"uw_screener" json:"uw_screener"`
	Finviz         FinvizFilters                `yaml:"finviz" json:"finviz"`
}

// FinvizFilters screener filter strings per direction
type FinvizFilters struct {
	Bullish string `yaml:"bullish" json:"bullish"`
	Bearish string `yaml:"bearish" json:"bearish"`
}

// Schedule cron expressions (with seconds field) for serve mode
type Schedule struct {
	Timezone string `yaml:"timezone" json:"timezone"`
	Scan     string `yaml:"scan" json:"scan"`
	Monitor  string `yaml:"monitor" json:"monitor"`
}

// Default returns the built-in strategy
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "options_momentum",
			Version:    "1.0.0",
		},
		Scanner: Scanner{
			Config:     scanner.DefaultConfig(),
			UWScreener: unusualwhales.DefaultScreenerParams(),
			Finviz: FinvizFilters{
				Bullish: finviz.BullishFilters,
				Bearish: finviz.BearishFilters,
			},
		},
		Signals:   signals.DefaultConfig(),
		Selection: selection.DefaultCriteria(),
		Scorecard: scorecard.DefaultConfig(),
		Market:    market.DefaultContextConfig(),
		Exit:      *contracts.DefaultExitRulesConfig(),
		Gate:      execution.DefaultCapitalGateConfig(),
		Fill:      execution.DefaultFillPollConfig(),
		Schedule: Schedule{
			Timezone: "UTC",
			Scan:     "0 0 12 * * MON-FRI",       // 장 시작 전 스크리닝
			Monitor:  "0 */15 14-20 * * MON-FRI", // 장중 15분 간격
		},
	}
}
