package signals

// NewsConfig news evaluator settings
type NewsConfig struct {
	Limit              int      `yaml:"limit"`
	EarningsWindowDays int      `yaml:"earnings_window_days"`
	PositiveWords      []string `yaml:"positive_words"`
	NegativeWords      []string `yaml:"negative_words"`
	EarningsKeywords   []string `yaml:"earnings_keywords"`
	Headlines          int      `yaml:"headlines"` // rationale에 남길 헤드라인 수
}

// FlowConfig flow/sweep evaluator settings
type FlowConfig struct {
	Limit      int     `yaml:"limit"`
	MinPremium float64 `yaml:"min_premium"`
}

// GEXConfig market-wide gamma exposure settings
type GEXConfig struct {
	Ticker string `yaml:"ticker"`
}

// IVRankConfig target IV rank band (percent)
type IVRankConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Config all evaluator settings
type Config struct {
	News   NewsConfig   `yaml:"news"`
	Flow   FlowConfig   `yaml:"flow"`
	GEX    GEXConfig    `yaml:"gex"`
	IVRank IVRankConfig `yaml:"iv_rank"`
}

// DefaultConfig 기본 평가기 설정
func DefaultConfig() Config {
	return Config{
		News: NewsConfig{
			Limit:              5,
			EarningsWindowDays: 5,
			PositiveWords:      []string{"upgrade", "beat", "surge", "rally", "strong", "bullish", "raises", "record", "growth"},
			NegativeWords:      []string{"downgrade", "miss", "decline", "weak", "bearish", "cut", "warning", "loss", "recall"},
			EarningsKeywords:   []string{"earnings", "quarterly results", "revenue report", "eps"},
			Headlines:          3,
		},
		Flow: FlowConfig{
			Limit:      10,
			MinPremium: 50000,
		},
		GEX: GEXConfig{
			Ticker: "SPY",
		},
		IVRank: IVRankConfig{
			Min: 30,
			Max: 60,
		},
	}
}
