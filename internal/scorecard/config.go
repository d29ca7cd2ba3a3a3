package scorecard

import "fmt"

// Weights per component (points = sub_score * weight)
type Weights struct {
	Scan       float64 `yaml:"scan"`
	News       float64 `yaml:"news"`
	Flow       float64 `yaml:"flow"`
	Sweep      float64 `yaml:"sweep"`
	IVRank     float64 `yaml:"iv_rank"`
	GEX        float64 `yaml:"gex"`
	NoEarnings float64 `yaml:"no_earnings"`
	Spread     float64 `yaml:"spread"`
}

// Thresholds tier cut-offs (inclusive)
type Thresholds struct {
	EnterMin   float64 `yaml:"enter_min"`
	ReducedMin float64 `yaml:"reduced_min"`
}

// PlanConfig trade plan multipliers on the entry mid
type PlanConfig struct {
	TP1Multiplier  float64 `yaml:"tp1_multiplier"`
	TP2Multiplier  float64 `yaml:"tp2_multiplier"`
	StopMultiplier float64 `yaml:"stop_multiplier"`
	MaxContracts   int     `yaml:"max_contracts"`
	MaxRiskDollars float64 `yaml:"max_risk_dollars"` // 1건당 최대 투입 금액
}

// ReportConfig recommendation report settings
type ReportConfig struct {
	MinScore float64 `yaml:"min_score"`
	TopN     int     `yaml:"top_n"`
}

// Config scoring settings
// SSOT: strategy YAML scoring
type Config struct {
	Weights       Weights      `yaml:"weights"`
	Thresholds    Thresholds   `yaml:"thresholds"`
	SpreadCeiling float64      `yaml:"spread_ceiling"`
	Plan          PlanConfig   `yaml:"plan"`
	Report        ReportConfig `yaml:"report"`
}

// DefaultConfig returns equal weights (max 9) and the 7/5 tiers
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Scan:       1,
			News:       1,
			Flow:       1,
			Sweep:      1,
			IVRank:     1,
			GEX:        1,
			NoEarnings: 1,
			Spread:     1,
		},
		Thresholds: Thresholds{
			EnterMin:   7,
			ReducedMin: 5,
		},
		SpreadCeiling: 0.20,
		Plan: PlanConfig{
			TP1Multiplier:  1.25,
			TP2Multiplier:  1.50,
			StopMultiplier: 0.70,
			MaxContracts:   3,
			MaxRiskDollars: 600,
		},
		Report: ReportConfig{
			MinScore: 5,
			TopN:     5,
		},
	}
}

// Validate checks weights and thresholds
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"scan": c.Weights.Scan, "news": c.Weights.News, "flow": c.Weights.Flow,
		"sweep": c.Weights.Sweep, "iv_rank": c.Weights.IVRank, "gex": c.Weights.GEX,
		"no_earnings": c.Weights.NoEarnings, "spread": c.Weights.Spread,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be >= 0", name)
		}
	}
	if c.Thresholds.ReducedMin > c.Thresholds.EnterMin {
		return fmt.Errorf("reduced_min (%.2f) must be <= enter_min (%.2f)", c.Thresholds.ReducedMin, c.Thresholds.EnterMin)
	}
	if c.SpreadCeiling <= 0 {
		return fmt.Errorf("spread_ceiling must be > 0")
	}
	return nil
}
