package contracts

// =============================================================================
// Scorecard (후보 1건당 실행 1회의 최종 산출물)
// ⭐ SSOT: 스코어카드/티어 타입은 여기서만
// =============================================================================

// Tier 진입 판단 등급
type Tier string

const (
	TierEnter       Tier = "enter"
	TierReducedSize Tier = "reduced_size"
	TierSkip        Tier = "skip"
)

// Component names used in Scorecard.Components
const (
	ComponentScan       = "scan"
	ComponentNews       = "news"
	ComponentFlow       = "flow"
	ComponentSweep      = "sweep"
	ComponentIVRank     = "iv_rank"
	ComponentGEX        = "gex"
	ComponentNoEarnings = "no_earnings"
	ComponentSpread     = "spread"
)

// ComponentScore 구성요소별 점수
type ComponentScore struct {
	Name     string  `json:"name"`
	SubScore int     `json:"sub_score"`
	MaxSub   int     `json:"max_sub"`
	Weight   float64 `json:"weight"`
	Points   float64 `json:"points"`
}

// TradePlan 진입 계획 (mid 기준 목표가/손절가)
type TradePlan struct {
	EntryMid     float64 `json:"entry_mid"`
	TP1Price     float64 `json:"tp1_price"`
	TP2Price     float64 `json:"tp2_price"`
	StopPrice    float64 `json:"stop_price"`
	MaxContracts int     `json:"max_contracts"`
}

// Scorecard 후보 평가 결과
type Scorecard struct {
	Candidate    Candidate        `json:"candidate"`
	Composite    float64          `json:"composite_score"`
	MaxScore     float64          `json:"max_score"`
	Tier         Tier             `json:"tier"`
	Components   []ComponentScore `json:"components"`
	Contract     *ContractQuote   `json:"selected_contract,omitempty"`
	EarningsRisk bool             `json:"earnings_risk"`
	Details      []string         `json:"details"`
	Plan         *TradePlan       `json:"trade_plan,omitempty"`
}

// Component returns the named component score
func (s Scorecard) Component(name string) (ComponentScore, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentScore{}, false
}
