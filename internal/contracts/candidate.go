package contracts

import (
	"fmt"
	"strings"
)

// =============================================================================
// Candidate (스캐너 산출물, 실행 단위로만 존재)
// ⭐ SSOT: 후보 종목 타입은 여기서만
// =============================================================================

// ValidationError 입력값 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Direction 매매 방향
type Direction string

const (
	DirectionCall Direction = "CALL" // bullish
	DirectionPut  Direction = "PUT"  // bearish
)

// ParseDirection accepts CALL/C/BULLISH and PUT/P/BEARISH in any case
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C", "BULLISH":
		return DirectionCall, nil
	case "PUT", "P", "BEARISH":
		return DirectionPut, nil
	}
	return "", ValidationError{"direction", fmt.Sprintf("unknown direction %q", s)}
}

// Valid reports whether d is CALL or PUT
func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// Bias returns "bullish" or "bearish"
func (d Direction) Bias() string {
	if d == DirectionPut {
		return "bearish"
	}
	return "bullish"
}

// Right maps the direction to the option right
func (d Direction) Right() Right {
	if d == DirectionPut {
		return RightPut
	}
	return RightCall
}

// DiscoverySource 후보 발굴 출처 (우선순위 순)
type DiscoverySource string

const (
	SourceUWBullish     DiscoverySource = "uw_bullish"
	SourceFinvizBullish DiscoverySource = "finviz_bullish"
	SourceUWBearish     DiscoverySource = "uw_bearish"
	SourceFinvizBearish DiscoverySource = "finviz_bearish"
	SourceFallback      DiscoverySource = "fallback"
)

// SourceFor builds the source tag for a provider and direction
func SourceFor(provider string, d Direction) DiscoverySource {
	return DiscoverySource(provider + "_" + d.Bias())
}

// Candidate 스캔 후보
type Candidate struct {
	Symbol         string          `json:"symbol"`
	Direction      Direction       `json:"direction"`
	ReferencePrice float64         `json:"reference_price"`
	Source         DiscoverySource `json:"source"`
	Volume         int64           `json:"volume"`
	Premium        float64         `json:"premium,omitempty"`
	ChangePct      float64         `json:"change_pct,omitempty"`
	RawMetrics     map[string]any  `json:"raw_metrics,omitempty"`
}

// NewCandidate validates and normalizes a candidate.
// A zero reference price is allowed (the selector resolves it later).
func NewCandidate(symbol string, dir Direction, price float64, source DiscoverySource) (Candidate, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return Candidate{}, ValidationError{"symbol", "required"}
	}
	if !dir.Valid() {
		return Candidate{}, ValidationError{"direction", fmt.Sprintf("invalid direction %q", dir)}
	}
	if price < 0 {
		return Candidate{}, ValidationError{"reference_price", "must be >= 0"}
	}
	if source == "" {
		return Candidate{}, ValidationError{"source", "required"}
	}
	return Candidate{
		Symbol:         symbol,
		Direction:      dir,
		ReferencePrice: price,
		Source:         source,
	}, nil
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
