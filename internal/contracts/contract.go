package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Expiry layouts
const (
	ExpiryCompact = "20060102"   // ledger, broker
	ExpiryISO     = "2006-01-02" // market data queries
)

// Right 옵션 종류
type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

// ParseRight accepts C/CALL and P/PUT in any case
func ParseRight(s string) (Right, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return RightCall, nil
	case "P", "PUT":
		return RightPut, nil
	}
	return "", ValidationError{"right", fmt.Sprintf("unknown option right %q", s)}
}

// ContractType is the lowercase name used by the options snapshot feed
func (r Right) ContractType() string {
	if r == RightPut {
		return "put"
	}
	return "call"
}

// Label returns "Call" or "Put"
func (r Right) Label() string {
	if r == RightPut {
		return "Put"
	}
	return "Call"
}

// Greeks 옵션 민감도
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Sub returns g - o per component
func (g Greeks) Sub(o Greeks) Greeks {
	return Greeks{
		Delta: round4(g.Delta - o.Delta),
		Gamma: round4(g.Gamma - o.Gamma),
		Theta: round4(g.Theta - o.Theta),
		Vega:  round4(g.Vega - o.Vega),
	}
}

// IsZero reports a missing greeks snapshot
func (g Greeks) IsZero() bool {
	return g == Greeks{}
}

// ContractQuote 옵션 계약 시점 스냅샷 (불변)
// ⭐ SSOT: 옵션 시세 타입은 여기서만
type ContractQuote struct {
	Ticker            string  `json:"ticker"`
	Symbol            string  `json:"symbol"`
	Expiration        string  `json:"expiration"` // YYYY-MM-DD
	Strike            float64 `json:"strike"`
	Right             Right   `json:"option_type"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Mid               float64 `json:"mid"`
	Greeks            Greeks  `json:"greeks"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	OpenInterest      int64   `json:"open_interest"`
	Volume            int64   `json:"volume"`
}

// MidPrice is (bid+ask)/2 when both sides are quoted, else 0
func MidPrice(bid, ask float64) float64 {
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	return 0
}

// SpreadPct returns (ask-bid)/mid as a fraction; +Inf without a mid
func (q ContractQuote) SpreadPct() float64 {
	if q.Mid <= 0 {
		return math.Inf(1)
	}
	return (q.Ask - q.Bid) / q.Mid
}

// DTE days to expiry measured from now
func (q ContractQuote) DTE(now time.Time) (int, error) {
	return DaysToExpiry(q.Expiration, now)
}

// ParseExpiry accepts YYYYMMDD or YYYY-MM-DD
func ParseExpiry(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := ExpiryCompact
	if strings.Contains(s, "-") {
		layout = ExpiryISO
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, ValidationError{"expiry", fmt.Sprintf("invalid expiry %q", s)}
	}
	return t, nil
}

// NormalizeExpiry converts either layout to layout
func NormalizeExpiry(s, layout string) (string, error) {
	t, err := ParseExpiry(s, time.UTC)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

// DaysToExpiry counts whole days between now and expiry midnight (floored)
func DaysToExpiry(expiry string, now time.Time) (int, error) {
	exp, err := ParseExpiry(expiry, now.Location())
	if err != nil {
		return 0, err
	}
	return int(math.Floor(exp.Sub(now).Hours() / 24)), nil
}

// OptionTicker builds the OCC-style feed ticker: O:AAPL250221C00230000
func OptionTicker(symbol, expiry string, strike float64, right Right) (string, error) {
	exp, err := ParseExpiry(expiry, time.UTC)
	if err != nil {
		return "", err
	}
	if strike <= 0 {
		return "", ValidationError{"strike", "must be > 0"}
	}
	return fmt.Sprintf("O:%s%s%s%08d",
		NormalizeSymbol(symbol),
		exp.Format("060102"),
		right,
		int64(math.Round(strike*1000)),
	), nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
