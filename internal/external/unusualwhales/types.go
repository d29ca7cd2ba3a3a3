package unusualwhales

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Num decodes numbers that the feed sends either as JSON numbers or strings
type Num float64

// UnmarshalJSON accepts 12.5, "12.5", "" and null
func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Num(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Num(v)
	return nil
}

// Float returns the value as float64
func (n Num) Float() float64 { return float64(n) }

// ScreenerContract /api/screener/option-contracts row
type ScreenerContract struct {
	UnderlyingSymbol string `json:"underlying_symbol"`
	TickerSymbol     string `json:"ticker_symbol"`
	Ticker           string `json:"ticker"`
	UnderlyingPrice  Num    `json:"underlying_price"`
	StockPrice       Num    `json:"stock_price"`
	Volume           Num    `json:"volume"`
	Premium          Num    `json:"premium"`
	OpenInterest     Num    `json:"open_interest"`
	OptionSymbol     string `json:"option_symbol"`
}

// Symbol returns the underlying ticker, stripping option suffixes like "AAPL 250221C230"
func (s ScreenerContract) Symbol() string {
	for _, v := range []string{s.UnderlyingSymbol, s.TickerSymbol, s.Ticker} {
		v = strings.ReplaceAll(strings.TrimSpace(v), "_", " ")
		if f := strings.Fields(v); len(f) > 0 {
			return strings.ToUpper(f[0])
		}
	}
	return ""
}

// Price returns the underlying reference price
func (s ScreenerContract) Price() float64 {
	if s.UnderlyingPrice > 0 {
		return s.UnderlyingPrice.Float()
	}
	return s.StockPrice.Float()
}

// FlowAlert /api/option-trades/flow-alerts row
type FlowAlert struct {
	Ticker           string `json:"ticker"`
	Type             string `json:"type"`
	PutCall          string `json:"put_call"`
	TotalPremium     Num    `json:"total_premium"`
	TotalAskSidePrem Num    `json:"total_ask_side_prem"`
	TotalBidSidePrem Num    `json:"total_bid_side_prem"`
	HasSweep         bool   `json:"has_sweep"`
	AlertRule        string `json:"alert_rule"`
	Strike           Num    `json:"strike"`
	Expiry           string `json:"expiry"`
}

// IsCall reports a call-side alert
func (a FlowAlert) IsCall() bool {
	t := a.optionType()
	return strings.Contains(t, "CALL") || t == "C"
}

// IsPut reports a put-side alert
func (a FlowAlert) IsPut() bool {
	t := a.optionType()
	return strings.Contains(t, "PUT") || t == "P"
}

// IsSweep reports a sweep execution
func (a FlowAlert) IsSweep() bool {
	return a.HasSweep || strings.Contains(strings.ToLower(a.AlertRule), "sweep")
}

func (a FlowAlert) optionType() string {
	t := a.Type
	if t == "" {
		t = a.PutCall
	}
	return strings.ToUpper(strings.TrimSpace(t))
}

// StrikeExposure /api/stock/{t}/spot-exposures/strike row
type StrikeExposure struct {
	Strike    Num `json:"strike"`
	CallGamma Num `json:"call_gamma"`
	PutGamma  Num `json:"put_gamma"`
	CallGEX   Num `json:"call_gex"`
	PutGEX    Num `json:"put_gex"`
	CallDelta Num `json:"call_delta"`
	PutDelta  Num `json:"put_delta"`
	CallDEX   Num `json:"call_dex"`
	PutDEX    Num `json:"put_dex"`
}

// Gamma returns call and put gamma, falling back to the *_gex keys
func (e StrikeExposure) Gamma() (call, put float64) {
	call, put = e.CallGamma.Float(), e.PutGamma.Float()
	if call == 0 {
		call = e.CallGEX.Float()
	}
	if put == 0 {
		put = e.PutGEX.Float()
	}
	return call, put
}

// Delta returns call and put delta, falling back to the *_dex keys
func (e StrikeExposure) Delta() (call, put float64) {
	call, put = e.CallDelta.Float(), e.PutDelta.Float()
	if call == 0 {
		call = e.CallDEX.Float()
	}
	if put == 0 {
		put = e.PutDEX.Float()
	}
	return call, put
}

// IVRankPoint /api/stock/{t}/iv-rank row
type IVRankPoint struct {
	Date     string `json:"date"`
	IVRank1Y *Num   `json:"iv_rank_1y"`
	IVRank   *Num   `json:"iv_rank"`
}

// MarketTide /api/market/market-tide row
type MarketTide struct {
	Date           string `json:"date"`
	Timestamp      string `json:"timestamp"`
	NetCallPremium Num    `json:"net_call_premium"`
	NetPutPremium  Num    `json:"net_put_premium"`
	NetVolume      Num    `json:"net_volume"`
}

// DarkPoolTrade /api/darkpool/recent row
type DarkPoolTrade struct {
	Ticker       string `json:"ticker"`
	Price        Num    `json:"price"`
	Size         Num    `json:"size"`
	Volume       Num    `json:"volume"`
	Premium      Num    `json:"premium"`
	ExecutedAt   string `json:"executed_at"`
	MarketCenter string `json:"market_center"`
}

// Notional premium, falling back to volume then size
func (d DarkPoolTrade) Notional() float64 {
	switch {
	case d.Premium != 0:
		return d.Premium.Float()
	case d.Volume != 0:
		return d.Volume.Float()
	}
	return d.Size.Float()
}

// CongressTrade /api/congress/recent-trades row
type CongressTrade struct {
	Name            string `json:"name"`
	Reporter        string `json:"reporter"`
	Ticker          string `json:"ticker"`
	TxnType         string `json:"txn_type"`
	Amounts         string `json:"amounts"`
	TransactionDate string `json:"transaction_date"`
	FiledAtDate     string `json:"filed_at_date"`
}

// envelope unwraps {"data": ...} or {"results": ...}
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Results json.RawMessage `json:"results"`
}
