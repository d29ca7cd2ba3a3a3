package contracts

// =============================================================================
// Broker-side views (주문 게이트웨이 응답)
// =============================================================================

// Account summary tags
const (
	TagNetLiquidation = "NetLiquidation"
	TagTotalCashValue = "TotalCashValue"
	TagUnrealizedPnL  = "UnrealizedPnL"
	TagBuyingPower    = "BuyingPower"
)

// AccountTags tags reported by the portfolio view
var AccountTags = []string{TagNetLiquidation, TagTotalCashValue, TagUnrealizedPnL, TagBuyingPower}

// BrokerQuote broker market data for one contract
type BrokerQuote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

// Mid returns the bid/ask midpoint, or 0 when one side is missing
func (q BrokerQuote) Mid() float64 {
	return MidPrice(q.Bid, q.Ask)
}

// EstimatedPrice is mid when both sides quote, else last
func (q BrokerQuote) EstimatedPrice() float64 {
	if mid := q.Mid(); mid > 0 {
		return mid
	}
	if q.Last > 0 {
		return q.Last
	}
	return 0
}

// BrokerPosition a holding reported by the broker.
// AvgCost is per contract (price × multiplier).
type BrokerPosition struct {
	Contract OptionContract `json:"contract"`
	Quantity int            `json:"quantity"`
	AvgCost  float64        `json:"avg_cost"`
}
