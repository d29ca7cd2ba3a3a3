package broker

import (
	"strings"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

type sessionRequest struct {
	AccountID string `json:"account_id"`
	ClientID  int    `json:"client_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type qualifyRequest struct {
	Symbol   string  `json:"symbol"`
	Expiry   string  `json:"expiry"`
	Strike   float64 `json:"strike"`
	Right    string  `json:"right"`
	Exchange string  `json:"exchange"`
	Currency string  `json:"currency"`
}

type qualifyResponse struct {
	ConID int64 `json:"con_id"`
}

type quoteResponse struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

type orderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	ConID         int64   `json:"con_id"`
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Quantity      int     `json:"quantity"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
}

type orderResponse struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	Filled       int     `json:"filled"`
	Remaining    int     `json:"remaining"`
	AvgFillPrice float64 `json:"avg_fill_price"`
}

type accountValue struct {
	Tag      string  `json:"tag"`
	Value    float64 `json:"value,string"`
	Currency string  `json:"currency"`
}

type positionRow struct {
	Symbol   string  `json:"symbol"`
	Expiry   string  `json:"expiry"`
	Strike   float64 `json:"strike"`
	Right    string  `json:"right"`
	ConID    int64   `json:"con_id"`
	Position int     `json:"position"`
	AvgCost  float64 `json:"avg_cost"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseOrderStatus maps gateway status strings to contracts.Status
func parseOrderStatus(s string) contracts.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filled":
		return contracts.StatusFilled
	case "submitted", "presubmitted", "partiallyfilled", "partially_filled":
		return contracts.StatusSubmitted
	case "cancelled", "canceled", "apicancelled", "pendingcancel":
		return contracts.StatusCanceled
	case "inactive", "rejected":
		return contracts.StatusRejected
	default:
		return contracts.StatusPending
	}
}
