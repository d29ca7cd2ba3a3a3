package polygon

import (
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// NewsArticle /v2/reference/news result
type NewsArticle struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PublishedUTC time.Time `json:"published_utc"`
	ArticleURL   string    `json:"article_url"`
}

// Trade /v3/trades result
type Trade struct {
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	SIPTimestamp int64   `json:"sip_timestamp"`
}

// ChainFilter server-side filter for the options snapshot.
// Exact Strike/Expiration take precedence over the ranges.
type ChainFilter struct {
	Right         contracts.Right
	Strike        float64
	StrikeMin     float64
	StrikeMax     float64
	Expiration    string // YYYY-MM-DD
	ExpirationMin string
	ExpirationMax string
	Limit         int
}

type listResponse[T any] struct {
	Status  string `json:"status"`
	Results []T    `json:"results"`
}

type optionSnapshot struct {
	Details struct {
		Ticker         string  `json:"ticker"`
		StrikePrice    float64 `json:"strike_price"`
		ExpirationDate string  `json:"expiration_date"`
		ContractType   string  `json:"contract_type"`
	} `json:"details"`
	Greeks struct {
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
	} `json:"greeks"`
	Day struct {
		Volume       float64 `json:"volume"`
		OpenInterest float64 `json:"open_interest"`
		Close        float64 `json:"close"`
	} `json:"day"`
	LastQuote struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	} `json:"last_quote"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	OpenInterest      float64 `json:"open_interest"`
	UnderlyingAsset   struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
	} `json:"underlying_asset"`
}

type aggBar struct {
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type indexSnapshot struct {
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
	Error  string  `json:"error"`
}
