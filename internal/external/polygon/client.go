package polygon

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/gateway"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Client handles the Polygon quote/trade/snapshot feed
// ⭐ SSOT: Polygon 엔드포인트/응답 해석은 이 패키지에서만
type Client struct {
	gw     gateway.Querier
	logger *logger.Logger
}

// NewClient creates a new Polygon client
func NewClient(gw gateway.Querier, log *logger.Logger) *Client {
	return &Client{
		gw:     gw,
		logger: log.WithComponent("polygon"),
	}
}

// News returns the most recent articles for ticker (newest first)
func (c *Client) News(ctx context.Context, ticker string, limit int) ([]NewsArticle, error) {
	params := url.Values{}
	params.Set("ticker", contracts.NormalizeSymbol(ticker))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")
	params.Set("sort", "published_utc")

	var resp listResponse[NewsArticle]
	if err := c.gw.QueryInto(ctx, gateway.Polygon, "/v2/reference/news", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// OptionChain queries /v3/snapshot/options/{underlying}, ordered by ascending strike
func (c *Client) OptionChain(ctx context.Context, underlying string, f ChainFilter) ([]contracts.ContractQuote, error) {
	symbol := contracts.NormalizeSymbol(underlying)
	params := url.Values{}
	if f.Right != "" {
		params.Set("contract_type", f.Right.ContractType())
	}
	if f.Strike > 0 {
		params.Set("strike_price", formatFloat(f.Strike))
	} else {
		if f.StrikeMin > 0 {
			params.Set("strike_price.gte", formatFloat(round2(f.StrikeMin)))
		}
		if f.StrikeMax > 0 {
			params.Set("strike_price.lte", formatFloat(round2(f.StrikeMax)))
		}
	}
	if f.Expiration != "" {
		params.Set("expiration_date", f.Expiration)
	} else {
		if f.ExpirationMin != "" {
			params.Set("expiration_date.gte", f.ExpirationMin)
		}
		if f.ExpirationMax != "" {
			params.Set("expiration_date.lte", f.ExpirationMax)
		}
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	params.Set("order", "asc")
	params.Set("sort", "strike_price")

	var resp listResponse[optionSnapshot]
	if err := c.gw.QueryInto(ctx, gateway.Polygon, "/v3/snapshot/options/"+symbol, params, &resp); err != nil {
		return nil, err
	}

	quotes := make([]contracts.ContractQuote, 0, len(resp.Results))
	for _, s := range resp.Results {
		quotes = append(quotes, s.toQuote(symbol))
	}
	return quotes, nil
}

// OptionSnapshot returns the snapshot of one contract
func (c *Client) OptionSnapshot(ctx context.Context, oc contracts.OptionContract) (*contracts.ContractQuote, error) {
	exp, err := contracts.NormalizeExpiry(oc.Expiry, contracts.ExpiryISO)
	if err != nil {
		return nil, err
	}
	chain, err := c.OptionChain(ctx, oc.Symbol, ChainFilter{
		Right:      oc.Right,
		Strike:     oc.Strike,
		Expiration: exp,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no snapshot for %s", gateway.ErrDataUnavailable, oc)
	}
	return &chain[0], nil
}

// LastTrade returns the latest trade of an option or stock ticker
func (c *Client) LastTrade(ctx context.Context, ticker string) (*Trade, error) {
	params := url.Values{}
	params.Set("limit", "1")
	params.Set("order", "desc")
	params.Set("sort", "timestamp")

	var resp listResponse[Trade]
	if err := c.gw.QueryInto(ctx, gateway.Polygon, "/v3/trades/"+ticker, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: no trades for %s", gateway.ErrDataUnavailable, ticker)
	}
	return &resp.Results[0], nil
}

// PrevClose returns the previous session close of a stock/ETF
func (c *Client) PrevClose(ctx context.Context, symbol string) (float64, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	var resp listResponse[aggBar]
	if err := c.gw.QueryInto(ctx, gateway.Polygon, "/v2/aggs/ticker/"+symbol+"/prev", url.Values{"adjusted": {"true"}}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 || resp.Results[0].Close <= 0 {
		return 0, fmt.Errorf("%w: no previous close for %s", gateway.ErrDataUnavailable, symbol)
	}
	return resp.Results[0].Close, nil
}

// IndexValue returns the live value of an index ticker such as I:SPX
func (c *Client) IndexValue(ctx context.Context, index string) (float64, error) {
	var resp listResponse[indexSnapshot]
	if err := c.gw.QueryInto(ctx, gateway.Polygon, "/v3/snapshot/indices", url.Values{"ticker.any_of": {index}}, &resp); err != nil {
		return 0, err
	}
	for _, r := range resp.Results {
		if strings.EqualFold(r.Ticker, index) && r.Error == "" && r.Value > 0 {
			return r.Value, nil
		}
	}
	return 0, fmt.Errorf("%w: no index value for %s", gateway.ErrDataUnavailable, index)
}

func (s optionSnapshot) toQuote(symbol string) contracts.ContractQuote {
	right := contracts.RightCall
	if strings.EqualFold(s.Details.ContractType, "put") {
		right = contracts.RightPut
	}
	oi := s.OpenInterest
	if oi == 0 {
		oi = s.Day.OpenInterest
	}
	bid, ask := s.LastQuote.Bid, s.LastQuote.Ask
	return contracts.ContractQuote{
		Ticker:     s.Details.Ticker,
		Symbol:     symbol,
		Expiration: s.Details.ExpirationDate,
		Strike:     s.Details.StrikePrice,
		Right:      right,
		Bid:        round2(bid),
		Ask:        round2(ask),
		Mid:        round2(contracts.MidPrice(bid, ask)),
		Greeks: contracts.Greeks{
			Delta: round4(s.Greeks.Delta),
			Gamma: round4(s.Greeks.Gamma),
			Theta: round4(s.Greeks.Theta),
			Vega:  round4(s.Greeks.Vega),
		},
		ImpliedVolatility: round4(s.ImpliedVolatility),
		OpenInterest:      int64(oi),
		Volume:            int64(s.Day.Volume),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
