package unusualwhales

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/gateway"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// ScreenerParams option-contract screener thresholds
type ScreenerParams struct {
	MinPremium       float64 `yaml:"min_premium"`
	MinVolume        int     `yaml:"min_volume"`
	MaxMultilegRatio float64 `yaml:"max_multileg_ratio"`
	MinSidePercent   float64 `yaml:"min_side_percent"` // ask side for calls, bid side for puts
	Limit            int     `yaml:"limit"`
}

// DefaultScreenerParams 기본 스크리너 조건
func DefaultScreenerParams() ScreenerParams {
	return ScreenerParams{
		MinPremium:       250000,
		MinVolume:        500,
		MaxMultilegRatio: 0.1,
		MinSidePercent:   0.7,
		Limit:            20,
	}
}

// FlowParams flow-alert filter
type FlowParams struct {
	Limit      int
	MinPremium float64
}

// DefaultFlowParams 기본 flow alert 조건
func DefaultFlowParams() FlowParams {
	return FlowParams{Limit: 10, MinPremium: 50000}
}

// Client handles the Unusual Whales options analytics feed
// ⭐ SSOT: UW 엔드포인트/응답 해석은 이 패키지에서만
type Client struct {
	gw     gateway.Querier
	logger *logger.Logger
}

// NewClient creates a new Unusual Whales client
func NewClient(gw gateway.Querier, log *logger.Logger) *Client {
	return &Client{
		gw:     gw,
		logger: log.WithComponent("unusualwhales"),
	}
}

// ScreenerContracts runs the option-contract screener for one direction
func (c *Client) ScreenerContracts(ctx context.Context, dir contracts.Direction, p ScreenerParams) ([]ScreenerContract, error) {
	params := url.Values{}
	params.Set("is_otm", "True")
	params.Set("vol_greater_oi", "True")
	params.Set("min_premium", formatFloat(p.MinPremium))
	params.Set("min_volume", strconv.Itoa(p.MinVolume))
	params.Set("max_multileg_volume_ratio", formatFloat(p.MaxMultilegRatio))
	params.Set("limit", strconv.Itoa(p.Limit))
	if dir == contracts.DirectionPut {
		params.Set("type", "Puts")
		params.Set("min_bid_perc", formatFloat(p.MinSidePercent))
	} else {
		params.Set("type", "Calls")
		params.Set("min_ask_perc", formatFloat(p.MinSidePercent))
	}

	var rows []ScreenerContract
	if err := c.list(ctx, "/api/screener/option-contracts", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FlowAlerts returns recent large OTM trades for ticker
func (c *Client) FlowAlerts(ctx context.Context, ticker string, p FlowParams) ([]FlowAlert, error) {
	params := url.Values{}
	params.Set("ticker", contracts.NormalizeSymbol(ticker))
	params.Set("limit", strconv.Itoa(p.Limit))
	params.Set("min_premium", formatFloat(p.MinPremium))
	params.Set("size_greater_oi", "True")
	params.Set("is_otm", "True")

	var rows []FlowAlert
	if err := c.list(ctx, "/api/option-trades/flow-alerts", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SpotExposures returns strike-level gamma/delta exposure for ticker
func (c *Client) SpotExposures(ctx context.Context, ticker string) ([]StrikeExposure, error) {
	var rows []StrikeExposure
	endpoint := fmt.Sprintf("/api/stock/%s/spot-exposures/strike", contracts.NormalizeSymbol(ticker))
	if err := c.list(ctx, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// IVRank returns the latest 1-year IV rank as a percentage (0-100)
func (c *Client) IVRank(ctx context.Context, ticker string) (float64, error) {
	endpoint := fmt.Sprintf("/api/stock/%s/iv-rank", contracts.NormalizeSymbol(ticker))
	var points []IVRankPoint
	if err := c.list(ctx, endpoint, nil, &points); err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("%w: no iv rank for %s", gateway.ErrDataUnavailable, ticker)
	}

	last := points[len(points)-1]
	rank := last.IVRank1Y
	if rank == nil {
		rank = last.IVRank
	}
	if rank == nil {
		return 0, fmt.Errorf("%w: iv rank missing for %s", gateway.ErrDataUnavailable, ticker)
	}

	v := rank.Float()
	if v <= 1 {
		v *= 100 // fraction
	}
	return v, nil
}

// MarketTide returns the latest market-wide net premium reading
func (c *Client) MarketTide(ctx context.Context) (*MarketTide, error) {
	var rows []MarketTide
	if err := c.list(ctx, "/api/market/market-tide", nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty market tide", gateway.ErrDataUnavailable)
	}
	return &rows[len(rows)-1], nil
}

// DarkPoolRecent returns recent dark pool prints
func (c *Client) DarkPoolRecent(ctx context.Context) ([]DarkPoolTrade, error) {
	var rows []DarkPoolTrade
	if err := c.list(ctx, "/api/darkpool/recent", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CongressTrades returns recent congressional trade disclosures
func (c *Client) CongressTrades(ctx context.Context) ([]CongressTrade, error) {
	var rows []CongressTrade
	if err := c.list(ctx, "/api/congress/recent-trades", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// list decodes {"data": [...]}, {"results": [...]}, a bare array, or a single object
func (c *Client) list(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	raw, err := c.gw.Query(ctx, gateway.UnusualWhales, endpoint, params)
	if err != nil {
		return err
	}

	payload := []byte(raw)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &env); err == nil {
			switch {
			case len(env.Data) > 0 && string(env.Data) != "null":
				payload = env.Data
			case len(env.Results) > 0 && string(env.Results) != "null":
				payload = env.Results
			}
		}
	}

	// single object → one-element list
	if len(payload) > 0 && payload[0] == '{' {
		payload = append(append([]byte{'['}, payload...), ']')
	}

	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.WithFields(map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		}).Warn("Unexpected response shape")
		return fmt.Errorf("%w: decode %s: %v", gateway.ErrDataUnavailable, endpoint, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
