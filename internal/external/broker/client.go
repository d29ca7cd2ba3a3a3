package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/config"
	"github.com/sabq4org/so7ba.ai/pkg/httputil"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// ErrNotConnected is returned when a call is made without a session
var ErrNotConnected = errors.New("broker session not connected")

const sessionHeader = "X-Session-ID"

// Client handles the order execution gateway (HTTP session API)
// ⭐ SSOT: 주문 게이트웨이 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.BrokerConfig

	mu        sync.RWMutex
	sessionID string
}

// NewClient creates a new order gateway client
func NewClient(cfg config.BrokerConfig, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.New(timeout, log),
		logger:     log.WithComponent("broker"),
		cfg:        cfg,
	}
}

// Connect opens a session
func (c *Client) Connect(ctx context.Context) error {
	var resp sessionResponse
	if err := c.call(ctx, http.MethodPost, "/v1/session", sessionRequest{
		AccountID: c.cfg.AccountID,
		ClientID:  c.cfg.ClientID,
	}, &resp, false); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if resp.SessionID == "" {
		return errors.New("connect: empty session id")
	}

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.mu.Unlock()

	c.logger.WithField("client_id", c.cfg.ClientID).Info("Broker session connected")
	return nil
}

// Disconnect closes the session; safe to call when not connected
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	id := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := c.callWithSession(ctx, id, http.MethodDelete, "/v1/session/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// QualifyContract resolves the contract tuple to an instrument id.
// ConID 0 in the result means unresolvable.
func (c *Client) QualifyContract(ctx context.Context, oc contracts.OptionContract) (contracts.OptionContract, error) {
	exp, err := contracts.NormalizeExpiry(oc.Expiry, contracts.ExpiryCompact)
	if err != nil {
		return oc, err
	}
	var resp qualifyResponse
	if err := c.call(ctx, http.MethodPost, "/v1/contracts/qualify", qualifyRequest{
		Symbol:   oc.Symbol,
		Expiry:   exp,
		Strike:   oc.Strike,
		Right:    string(oc.Right),
		Exchange: "SMART",
		Currency: "USD",
	}, &resp, true); err != nil {
		return oc, fmt.Errorf("qualify %s: %w", oc, err)
	}
	oc.Expiry = exp
	oc.ConID = resp.ConID
	return oc, nil
}

// Quote returns delayed/live market data for a qualified contract
func (c *Client) Quote(ctx context.Context, oc contracts.OptionContract) (*contracts.BrokerQuote, error) {
	if oc.ConID == 0 {
		return nil, fmt.Errorf("quote %s: contract not qualified", oc)
	}
	var resp quoteResponse
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v1/marketdata/%d", oc.ConID), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("quote %s: %w", oc, err)
	}
	return &contracts.BrokerQuote{Bid: resp.Bid, Ask: resp.Ask, Last: resp.Last}, nil
}

// PlaceOrder submits the order and returns the broker order id
func (c *Client) PlaceOrder(ctx context.Context, o contracts.Order) (string, error) {
	if o.Contract.ConID == 0 {
		return "", fmt.Errorf("place order: contract %s not qualified", o.Contract)
	}
	var resp orderResponse
	if err := c.call(ctx, http.MethodPost, "/v1/orders", orderRequest{
		ClientOrderID: o.ClientID,
		ConID:         o.Contract.ConID,
		Side:          string(o.Side),
		OrderType:     string(o.Type),
		Quantity:      o.Quantity,
		LimitPrice:    o.LimitPrice,
	}, &resp, true); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": resp.OrderID,
		"contract": o.Contract.String(),
		"side":     o.Side,
		"quantity": o.Quantity,
		"type":     o.Type,
	}).Info("Order placed")
	return resp.OrderID, nil
}

// OrderStatus returns the current fill state
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*contracts.OrderState, error) {
	var resp orderResponse
	if err := c.call(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("order status: %w", err)
	}
	return &contracts.OrderState{
		OrderID:   orderID,
		Status:    parseOrderStatus(resp.Status),
		Filled:    resp.Filled,
		Remaining: resp.Remaining,
		AvgPrice:  resp.AvgFillPrice,
	}, nil
}

// CancelOrder cancels a working order
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.call(ctx, http.MethodDelete, "/v1/orders/"+url.PathEscape(orderID), nil, nil, true); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

// AccountSummary returns numeric account values by tag
func (c *Client) AccountSummary(ctx context.Context) (map[string]float64, error) {
	var rows []accountValue
	if err := c.call(ctx, http.MethodGet, "/v1/account/summary", nil, &rows, true); err != nil {
		return nil, fmt.Errorf("account summary: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Tag] = r.Value
	}
	return out, nil
}

// Positions returns option holdings
func (c *Client) Positions(ctx context.Context) ([]contracts.BrokerPosition, error) {
	var rows []positionRow
	if err := c.call(ctx, http.MethodGet, "/v1/positions", nil, &rows, true); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	out := make([]contracts.BrokerPosition, 0, len(rows))
	for _, r := range rows {
		right, err := contracts.ParseRight(r.Right)
		if err != nil {
			continue // stock or unknown right
		}
		out = append(out, contracts.BrokerPosition{
			Contract: contracts.OptionContract{
				Symbol: r.Symbol,
				Expiry: r.Expiry,
				Strike: r.Strike,
				Right:  right,
				ConID:  r.ConID,
			},
			Quantity: r.Position,
			AvgCost:  r.AvgCost,
		})
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, needSession bool) error {
	c.mu.RLock()
	id := c.sessionID
	c.mu.RUnlock()
	if needSession && id == "" {
		return ErrNotConnected
	}
	return c.callWithSession(ctx, id, method, path, body, out)
}

func (c *Client) callWithSession(ctx context.Context, sessionID, method, path string, body, out interface{}) error {
	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if !resp.OK() {
		var e errorResponse
		if json.Unmarshal(resp.Body, &e) == nil && e.Error != "" {
			return fmt.Errorf("gateway error status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("gateway error status %d", resp.StatusCode)
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
