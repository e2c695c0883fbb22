package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/models"
	"pair-trader/internal/resilience"
	"pair-trader/pkg/utils"
)

// ClientConfig holds connection configuration for the QMT bridge.
type ClientConfig struct {
	Address           string
	AccountID         string
	Timeout           time.Duration
	ReconnectAttempts int
}

// Client talks to the QMT bridge service over HTTP. It is an explicitly
// owned, explicitly lifetimed handle: construct it, Connect it, pass it to
// the components that need it, Close it on shutdown. Reconnection is a
// retried operation with typed errors, not ambient global state.
type Client struct {
	cfg     ClientConfig
	httpc   *http.Client
	breaker *resilience.Breaker
	logger  zerolog.Logger

	mu        sync.Mutex
	sessionID string
}

var _ Gateway = (*Client)(nil)
var _ QuoteSource = (*Client)(nil)

// NewClient creates a new, unconnected bridge client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cfg.Timeout = timeout
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: timeout},
		breaker: resilience.NewBreaker("gateway", resilience.DefaultBreakerConfig()),
		logger:  logger.With().Str("component", "gateway").Logger(),
	}
}

type sessionRequest struct {
	AccountID string `json:"account_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// Connect opens a trading session, retrying with exponential backoff up to
// the configured attempt count.
func (c *Client) Connect(ctx context.Context) error {
	retryCfg := utils.DefaultRetryConfig()
	if c.cfg.ReconnectAttempts > 0 {
		retryCfg.MaxAttempts = c.cfg.ReconnectAttempts
	}

	return utils.Retry(ctx, retryCfg, func() error {
		var resp sessionResponse
		err := c.roundTrip(ctx, http.MethodPost, "/session", sessionRequest{AccountID: c.cfg.AccountID}, &resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Session open failed")
			return err
		}
		c.mu.Lock()
		c.sessionID = resp.SessionID
		c.mu.Unlock()
		c.logger.Info().Str("account_id", c.cfg.AccountID).Msg("Gateway session established")
		return nil
	})
}

// Close ends the trading session. Safe to call on an unconnected client.
func (c *Client) Close() error {
	c.mu.Lock()
	session := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()
	if session == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	return c.roundTrip(ctx, http.MethodDelete, "/session", nil, nil)
}

type submitRequest struct {
	InstrumentID string  `json:"instrument_id"`
	Side         string  `json:"side"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	StrategyID   int     `json:"strategy_id"`
}

type submitResponse struct {
	OrderID string `json:"order_id"`
}

// SubmitOrder sends an order to the bridge for execution.
func (c *Client) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	req := submitRequest{
		InstrumentID: order.InstrumentID,
		Side:         string(order.Side),
		Quantity:     order.Quantity,
		Price:        order.Price,
		StrategyID:   order.StrategyID,
	}
	var resp submitResponse
	if err := c.call(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// CancelOrder requests cancellation of an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.call(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil)
}

type fillResponse struct {
	OrderID      string `json:"order_id"`
	InstrumentID string `json:"instrument_id"`
	Side         string `json:"side"`
	TradedQty    int    `json:"traded_qty"`
	OrderedQty   int    `json:"ordered_qty"`
}

// QueryOrder returns the current fill state of an order.
func (c *Client) QueryOrder(ctx context.Context, orderID string) (*Fill, error) {
	var resp fillResponse
	if err := c.call(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	return &Fill{
		OrderID:      resp.OrderID,
		InstrumentID: resp.InstrumentID,
		Side:         models.OrderSide(resp.Side),
		TradedQty:    resp.TradedQty,
		OrderedQty:   resp.OrderedQty,
	}, nil
}

type positionResponse struct {
	InstrumentID string  `json:"instrument_id"`
	Quantity     int     `json:"quantity"`
	TradableQty  int     `json:"tradable_qty"`
	LockedQty    int     `json:"locked_qty"`
	OpenPrice    float64 `json:"open_price"`
	AvgCost      float64 `json:"avg_cost"`
	LastPrice    float64 `json:"last_price"`
}

// QueryPositions returns positions for the given instruments, nil entries
// for instruments the bridge could not resolve.
func (c *Client) QueryPositions(ctx context.Context, instrumentIDs []string) ([]*models.Position, error) {
	positions := make([]*models.Position, len(instrumentIDs))
	for i, id := range instrumentIDs {
		var resp positionResponse
		err := c.call(ctx, http.MethodGet, "/positions/"+id, nil, &resp)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return positions, err
		}
		positions[i] = &models.Position{
			InstrumentID: resp.InstrumentID,
			Quantity:     resp.Quantity,
			TradableQty:  resp.TradableQty,
			LockedQty:    resp.LockedQty,
			OpenPrice:    resp.OpenPrice,
			AvgCost:      resp.AvgCost,
			LastPrice:    resp.LastPrice,
		}
	}
	return positions, nil
}

type accountResponse struct {
	TotalEquity float64 `json:"total_equity"`
}

// QueryTotalEquity returns the account's total valuation.
func (c *Client) QueryTotalEquity(ctx context.Context) (float64, error) {
	var resp accountResponse
	if err := c.call(ctx, http.MethodGet, "/account", nil, &resp); err != nil {
		return 0, err
	}
	return resp.TotalEquity, nil
}

type quoteResponse struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// LatestBidAsk returns the latest top-of-book quote for an instrument.
func (c *Client) LatestBidAsk(ctx context.Context, instrumentID string) (*Quote, error) {
	var resp quoteResponse
	if err := c.call(ctx, http.MethodGet, "/quotes/"+instrumentID, nil, &resp); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrQuoteUnavailable
		}
		return nil, err
	}
	return &Quote{InstrumentID: instrumentID, Bid: resp.Bid, Ask: resp.Ask}, nil
}

// call performs a session-scoped request behind the circuit breaker,
// reconnecting once if the bridge reports the session expired.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.Lock()
	connected := c.sessionID != ""
	c.mu.Unlock()
	if !connected {
		return apperrors.ErrNotConnected
	}

	err := c.breaker.Execute(ctx, func() error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	if apperrors.Is(err, apperrors.ErrNotConnected) {
		if rerr := c.Connect(ctx); rerr != nil {
			return rerr
		}
		err = c.breaker.Execute(ctx, func() error {
			return c.roundTrip(ctx, method, path, body, out)
		})
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Address+path, reader)
	if err != nil {
		return apperrors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}
	c.mu.Unlock()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperrors.NewGatewayError("transport", fmt.Sprintf("%s %s", method, path), apperrors.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrNotConnected
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewGatewayError(resp.Status, string(payload), apperrors.ErrGatewayUnavailable)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Wrap(err, "decoding response")
		}
	}
	return nil
}
