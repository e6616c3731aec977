package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"openbroker/src/broker"
	"openbroker/src/externalmodel"
)

// State is the feed connection state, observable for tests and health
// reporting.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// TradeHandler consumes decoded execution events. Implemented by
// broker.Service.
type TradeHandler interface {
	HandleTradeUpdate(ctx context.Context, update externalmodel.TradeUpdate) error
}

type subscribeMessage struct {
	Action   string `json:"action"`
	BrokerID string `json:"brokerId"`
}

// Client maintains the persistent streaming connection to the exchange.
// Run owns the whole lifecycle: each (re)connect creates a fresh
// connection handle, there is no shared session mutated in place. After
// any transport error or close the client waits the configured delay and
// dials again, until the context is cancelled.
type Client struct {
	url            string
	brokerID       string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	handler        TradeHandler

	mu    sync.RWMutex
	state State
}

// NewClient builds a feed client from configuration. Both the target URL
// and the broker identity are required: without them no connection or
// subscription is possible, so construction fails instead of retrying into
// a wall.
func NewClient(cfg Config, handler TradeHandler) (*Client, error) {
	if strings.TrimSpace(cfg.FeedURL) == "" {
		return nil, broker.NewError(broker.KindConfiguration, "no exchange feed URL configured")
	}
	if strings.TrimSpace(cfg.BrokerID) == "" {
		return nil, broker.NewError(broker.KindConfiguration, "broker_id not found in configuration")
	}

	delay := cfg.ReconnectDelaySeconds
	if delay <= 0 {
		delay = 5
	}

	return &Client{
		url:            cfg.FeedURL,
		brokerID:       cfg.BrokerID,
		reconnectDelay: time.Duration(delay) * time.Second,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		handler: handler,
		state:   StateDisconnected,
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run connects and consumes until ctx is cancelled. Every disconnect,
// transport error or failed dial is followed by a reconnect attempt after
// the configured delay; the wait itself is cancellable through ctx.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		c.setState(StateConnecting)
		logger.WithField("url", c.url).Info("Connecting to exchange feed")

		if err := c.connectAndConsume(ctx); err != nil {
			logger.WithError(err).Warn("Exchange feed connection ended")
		}
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// connectAndConsume dials, subscribes and reads messages until the
// connection dies. Returns the transport error that ended it.
func (c *Client) connectAndConsume(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return err
	}
	defer conn.Close()

	// Unblock the read loop when the context is cancelled.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	sub := subscribeMessage{Action: "subscribe", BrokerID: c.brokerID}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	c.setState(StateConnected)
	logger.WithField("broker_id", c.brokerID).Info("Subscribed to exchange feed")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(ctx, payload)
	}
}

// handleMessage decodes one feed frame and hands it to the trade handler.
// Decode failures are isolated per message: logged and discarded, the
// connection stays up.
func (c *Client) handleMessage(ctx context.Context, payload []byte) {
	var update externalmodel.TradeUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		logger.WithError(err).WithField("payload", string(payload)).
			Warn("Discarding undecodable feed message")
		return
	}
	if update.ClientOrderID == "" {
		logger.WithField("payload", string(payload)).
			Warn("Discarding feed message without clientOrderId")
		return
	}

	if err := c.handler.HandleTradeUpdate(ctx, update); err != nil {
		// Handler failures (including feed/state desync) are surfaced in
		// the log and persisted by the handler itself; they never tear
		// down the connection.
		logger.WithError(err).
			WithField("client_order_id", update.ClientOrderID).
			Error("Trade update handling failed")
	}
}
