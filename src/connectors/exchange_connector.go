// REST CLIENT FOR THE OPENEXCHANGE ORDER API
// RESTY ONLY + INTERNAL RETRY (CANCELLATION PATH)
package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"openbroker/src/broker"
	"openbroker/src/model"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultRequestTimeout = 15 * time.Second

	// Retry applies to cancellation only: a cancel addressed by order ID
	// is idempotent on the exchange side. Placement is never retried, a
	// repeated POST could submit the order twice.
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// ExchangeConnector wraps the exchange's request/response order API.
// Every outbound call carries the broker identity as a cookie.
type ExchangeConnector struct {
	brokerID string
	baseURL  string

	// separate clients so cancels retry and placements never do
	http       *resty.Client
	cancelHTTP *resty.Client
}

// NewExchangeConnector builds the connector from configuration. A missing
// broker ID is a configuration error: the exchange would silently drop
// anonymous requests, so we refuse to start instead.
func NewExchangeConnector(cfg Config) (*ExchangeConnector, error) {
	if strings.TrimSpace(cfg.BrokerID) == "" {
		return nil, broker.NewError(broker.KindConfiguration, "broker_id not found in configuration")
	}

	baseURL := strings.TrimRight(cfg.ExchangeBaseURL, "/")
	cookie := fmt.Sprintf("brokerId=%s", cfg.BrokerID)

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Cookie", cookie)

	cancelClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Cookie", cookie).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &ExchangeConnector{
		brokerID:   cfg.BrokerID,
		baseURL:    baseURL,
		http:       httpClient,
		cancelHTTP: cancelClient,
	}, nil
}

// BrokerID exposes the configured broker identity (the feed client
// subscribes with the same credential).
func (c *ExchangeConnector) BrokerID() string {
	return c.brokerID
}

// PlaceOrder submits the order payload to the exchange. Any 2xx response
// is success; the body is not otherwise interpreted.
func (c *ExchangeConnector) PlaceOrder(ctx context.Context, order *model.Order) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(order).
		Post("/orders")
	if err != nil {
		return fmt.Errorf("exchange order submission failed: %w", err)
	}

	if !resp.IsSuccess() {
		logger.WithFields(map[string]interface{}{
			"status":          resp.StatusCode(),
			"client_order_id": order.ClientOrderID,
		}).Warn("Exchange rejected order submission")
		return fmt.Errorf("exchange returned HTTP %d for order submission", resp.StatusCode())
	}

	return nil
}

// CancelOrder sends a cancellation addressed by order ID. Retries on
// transient failures; any 2xx response is success.
func (c *ExchangeConnector) CancelOrder(ctx context.Context, orderID uint) error {
	resp, err := c.cancelHTTP.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/orders/%d/cancel", orderID))
	if err != nil {
		return fmt.Errorf("exchange cancel request failed: %w", err)
	}

	if !resp.IsSuccess() {
		logger.WithFields(map[string]interface{}{
			"status":   resp.StatusCode(),
			"order_id": orderID,
		}).Warn("Exchange rejected cancel request")
		return fmt.Errorf("exchange returned HTTP %d for cancel request", resp.StatusCode())
	}

	return nil
}
