package externalmodel

import "github.com/shopspring/decimal"

// TradeUpdate is the execution event the exchange streams over the feed.
// It is transient: consumed to produce a Trade row and to mutate the
// matching Order and Position, never persisted as-is.
type TradeUpdate struct {
	ClientOrderID string          `json:"clientOrderId"`
	Quantity      int             `json:"quantity"` // signed, same convention as orders
	Price         decimal.Decimal `json:"price"`
}
