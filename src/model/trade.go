package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one confirmed execution against a local order. Trades are an
// append-only log: rows are never updated or deleted. The store-assigned
// ID orders trades by insertion.
type Trade struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index" json:"order_id"`
	Symbol    string          `gorm:"size:30" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	Quantity  int             `json:"quantity"`
	TradeTime time.Time       `json:"trade_time"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}
