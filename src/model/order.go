package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of states an order can be in. Transitions
// are validated through CanTransitionTo so an illegal move (e.g. filled
// back to pending) is an error instead of a silent overwrite.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// orderTransitions lists the allowed next states per status. Terminal
// states (filled, cancelled, rejected) have no successors.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
		OrderStatusCancelled,
		OrderStatusRejected,
	},
	OrderStatusPartiallyFilled: {
		OrderStatusPartiallyFilled, // further partial fills
		OrderStatusFilled,
		OrderStatusCancelled,
	},
	OrderStatusFilled:    {},
	OrderStatusCancelled: {},
	OrderStatusRejected:  {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order represents an order the broker accepted and forwarded to the
// exchange. Quantity is signed: positive for buy, negative for sell.
// FilledQuantity carries the same sign and never exceeds Quantity in
// magnitude.
type Order struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// ClientOrderID correlates exchange trade updates back to this order.
	// Assigned once at placement, immutable, globally unique.
	ClientOrderID string `gorm:"size:100;uniqueIndex;not null" json:"client_order_id"`

	UserID         uint            `gorm:"index" json:"user_id"`
	Symbol         string          `gorm:"size:30;index" json:"symbol"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	Status         OrderStatus     `gorm:"size:30;not null;default:pending" json:"status"`
	FilledQuantity int             `json:"filled_quantity"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// Transition moves the order to next after validating the move against
// the lifecycle table.
func (o *Order) Transition(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal order status transition %s -> %s (order %d)", o.Status, next, o.ID)
	}
	o.Status = next
	return nil
}
