package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"openbroker/src/externalmodel"
	"openbroker/src/model"
	"openbroker/src/repository"
)

// ExchangeGateway sends order placement and cancellation requests to the
// exchange. Implemented by connectors.ExchangeConnector; tests use spies.
type ExchangeGateway interface {
	PlaceOrder(ctx context.Context, order *model.Order) error
	CancelOrder(ctx context.Context, orderID uint) error
}

// Service is the order lifecycle engine plus position reconciler. It owns
// no durable state itself: every operation fetches a snapshot from the
// repositories and writes back through them, multi-row updates inside one
// transaction.
type Service struct {
	db         *gorm.DB
	gateway    ExchangeGateway
	orders     *repository.OrderRepository
	positions  *repository.PositionRepository
	trades     *repository.TradeRepository
	exceptions *repository.ExceptionRepository

	// locks serializes read-check-write per (user, symbol) pair across
	// concurrent PlaceOrder / CancelOrder / HandleTradeUpdate calls.
	locks *keyedLock
}

// NewService wires a Service on top of the given DB handle and gateway.
func NewService(db *gorm.DB, gateway ExchangeGateway) *Service {
	return &Service{
		db:         db,
		gateway:    gateway,
		orders:     repository.NewOrderRepository().WithDB(db),
		positions:  repository.NewPositionRepository().WithDB(db),
		trades:     repository.NewTradeRepository().WithDB(db),
		exceptions: repository.NewExceptionRepository().WithDB(db),
		locks:      newKeyedLock(),
	}
}

// generateClientOrderID builds a globally unique correlation ID from the
// user identity, a random component and the submission timestamp, so two
// concurrent submissions from the same user can never collide.
func generateClientOrderID(userID uint) string {
	return fmt.Sprintf("USER%d-%s-%d", userID, uuid.NewString(), time.Now().UnixMilli())
}

// willFlipPosition reports whether the order's sign opposes the sign of an
// existing nonzero position. Note this also covers reducing trades (a sell
// against a long): that matches the as-written brokerage rule, which gates
// any opposite-direction order rather than only ones crossing through zero.
func willFlipPosition(orderQty int, position *model.Position) bool {
	if position == nil || position.Quantity == 0 {
		return false
	}
	return (orderQty > 0 && position.Quantity < 0) ||
		(orderQty < 0 && position.Quantity > 0)
}

// PlaceOrder validates the order against the user's current position,
// persists it as pending and submits it to the exchange. Returns the
// store-assigned order ID on success.
//
// A flip rejection happens before any side effect: nothing is persisted
// and the exchange is never called. If the exchange submission fails after
// the order was persisted, the order is marked rejected so no pending row
// lingers for an order the exchange never saw.
func (s *Service) PlaceOrder(ctx context.Context, order *model.Order) (uint, error) {
	if order.Quantity == 0 {
		return 0, NewError(KindValidation, "order quantity must be nonzero")
	}
	if order.Symbol == "" {
		return 0, NewError(KindValidation, "order symbol must be set")
	}

	order.ClientOrderID = generateClientOrderID(order.UserID)
	order.Status = model.OrderStatusPending
	order.FilledQuantity = 0

	unlock := s.locks.Lock(order.UserID, order.Symbol)
	defer unlock()

	position, err := s.positions.FindByUserAndSymbol(ctx, order.UserID, order.Symbol)
	if err != nil {
		return 0, WrapError(KindInternal, err, "failed to load position for %d/%s", order.UserID, order.Symbol)
	}

	if willFlipPosition(order.Quantity, position) {
		logger.WithFields(map[string]interface{}{
			"user_id":      order.UserID,
			"symbol":       order.Symbol,
			"order_qty":    order.Quantity,
			"position_qty": position.Quantity,
		}).Warn("Order rejected: position flip")
		return 0, NewError(KindValidation, "order rejected: attempt to flip the position (buy/sell mismatch)")
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return 0, WrapError(KindInternal, err, "failed to persist order")
	}

	if err := s.gateway.PlaceOrder(ctx, order); err != nil {
		// The exchange never accepted the order; close the local
		// bookkeeping gap by rejecting it instead of leaving it pending.
		if terr := order.Transition(model.OrderStatusRejected); terr == nil {
			if uerr := s.orders.UpdateFill(ctx, order); uerr != nil {
				logger.WithError(uerr).WithField("order_id", order.ID).
					Error("Failed to mark order rejected after submission failure")
			}
		}
		return order.ID, WrapError(KindUpstream, err, "order %d failed to place with the exchange", order.ID)
	}

	logger.WithFields(map[string]interface{}{
		"order_id":        order.ID,
		"client_order_id": order.ClientOrderID,
		"user_id":         order.UserID,
		"symbol":          order.Symbol,
		"qty":             order.Quantity,
	}).Info("Order placed with the exchange")

	return order.ID, nil
}

// CancelOrder cancels a non-terminal order, exchange first. Local state
// only moves to cancelled after the exchange acknowledged; on exchange
// failure the order is left untouched.
func (s *Service) CancelOrder(ctx context.Context, orderID uint) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return WrapError(KindInternal, err, "failed to load order %d", orderID)
	}
	if order == nil {
		return NewError(KindNotFound, "order %d does not exist", orderID)
	}

	unlock := s.locks.Lock(order.UserID, order.Symbol)
	defer unlock()

	// Re-read under the pair lock: a fill may have landed in between.
	order, err = s.orders.FindByID(ctx, orderID)
	if err != nil || order == nil {
		return WrapError(KindInternal, err, "failed to reload order %d", orderID)
	}

	if order.Status == model.OrderStatusFilled {
		return NewError(KindAlreadyTerminal, "order %d has already been executed and cannot be cancelled", orderID)
	}
	if order.Status.IsTerminal() {
		return NewError(KindAlreadyTerminal, "order %d is already %s", orderID, order.Status)
	}

	if err := s.gateway.CancelOrder(ctx, orderID); err != nil {
		return WrapError(KindUpstream, err, "failed to send cancel request for order %d to the exchange", orderID)
	}

	if err := order.Transition(model.OrderStatusCancelled); err != nil {
		return WrapError(KindInternal, err, "cancel transition rejected")
	}
	if err := s.orders.UpdateFill(ctx, order); err != nil {
		return WrapError(KindInternal, err, "failed to persist cancellation of order %d", orderID)
	}

	logger.WithField("order_id", orderID).Info("Order cancelled on broker and exchange")
	return nil
}

// HandleTradeUpdate applies one execution event from the feed: updates the
// order's fill state, reconciles the position and appends a trade row, all
// inside one transaction under the pair lock.
//
// An update for an unknown clientOrderId means the feed and local state
// have diverged; it is persisted as an exception and returned as an error,
// never silently dropped.
func (s *Service) HandleTradeUpdate(ctx context.Context, update externalmodel.TradeUpdate) error {
	order, err := s.orders.FindByClientOrderID(ctx, update.ClientOrderID)
	if err != nil {
		return WrapError(KindInternal, err, "failed to look up order for client order ID %s", update.ClientOrderID)
	}
	if order == nil {
		notFound := NewError(KindNotFound, "order not found for clientOrderId: %s", update.ClientOrderID)
		s.exceptions.Capture(ctx, "broker", "HandleTradeUpdate", "error", notFound, map[string]interface{}{
			"client_order_id": update.ClientOrderID,
			"qty":             update.Quantity,
		})
		return notFound
	}

	unlock := s.locks.Lock(order.UserID, order.Symbol)
	defer unlock()

	// Re-read under the pair lock so the fill accounting sees the latest
	// filled quantity.
	order, err = s.orders.FindByClientOrderID(ctx, update.ClientOrderID)
	if err != nil || order == nil {
		return WrapError(KindInternal, err, "failed to reload order for client order ID %s", update.ClientOrderID)
	}

	newFilled := order.FilledQuantity + update.Quantity

	// Sign-aware boundary: quantity and fills share sign, so the order is
	// complete once |filled| reaches |quantity|. A plain less-than check
	// would misclassify sell orders (negative quantities).
	newStatus := model.OrderStatusPartiallyFilled
	if abs(newFilled) >= abs(order.Quantity) {
		newStatus = model.OrderStatusFilled
	}

	if err := order.Transition(newStatus); err != nil {
		s.exceptions.Capture(ctx, "broker", "HandleTradeUpdate", "error", err, map[string]interface{}{
			"client_order_id": update.ClientOrderID,
			"order_id":        order.ID,
		})
		return WrapError(KindValidation, err, "trade update rejected")
	}
	order.FilledQuantity = newFilled

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithDB(tx).UpdateFill(ctx, order); err != nil {
			return err
		}
		if err := s.applyFill(ctx, tx, order.UserID, order.Symbol, update.Quantity, update.Price); err != nil {
			return err
		}
		trade := &model.Trade{
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Price:     update.Price,
			Quantity:  update.Quantity,
			TradeTime: time.Now().UTC(),
		}
		return s.trades.WithDB(tx).Create(ctx, trade)
	})
	if err != nil {
		return WrapError(KindInternal, err, "failed to apply trade update for order %d", order.ID)
	}

	logger.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"filled_qty": order.FilledQuantity,
		"status":     order.Status,
		"trade_qty":  update.Quantity,
		"price":      update.Price,
	}).Info("Processed trade update")

	return nil
}

// applyFill is the position reconciler: it nets the fill quantity into the
// (user, symbol) position and maintains a weighted-average entry price.
// Fills that grow the position fold the traded price into the average;
// fills that reduce it realize P&L at the standing average, which stays
// unchanged. Runs inside the caller's transaction.
func (s *Service) applyFill(ctx context.Context, tx *gorm.DB, userID uint, symbol string, deltaQty int, price decimal.Decimal) error {
	positions := s.positions.WithDB(tx)

	position, err := positions.FindByUserAndSymbol(ctx, userID, symbol)
	if err != nil {
		return err
	}

	if position == nil {
		return positions.Create(ctx, &model.Position{
			UserID:   userID,
			Symbol:   symbol,
			Quantity: deltaQty,
			AvgPrice: price,
		})
	}

	oldQty := position.Quantity
	newQty := oldQty + deltaQty

	switch {
	case oldQty == 0:
		// Re-opening a flat position starts a fresh cost basis.
		position.AvgPrice = price
	case abs(newQty) > abs(oldQty):
		// Position grows: weight the traded price into the average.
		oldLeg := decimal.NewFromInt(int64(abs(oldQty))).Mul(position.AvgPrice)
		newLeg := decimal.NewFromInt(int64(abs(deltaQty))).Mul(price)
		position.AvgPrice = oldLeg.Add(newLeg).
			DivRound(decimal.NewFromInt(int64(abs(newQty))), 8)
	default:
		// Position shrinks: cost basis of the remainder is unchanged.
	}

	position.Quantity = newQty
	return positions.Update(ctx, position)
}

// ListOrders returns all persisted orders of one user, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	return s.orders.FindByUserID(ctx, userID)
}

// ListPositions returns all positions of one user.
func (s *Service) ListPositions(ctx context.Context, userID uint) ([]model.Position, error) {
	return s.positions.FindByUserID(ctx, userID)
}

// ListTrades returns the trade log of one order.
func (s *Service) ListTrades(ctx context.Context, orderID uint) ([]model.Trade, error) {
	return s.trades.FindByOrderID(ctx, orderID)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
