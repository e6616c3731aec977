package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"openbroker/src/database"
	"openbroker/src/model"
)

// OrderRepository handles read/write operations for orders.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. The given order is updated in place with the
// generated ID and timestamps.
func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "Create",
		"client_order_id": order.ClientOrderID,
		"symbol":          order.Symbol,
		"qty":             order.Quantity,
	}).Debug("Creating new order")

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.ID,
	}).Info("Order created successfully")

	return nil
}

// FindByID fetches a single order by its primary ID.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order

	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")
		return nil, err
	}

	return &order, nil
}

// FindByClientOrderID fetches the order an exchange trade update refers to.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByClientOrderID(ctx context.Context, clientOrderID string) (*model.Order, error) {
	var order model.Order

	err := r.db.WithContext(ctx).
		Where("client_order_id = ?", clientOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRepository",
			"op":              "FindByClientOrderID",
			"client_order_id": clientOrderID,
		}).WithError(err).Error("Failed to fetch order by client order ID")
		return nil, err
	}

	return &order, nil
}

// FindByUserID returns all orders of one user, newest first.
func (r *OrderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "OrderRepository",
			"op":      "FindByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch orders by user")
		return nil, err
	}

	return orders, nil
}

// UpdateFill persists the mutable part of an order: its status and filled
// quantity. Identity fields are never rewritten.
func (r *OrderRepository) UpdateFill(ctx context.Context, order *model.Order) error {
	logger.WithFields(map[string]interface{}{
		"repo":       "OrderRepository",
		"op":         "UpdateFill",
		"order_id":   order.ID,
		"status":     order.Status,
		"filled_qty": order.FilledQuantity,
	}).Debug("Updating order fill state")

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":          order.Status,
			"filled_quantity": order.FilledQuantity,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "UpdateFill",
			"order_id": order.ID,
		}).WithError(err).Error("Failed to update order")
		return err
	}

	return nil
}
