package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"openbroker/src/database"
	"openbroker/src/model"
)

// TradeRepository appends confirmed executions to the trade log.
// Trades are immutable: there are no update or delete operations.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create appends one trade to the log. The given trade is updated in place
// with the store-assigned ID, which also orders trades by insertion.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"order_id": trade.OrderID,
		"symbol":   trade.Symbol,
		"qty":      trade.Quantity,
	}).Debug("Appending trade")

	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to append trade")
		return err
	}

	return nil
}

// FindByOrderID returns all trades recorded against one order, in
// insertion order.
func (r *TradeRepository) FindByOrderID(ctx context.Context, orderID uint) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch trades by order")
		return nil, err
	}

	return trades, nil
}
