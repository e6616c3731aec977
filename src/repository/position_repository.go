package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"openbroker/src/database"
	"openbroker/src/model"
)

// PositionRepository handles read/write operations for positions.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindByUserAndSymbol fetches the single position row for a (user, symbol)
// pair. Returns (nil, nil) if no position exists yet.
func (r *PositionRepository) FindByUserAndSymbol(ctx context.Context, userID uint, symbol string) (*model.Position, error) {
	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindByUserAndSymbol",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch position")
		return nil, err
	}

	return &position, nil
}

// FindByUserID returns all positions of one user.
func (r *PositionRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch positions by user")
		return nil, err
	}

	return positions, nil
}

// Create inserts a new position row for a pair that had none.
func (r *PositionRepository) Create(ctx context.Context, position *model.Position) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "Create",
		"user_id": position.UserID,
		"symbol":  position.Symbol,
		"qty":     position.Quantity,
	}).Debug("Creating new position")

	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create position")
		return err
	}

	return nil
}

// Update persists the mutable part of a position: quantity and average price.
func (r *PositionRepository) Update(ctx context.Context, position *model.Position) error {
	logger.WithFields(map[string]interface{}{
		"repo":      "PositionRepository",
		"op":        "Update",
		"user_id":   position.UserID,
		"symbol":    position.Symbol,
		"qty":       position.Quantity,
		"avg_price": position.AvgPrice,
	}).Debug("Updating position")

	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("user_id = ? AND symbol = ?", position.UserID, position.Symbol).
		Updates(map[string]interface{}{
			"quantity":  position.Quantity,
			"avg_price": position.AvgPrice,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "Update",
			"user_id": position.UserID,
			"symbol":  position.Symbol,
		}).WithError(err).Error("Failed to update position")
		return err
	}

	return nil
}
