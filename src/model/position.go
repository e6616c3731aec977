package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net holding of one user in one symbol. Quantity is
// signed: positive for long, negative for short. One row per
// (user, symbol) pair, mutated only from confirmed trade events.
type Position struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex:idx_positions_user_symbol" json:"user_id"`
	Symbol    string          `gorm:"size:30;uniqueIndex:idx_positions_user_symbol" json:"symbol"`
	Quantity  int             `json:"quantity"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(20,8)" json:"avg_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
