package model

import "time"

// Exception represents a system-level error that must be persisted
// for auditing, debugging, and monitoring purposes. Feed/state desyncs
// (trade updates for unknown orders) land here so they are never lost.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "openbroker"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "feed_client"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "HandleTradeUpdate"

	// Error information
	Message string `gorm:"type:text" json:"message"`

	// Severity level
	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
