package repository

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"openbroker/src/database"
	"openbroker/src/model"
)

// ExceptionRepository persists system-level errors for auditing. A failed
// insert here must never mask the original error, so Create only logs its
// own failures.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance using the main read/write database.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create inserts an exception record.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	if err := r.db.WithContext(ctx).Create(exc).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ExceptionRepository",
			"op":     "Create",
			"module": exc.Module,
			"method": exc.Method,
		}).WithError(err).Error("Failed to persist exception")
		return err
	}
	return nil
}

// Capture builds an exception record from an error plus context fields and
// persists it. Best effort: failures are logged, not returned.
func (r *ExceptionRepository) Capture(
	ctx context.Context,
	module, method, level string,
	cause error,
	fields map[string]interface{},
) {
	contextJSON := ""
	if len(fields) > 0 {
		if b, err := json.Marshal(fields); err == nil {
			contextJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service: "openbroker",
		Module:  module,
		Method:  method,
		Message: cause.Error(),
		Level:   level,
		Context: contextJSON,
	}

	//nolint:errcheck // already logged inside Create
	_ = r.Create(ctx, exc)
}
