package db

import (
	"context"

	"github.com/stwalsh4118/cutroom/internal/logger"
	"gorm.io/gorm"
)

// InTransaction runs fn with repositories bound to one transaction. The
// transaction commits when fn returns nil and rolls back on error or panic.
// Repository methods that open their own transaction nest as savepoints.
func (r *Repositories) InTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(&DB{DB: tx}))
	})
	if err != nil {
		logger.Log.Debug().Err(err).Msg("Transaction rolled back")
	}
	return err
}
