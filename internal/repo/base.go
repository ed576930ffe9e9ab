package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the gorm connection shared by the storefront's table adapters.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Create inserts value as a single row.
func (b Base) Create(ctx context.Context, value any) error {
	return b.DB(ctx).Create(value).Error
}
