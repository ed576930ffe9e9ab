package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// GormLedger appends to the orders table.
type GormLedger struct {
	repo.Base
}

func NewGormLedger(conn *gorm.DB) *GormLedger {
	return &GormLedger{Base: repo.NewBase(conn)}
}

func (l *GormLedger) Insert(ctx context.Context, record *models.OrderRecord) error {
	return l.Create(ctx, record)
}
