package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// CartRecord is the remote snapshot of one user's cart. user_id carries no
// uniqueness guarantee unless the upsert migration added one.
type CartRecord struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string           `gorm:"column:user_id;not null;index"`
	CartData  []types.LineItem `gorm:"column:cart_data;type:jsonb;serializer:json;not null"`
	UpdatedAt time.Time        `gorm:"column:updated_at;not null"`
}

func (CartRecord) TableName() string { return "carts" }
