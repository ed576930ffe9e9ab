package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const OrderStatusPending = "pending"

// OrderRecord is append-only; rows are never updated after insert.
type OrderRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID     string           `gorm:"column:user_id;not null"`
	UserEmail  string           `gorm:"column:user_email;not null"`
	CartData   []types.LineItem `gorm:"column:cart_data;type:jsonb;serializer:json;not null"`
	ItemNames  pq.StringArray   `gorm:"column:item_names;type:text[]"`
	TotalPrice decimal.Decimal  `gorm:"column:total_price;type:numeric(12,2);not null"`
	OrderDate  time.Time        `gorm:"column:order_date;not null"`
	Status     string           `gorm:"column:status;not null;default:'pending'"`
}

func (OrderRecord) TableName() string { return "orders" }
