package cartsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTable stores cart snapshots in the carts table.
type GormTable struct {
	repo.Base
}

func NewGormTable(conn *gorm.DB) *GormTable {
	return &GormTable{Base: repo.NewBase(conn)}
}

// FindLatestByUser returns the most recently updated row for the user.
func (t *GormTable) FindLatestByUser(ctx context.Context, userID string) (*RemoteRecord, error) {
	var record models.CartRecord
	err := t.DB(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&record).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &RemoteRecord{
		RowID:     record.ID,
		UserID:    record.UserID,
		Lines:     record.CartData,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func (t *GormTable) UpdateByID(ctx context.Context, rowID uuid.UUID, lines []cart.Line, updatedAt time.Time) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart data: %w", err)
	}
	res := t.DB(ctx).
		Model(&models.CartRecord{}).
		Where("id = ?", rowID).
		Updates(map[string]any{
			"cart_data":  string(payload),
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart row %s no longer exists", rowID)
	}
	return nil
}

func (t *GormTable) Insert(ctx context.Context, userID string, lines []cart.Line, updatedAt time.Time) error {
	record := &models.CartRecord{
		ID:        uuid.New(),
		UserID:    userID,
		CartData:  lines,
		UpdatedAt: updatedAt,
	}
	return t.Create(ctx, record)
}

// UpsertByUser relies on the unique index over carts.user_id.
func (t *GormTable) UpsertByUser(ctx context.Context, userID string, lines []cart.Line, updatedAt time.Time) error {
	record := &models.CartRecord{
		ID:        uuid.New(),
		UserID:    userID,
		CartData:  lines,
		UpdatedAt: updatedAt,
	}
	return t.DB(ctx).
		Clauses(upsertByUserClause()).
		Create(record).Error
}

func upsertByUserClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cart_data", "updated_at"}),
	}
}
