package cartsync

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/google/uuid"
)

// RemoteRecord is one row of the remote cart table.
type RemoteRecord struct {
	RowID     uuid.UUID
	UserID    string
	Lines     []cart.Line
	UpdatedAt time.Time
}

// RemoteTable is the remote cart table. FindLatestByUser returns (nil, nil)
// when the user has no record; with duplicate rows the latest updated_at wins.
type RemoteTable interface {
	FindLatestByUser(ctx context.Context, userID string) (*RemoteRecord, error)
	UpdateByID(ctx context.Context, rowID uuid.UUID, lines []cart.Line, updatedAt time.Time) error
	Insert(ctx context.Context, userID string, lines []cart.Line, updatedAt time.Time) error
	UpsertByUser(ctx context.Context, userID string, lines []cart.Line, updatedAt time.Time) error
}
