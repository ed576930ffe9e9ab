package cartsync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const cartsDDL = `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  cart_data TEXT NOT NULL DEFAULT '[]',
  updated_at DATETIME NOT NULL
);`

func setupCartsDB(t *testing.T, unique bool) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:carts_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(cartsDDL).Error)
	if unique {
		require.NoError(t, conn.Exec(`CREATE UNIQUE INDEX carts_user_id_key ON carts (user_id)`).Error)
	}
	return conn
}

func lines(qty int) []cart.Line {
	return []cart.Line{{
		ProductID: "A",
		Title:     "Widget",
		Price:     decimal.NewFromInt(10),
		Quantity:  qty,
		Subtotal:  decimal.NewFromInt(int64(10 * qty)),
	}}
}

func TestGormTableFindLatestByUser(t *testing.T) {
	conn := setupCartsDB(t, false)
	table := NewGormTable(conn)
	ctx := context.Background()

	rec, err := table.FindLatestByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	require.NoError(t, table.Insert(ctx, "user-1", lines(1), older))
	require.NoError(t, table.Insert(ctx, "user-1", lines(5), newer))
	require.NoError(t, table.Insert(ctx, "user-2", lines(9), newer.Add(time.Hour)))

	rec, err = table.FindLatestByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user-1", rec.UserID)
	require.Len(t, rec.Lines, 1)
	assert.Equal(t, 5, rec.Lines[0].Quantity)
	assert.True(t, rec.Lines[0].Subtotal.Equal(decimal.NewFromInt(50)))
}

func TestGormTableUpdateByID(t *testing.T) {
	conn := setupCartsDB(t, false)
	table := NewGormTable(conn)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, table.Insert(ctx, "user-1", lines(1), at))
	rec, err := table.FindLatestByUser(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, table.UpdateByID(ctx, rec.RowID, []cart.Line{}, at.Add(time.Minute)))

	var stored models.CartRecord
	require.NoError(t, conn.First(&stored, "id = ?", rec.RowID).Error)
	assert.Empty(t, stored.CartData)

	var raw string
	require.NoError(t, conn.Raw(`SELECT cart_data FROM carts WHERE id = ?`, rec.RowID).Scan(&raw).Error)
	assert.Equal(t, "[]", raw)

	err = table.UpdateByID(ctx, uuid.New(), lines(1), at)
	assert.Error(t, err)
}

func TestGormTableStoresNumericPrices(t *testing.T) {
	conn := setupCartsDB(t, false)
	table := NewGormTable(conn)
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, "user-1", lines(2), time.Now().UTC()))

	var raw string
	require.NoError(t, conn.Raw(`SELECT cart_data FROM carts WHERE user_id = ?`, "user-1").Scan(&raw).Error)
	assert.JSONEq(t, `[{"id":"A","title":"Widget","price":10,"quantity":2,"subtotal":20}]`, raw)
}

func TestGormTableUpsertByUserTargetsUserID(t *testing.T) {
	conn := setupCartsDB(t, true)
	table := NewGormTable(conn)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, table.UpsertByUser(ctx, "user-1", lines(1), at))
	require.NoError(t, table.UpsertByUser(ctx, "user-1", lines(4), at.Add(time.Minute)))

	var count int64
	require.NoError(t, conn.Model(&models.CartRecord{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	rec, err := table.FindLatestByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Lines[0].Quantity)

	stmt := conn.Session(&gorm.Session{DryRun: true}).
		Clauses(upsertByUserClause()).
		Create(&models.CartRecord{ID: uuid.New(), UserID: "user-1", CartData: lines(1), UpdatedAt: at}).
		Statement
	sql := stmt.SQL.String()
	assert.True(t, strings.Contains(sql, "ON CONFLICT (`user_id`) DO UPDATE"), sql)
}

func TestGormTableInsertRaceSurfacesUniqueViolation(t *testing.T) {
	conn := setupCartsDB(t, true)
	svc := newTestService(t, NewGormTable(conn), StrategyReadThenBranch)
	ctx := context.Background()

	require.NoError(t, NewGormTable(conn).Insert(ctx, "user-1", lines(1), time.Now().UTC()))
	raced := &staleFindTable{GormTable: NewGormTable(conn)}
	svc.table = raced

	res := svc.SaveForUser(ctx, "user-1", cart.State{Lines: lines(2)})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

// staleFindTable simulates the read/write race: the read misses a row that
// another session already inserted.
type staleFindTable struct {
	*GormTable
}

func (s *staleFindTable) FindLatestByUser(ctx context.Context, userID string) (*RemoteRecord, error) {
	return nil, nil
}
