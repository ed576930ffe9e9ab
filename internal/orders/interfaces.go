package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/internal/session"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// CartHandle is the cart an order is submitted from. ClearAndSync must leave
// the cart alone unless the handle still carries the tag Current returned.
type CartHandle interface {
	ID() string
	Current(ctx context.Context) (cart.State, *auth.Identity, session.Tag, error)
	ClearAndSync(ctx context.Context, tag session.Tag) (cart.State, cartsync.SaveResult, error)
}

// Invoice is what both order notifications are built from.
type Invoice struct {
	CustomerName  string
	CustomerEmail string
	Summary       string
	Total         decimal.Decimal
	OrderDate     time.Time
}

// Notifier sends the customer invoice and the operator alert.
type Notifier interface {
	NotifyCustomer(ctx context.Context, invoice Invoice) error
	NotifyOperator(ctx context.Context, invoice Invoice) error
}

// Ledger appends order records.
type Ledger interface {
	Insert(ctx context.Context, record *models.OrderRecord) error
}

// InFlightGuard admits at most one submission per key. release must be
// called once the submission finishes.
type InFlightGuard interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}
