package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type orderResponse struct {
	OrderID    string           `json:"order_id"`
	State      orders.State     `json:"state"`
	Status     string           `json:"status"`
	TotalPrice string           `json:"total_price"`
	ItemNames  []string         `json:"item_names"`
	OrderDate  string           `json:"order_date"`
	CartSync   cartsync.Outcome `json:"cart_sync,omitempty"`
}

// OrderSubmit places an order from the session cart.
func OrderSubmit(coordinator *orders.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		res, err := coordinator.Submit(r.Context(), sess)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order := res.Order
		responses.WriteSuccessStatus(w, http.StatusCreated, orderResponse{
			OrderID:    order.ID.String(),
			State:      res.State,
			Status:     order.Status,
			TotalPrice: order.TotalPrice.StringFixed(2),
			ItemNames:  []string(order.ItemNames),
			OrderDate:  order.OrderDate.Format(time.RFC3339),
			CartSync:   res.Sync.Outcome,
		})
	})
}
