package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type addItemRequest struct {
	ID       string          `json:"id" validate:"required,max=64"`
	Title    string          `json:"title" validate:"required,max=256"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"omitempty,min=1,max=999"`
}

type cartResponse struct {
	Cart cart.State       `json:"cart"`
	Sync cartsync.Outcome `json:"sync,omitempty"`
}

func CartGet(logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		state, _, _, err := sess.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartResponse{Cart: state})
	})
}

// CartAddItem adds quantity (default 1) of a product. An existing line keeps its price and title.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		res, err := sess.Add(r.Context(), req.ID, req.Title, req.Price, req.Quantity)
		writeMutation(w, r, logg, res, err)
	})
}

func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		productID, err := validators.RequiredPathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := sess.Remove(r.Context(), productID)
		writeMutation(w, r, logg, res, err)
	})
}

func CartDecreaseItem(logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		productID, err := validators.RequiredPathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := sess.DecreaseQuantity(r.Context(), productID)
		writeMutation(w, r, logg, res, err)
	})
}

func CartClear(logg *logger.Logger) http.HandlerFunc {
	return withSession(logg, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		res, err := sess.Clear(r.Context())
		writeMutation(w, r, logg, res, err)
	})
}

func writeMutation(w http.ResponseWriter, r *http.Request, logg *logger.Logger, res session.MutationResult, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, cartResponse{Cart: res.State, Sync: res.Sync.Outcome})
}

func withSession(logg *logger.Logger, fn func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if sess == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart session unavailable"))
			return
		}
		fn(w, r, sess)
	}
}
