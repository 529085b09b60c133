package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/feiralivre/marketplace-backend/api/middleware"
	"github.com/feiralivre/marketplace-backend/api/responses"
	"github.com/feiralivre/marketplace-backend/api/validators"
	cartsvc "github.com/feiralivre/marketplace-backend/internal/cart"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
	"github.com/feiralivre/marketplace-backend/pkg/money"
)

type cartItemResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity"`
	UnitPrice string     `json:"unitPrice"`
	LineTotal string     `json:"lineTotal"`
}

type cartResponse struct {
	ID       uuid.UUID          `json:"id"`
	Items    []cartItemResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
}

func newCartResponse(view *cartsvc.View) cartResponse {
	resp := cartResponse{Items: []cartItemResponse{}}
	if view == nil || view.Cart == nil {
		return resp
	}
	resp.ID = view.Cart.ID
	resp.Subtotal = view.Subtotal.StringFixed(2)
	for _, item := range view.Cart.Items {
		lineTotal := money.Line(item.UnitPrice, item.Quantity)
		resp.Items = append(resp.Items, cartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: lineTotal.StringFixed(2),
		})
	}
	return resp
}

func cartOwnerFromRequest(r *http.Request) (cartsvc.Owner, error) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity.HasUser() {
		return cartsvc.OwnerForUser(*identity.UserID), nil
	}
	if identity.SessionID != "" {
		return cartsvc.OwnerForSession(identity.SessionID), nil
	}
	return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user or session identity required")
}

// GetCart returns the caller's active cart, empty when none exists.
func GetCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), owner)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				responses.WriteSuccess(w, newCartResponse(nil))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(view))
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
}

// AddCartItem adds a line to the cart, merging with an existing line for the
// same product and variant.
func AddCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddItem(r.Context(), owner, cartsvc.AddItemInput{
			ProductID: payload.ProductID,
			VariantID: payload.VariantID,
			Quantity:  payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(view))
	}
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItem sets the absolute quantity of one cart line.
func UpdateCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item id"))
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateItem(r.Context(), owner, itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(view))
	}
}

// RemoveCartItem deletes one line from the cart.
func RemoveCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item id"))
			return
		}

		view, err := svc.RemoveItem(r.Context(), owner, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(view))
	}
}

// ClearCart removes every line, keeping the cart itself active.
func ClearCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := cartOwnerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
