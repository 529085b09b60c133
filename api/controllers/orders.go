package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/feiralivre/marketplace-backend/api/middleware"
	"github.com/feiralivre/marketplace-backend/api/responses"
	"github.com/feiralivre/marketplace-backend/api/validators"
	ordersvc "github.com/feiralivre/marketplace-backend/internal/orders"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
	"github.com/feiralivre/marketplace-backend/pkg/pagination"
)

func actorFromRequest(r *http.Request) (ordersvc.Actor, error) {
	identity := middleware.IdentityFromContext(r.Context())
	if !identity.HasUser() {
		return ordersvc.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	return ordersvc.Actor{
		UserID:   *identity.UserID,
		Role:     identity.Role,
		VendorID: identity.VendorID,
	}, nil
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func listParamsFromRequest(r *http.Request) (ordersvc.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return ordersvc.ListParams{}, err
	}

	params := ordersvc.ListParams{
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return ordersvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	return params, nil
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Cursor string          `json:"cursor,omitempty"`
}

func newOrderPageResponse(page *ordersvc.Page) orderPageResponse {
	resp := orderPageResponse{Orders: []orderResponse{}}
	if page == nil {
		return resp
	}
	for _, order := range page.Orders {
		resp.Orders = append(resp.Orders, newOrderResponse(order))
	}
	resp.Cursor = page.NextCursor
	return resp
}

// GetOrder returns one order when the caller may see it.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

// ListMyOrders returns the caller's purchase history, newest first.
func ListMyOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParamsFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForBuyer(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPageResponse(page))
	}
}

// ListVendorOrders returns the vendor's received orders with optional status
// filtering.
func ListVendorOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParamsFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForVendor(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPageResponse(page))
	}
}

type transitionRequest struct {
	Status             string     `json:"status" validate:"required"`
	TrackingCode       *string    `json:"trackingCode,omitempty"`
	Carrier            *string    `json:"carrier,omitempty"`
	EstimatedDelivery  *time.Time `json:"estimatedDelivery,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
}

// TransitionOrder moves an order along its lifecycle. Vendors may only touch
// their own orders; buyers never transition.
func TransitionOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		order, err := svc.Transition(r.Context(), ordersvc.TransitionInput{
			OrderID:            orderID,
			Target:             target,
			Actor:              actor,
			TrackingCode:       payload.TrackingCode,
			Carrier:            payload.Carrier,
			EstimatedDelivery:  payload.EstimatedDelivery,
			CancellationReason: payload.CancellationReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
