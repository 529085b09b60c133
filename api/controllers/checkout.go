package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feiralivre/marketplace-backend/api/middleware"
	"github.com/feiralivre/marketplace-backend/api/responses"
	"github.com/feiralivre/marketplace-backend/api/validators"
	checkoutsvc "github.com/feiralivre/marketplace-backend/internal/checkout"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

type checkoutItemRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
}

type checkoutRequest struct {
	DeliveryAddressID uuid.UUID             `json:"deliveryAddressId" validate:"required"`
	PaymentCardID     *uuid.UUID            `json:"paymentCardId,omitempty"`
	PaymentMethod     string                `json:"paymentMethod" validate:"required,oneof=pix credit_card boleto"`
	Freight           string                `json:"freight,omitempty"`
	Discount          string                `json:"discount,omitempty"`
	Items             []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"productId"`
	VariantID    *uuid.UUID `json:"variantId,omitempty"`
	ProductName  string     `json:"productName"`
	VariantLabel *string    `json:"variantLabel,omitempty"`
	Quantity     int        `json:"quantity"`
	UnitPrice    string     `json:"unitPrice"`
}

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	VendorID           uuid.UUID           `json:"vendorId"`
	Status             string              `json:"status"`
	Subtotal           string              `json:"subtotal"`
	Freight            string              `json:"freight"`
	Discount           string              `json:"discount"`
	Total              string              `json:"total"`
	PaymentMethod      string              `json:"paymentMethod"`
	TrackingCode       *string             `json:"trackingCode,omitempty"`
	Carrier            *string             `json:"carrier,omitempty"`
	EstimatedDelivery  *time.Time          `json:"estimatedDelivery,omitempty"`
	CancellationReason *string             `json:"cancellationReason,omitempty"`
	PaidAt             *time.Time          `json:"paidAt,omitempty"`
	ShippedAt          *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time          `json:"deliveredAt,omitempty"`
	CanceledAt         *time.Time          `json:"canceledAt,omitempty"`
	Items              []orderItemResponse `json:"items"`
	CreatedAt          time.Time           `json:"createdAt"`
}

type checkoutResponse struct {
	Orders []orderResponse `json:"orders"`
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			VariantLabel: item.VariantLabel,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.StringFixed(2),
		})
	}
	return orderResponse{
		ID:                 order.ID,
		VendorID:           order.VendorID,
		Status:             string(order.Status),
		Subtotal:           order.Subtotal.StringFixed(2),
		Freight:            order.Freight.StringFixed(2),
		Discount:           order.Discount.StringFixed(2),
		Total:              order.Total.StringFixed(2),
		PaymentMethod:      order.PaymentMethod,
		TrackingCode:       order.TrackingCode,
		Carrier:            order.Carrier,
		EstimatedDelivery:  order.EstimatedDelivery,
		CancellationReason: order.CancellationReason,
		PaidAt:             order.PaidAt,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CanceledAt:         order.CanceledAt,
		Items:              items,
		CreatedAt:          order.CreatedAt,
	}
}

// Checkout submits the requested items, priced from the live catalog, and
// splits them into per-vendor orders. Requires an authenticated user.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())
		if !identity.HasUser() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		freight, err := parseAmount(payload.Freight, "freight")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := parseAmount(payload.Discount, "discount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkoutsvc.LineInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.LineInput{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			})
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			BuyerID:           *identity.UserID,
			DeliveryAddressID: payload.DeliveryAddressID,
			PaymentCardID:     payload.PaymentCardID,
			PaymentMethod:     payload.PaymentMethod,
			Freight:           freight,
			Discount:          discount,
			Items:             items,
			IdempotencyKey:    strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{Orders: make([]orderResponse, 0, len(result.Orders))}
		for _, order := range result.Orders {
			resp.Orders = append(resp.Orders, newOrderResponse(order))
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be a decimal amount")
	}
	if value.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, field+" cannot be negative")
	}
	return value, nil
}
