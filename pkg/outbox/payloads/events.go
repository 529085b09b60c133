package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/feiralivre/marketplace-backend/pkg/enums"
)

// OrderCreatedEvent signals a checkout that was split into per-vendor orders.
type OrderCreatedEvent struct {
	BuyerID  uuid.UUID         `json:"buyerId"`
	CartID   uuid.UUID         `json:"cartId"`
	Orders   []CreatedOrderRef `json:"orders"`
	Total    string            `json:"total"`
	Currency string            `json:"currency"`
}

// CreatedOrderRef identifies one vendor order inside a checkout split.
type CreatedOrderRef struct {
	OrderID  uuid.UUID `json:"orderId"`
	VendorID uuid.UUID `json:"vendorId"`
	Total    string    `json:"total"`
}

// OrderStatusChangedEvent records a guarded status transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	BuyerID    uuid.UUID         `json:"buyerId"`
	VendorID   uuid.UUID         `json:"vendorId"`
	FromStatus enums.OrderStatus `json:"fromStatus"`
	ToStatus   enums.OrderStatus `json:"toStatus"`
	ActorRole  enums.ActorRole   `json:"actorRole"`
	ChangedAt  time.Time         `json:"changedAt"`
}
