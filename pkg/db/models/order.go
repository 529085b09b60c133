package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feiralivre/marketplace-backend/pkg/enums"
)

// Order is the vendor-scoped aggregate born from checkout. Monetary fields
// are this vendor's proportional shares of the cart-level amounts. Orders are
// never deleted; the status machine is the only writer after creation.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID            uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID           uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;index"`
	DeliveryAddressID  uuid.UUID         `gorm:"column:delivery_address_id;type:uuid;not null"`
	PaymentCardID      *uuid.UUID        `gorm:"column:payment_card_id;type:uuid"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pendente'"`
	Subtotal           decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount           decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Freight            decimal.Decimal   `gorm:"column:freight;type:numeric(12,2);not null;default:0"`
	Total              decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod      string            `gorm:"column:payment_method;not null"`
	TrackingCode       *string           `gorm:"column:tracking_code"`
	Carrier            *string           `gorm:"column:carrier"`
	EstimatedDelivery  *time.Time        `gorm:"column:estimated_delivery"`
	CancellationReason *string           `gorm:"column:cancellation_reason"`
	PaidAt             *time.Time        `gorm:"column:paid_at"`
	ShippedAt          *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time        `gorm:"column:delivered_at"`
	CanceledAt         *time.Time        `gorm:"column:canceled_at"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots one checkout line. ProductName and VariantLabel are
// denormalized at creation so later catalog edits never rewrite history.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID    *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	VendorID     uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductName  string          `gorm:"column:product_name;not null"`
	VariantLabel *string         `gorm:"column:variant_label"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
