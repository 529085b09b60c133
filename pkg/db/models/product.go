package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a vendor listing. Stock is unit-level and only consulted when no
// variant is selected.
type Product struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;index"`
	SKU              string           `gorm:"column:sku;not null;uniqueIndex"`
	Name             string           `gorm:"column:name;not null"`
	Description      *string          `gorm:"column:description"`
	Price            decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	PromotionalPrice *decimal.Decimal `gorm:"column:promotional_price;type:numeric(12,2)"`
	Stock            int              `gorm:"column:stock;not null;default:0"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	Variants         []Variant        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Variant is a separately stocked sub-option of a product (size, color). Its
// stock is independent of the parent product's stock.
type Variant struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Kind       string          `gorm:"column:kind;not null"`
	Value      string          `gorm:"column:value;not null"`
	PriceDelta decimal.Decimal `gorm:"column:price_delta;type:numeric(12,2);not null;default:0"`
	Stock      int             `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Label renders the variant description snapshotted onto order lines.
func (v Variant) Label() string {
	return v.Kind + ": " + v.Value
}
