package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a seller account. OwnerUserID is the identity notified about new
// orders for this vendor's products.
type Vendor struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	StoreName   string    `gorm:"column:store_name;not null"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
