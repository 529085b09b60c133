package models

import (
	"time"

	"github.com/google/uuid"
)

// Address belongs to a user; checkout validates ownership before use.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Street     string    `gorm:"column:street;not null"`
	Number     string    `gorm:"column:number;not null"`
	Complement *string   `gorm:"column:complement"`
	City       string    `gorm:"column:city;not null"`
	State      string    `gorm:"column:state;not null"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Principal  bool      `gorm:"column:principal;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CreditCard stores only the non-sensitive tail of a stored card; checkout
// validates ownership before referencing it on an order.
type CreditCard struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Brand     string    `gorm:"column:brand;not null"`
	LastFour  string    `gorm:"column:last_four;not null"`
	Principal bool      `gorm:"column:principal;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
