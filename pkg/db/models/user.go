package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal identity surface the core needs: notification targets.
// Credential handling lives upstream in the auth service.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	PushToken *string   `gorm:"column:push_token"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
