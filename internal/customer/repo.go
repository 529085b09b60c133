package customer

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
)

// Repository exposes the buyer-profile lookups checkout and notifications
// depend on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FindAddressByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
	FindCardByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CreditCard, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a customer repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// FindAddressByIDAndUser returns the address only when it belongs to userID.
func (r *repository) FindAddressByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// FindCardByIDAndUser returns the stored card only when it belongs to userID.
func (r *repository) FindCardByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.CreditCard, error) {
	var card models.CreditCard
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}
