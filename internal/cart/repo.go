package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Deactivate(ctx context.Context, cartID uuid.UUID) error
	Touch(ctx context.Context, cartID uuid.UUID) error
	IncrementItemQuantity(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty int) (bool, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	FindItemByIDAndCart(ctx context.Context, itemID, cartID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// Create inserts a new cart.
func (r *repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	cart.Active = true
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindActiveByOwner loads the active cart for the owner with its items.
func (r *repository) FindActiveByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		Where("active = ?", true)
	if owner.IsSession() {
		query = query.Where("session_id = ?", *owner.SessionID)
	} else {
		query = query.Where("user_id = ?", *owner.UserID)
	}

	var cart models.Cart
	if err := query.Order("created_at DESC").First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart with its items.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Deactivate retires a cart so a fresh one can take its place.
func (r *repository) Deactivate(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("active", false).Error
}

// Touch bumps updated_at so idle-expiry bookkeeping stays accurate.
func (r *repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// IncrementItemQuantity merges qty into an existing line for the same
// product/variant pair. The boolean reports whether a line matched; callers
// insert a fresh line when it did not.
func (r *repository) IncrementItemQuantity(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty int) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	res := query.Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreateItem inserts a new cart line.
func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// FindItemByIDAndCart returns the line restricted to the provided cart.
func (r *repository) FindItemByIDAndCart(ctx context.Context, itemID, cartID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemQuantity sets the absolute quantity of a line.
func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

// DeleteItem removes a single line.
func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&models.CartItem{}).Error
}

// DeleteItemsByCart empties a cart without retiring it.
func (r *repository) DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
