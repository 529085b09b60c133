package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
)

// Repository exposes read access to the catalog plus the stock mutations
// checkout needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
	DecrementProductStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error
	RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
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

// FindProduct loads a product with its variants.
func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariant loads a single variant.
func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVendor loads a vendor by ID.
func (r *repository) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindVendorsByIDs loads the vendors for the provided IDs.
func (r *repository) FindVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vendors []models.Vendor
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&vendors).Error
	if err != nil {
		return nil, err
	}
	return vendors, nil
}

// DecrementProductStock atomically takes qty units from product stock. The
// guard keeps stock non-negative under concurrent checkouts; the boolean
// reports whether enough stock was available.
func (r *repository) DecrementProductStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementVariantStock mirrors DecrementProductStock for variant stock.
func (r *repository) DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreProductStock returns qty units to product stock.
func (r *repository) RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// RestoreVariantStock returns qty units to variant stock.
func (r *repository) RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", variantID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}
