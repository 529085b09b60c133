package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/money"
)

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Quote is the resolved price for one product/variant pair. UnitPrice is the
// effective price: promotional price when set, base price otherwise, plus the
// variant delta when a variant is chosen.
type Quote struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	VendorID       uuid.UUID
	ProductName    string
	VariantLabel   *string
	UnitPrice      decimal.Decimal
	AvailableStock int
}

// Resolver computes effective unit prices from the live catalog.
type Resolver interface {
	Resolve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Quote, error)
}

type resolver struct {
	catalog productLoader
}

// NewResolver builds a pricing resolver backed by the catalog.
func NewResolver(catalog productLoader) (Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	return &resolver{catalog: catalog}, nil
}

// Resolve loads the product and prices the requested selection. The catalog
// is the only price authority: client-sent prices are never trusted.
func (r *resolver) Resolve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Quote, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := r.catalog.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	base := product.Price
	if product.PromotionalPrice != nil {
		base = *product.PromotionalPrice
	}

	quote := &Quote{
		ProductID:      product.ID,
		VendorID:       product.VendorID,
		ProductName:    product.Name,
		UnitPrice:      money.Round(base),
		AvailableStock: product.Stock,
	}

	if variantID == nil {
		return quote, nil
	}

	variant := findVariant(product.Variants, *variantID)
	if variant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant does not belong to product")
	}

	label := variant.Label()
	quote.VariantID = &variant.ID
	quote.VariantLabel = &label
	quote.UnitPrice = money.Round(base.Add(variant.PriceDelta))
	quote.AvailableStock = variant.Stock
	return quote, nil
}

func findVariant(variants []models.Variant, id uuid.UUID) *models.Variant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}
