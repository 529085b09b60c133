package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
)

type stubProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProductLoader) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestResolver(t *testing.T, products ...*models.Product) Resolver {
	t.Helper()
	loader := &stubProductLoader{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		loader.products[p.ID] = p
	}
	r, err := NewResolver(loader)
	require.NoError(t, err)
	return r
}

func TestResolveUsesBasePrice(t *testing.T) {
	product := &models.Product{
		ID:       uuid.New(),
		VendorID: uuid.New(),
		Name:     "Mel silvestre",
		Price:    dec("25.90"),
		Stock:    12,
		Active:   true,
	}
	r := newTestResolver(t, product)

	quote, err := r.Resolve(context.Background(), product.ID, nil)
	require.NoError(t, err)
	require.True(t, quote.UnitPrice.Equal(dec("25.90")))
	require.Equal(t, product.VendorID, quote.VendorID)
	require.Equal(t, "Mel silvestre", quote.ProductName)
	require.Equal(t, 12, quote.AvailableStock)
	require.Nil(t, quote.VariantID)
}

func TestResolvePrefersPromotionalPrice(t *testing.T) {
	promo := dec("19.90")
	product := &models.Product{
		ID:               uuid.New(),
		Price:            dec("25.90"),
		PromotionalPrice: &promo,
		Active:           true,
	}
	r := newTestResolver(t, product)

	quote, err := r.Resolve(context.Background(), product.ID, nil)
	require.NoError(t, err)
	require.True(t, quote.UnitPrice.Equal(promo))
}

func TestResolveAppliesVariantDelta(t *testing.T) {
	promo := dec("19.90")
	variantID := uuid.New()
	product := &models.Product{
		ID:               uuid.New(),
		Price:            dec("25.90"),
		PromotionalPrice: &promo,
		Active:           true,
		Variants: []models.Variant{
			{ID: variantID, Kind: "tamanho", Value: "500g", PriceDelta: dec("4.50"), Stock: 3},
		},
	}
	r := newTestResolver(t, product)

	quote, err := r.Resolve(context.Background(), product.ID, &variantID)
	require.NoError(t, err)
	require.True(t, quote.UnitPrice.Equal(dec("24.40")))
	require.NotNil(t, quote.VariantLabel)
	require.Equal(t, "tamanho: 500g", *quote.VariantLabel)
	require.Equal(t, 3, quote.AvailableStock)
}

func TestResolveRejectsForeignVariant(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Price: dec("10.00"), Active: true}
	r := newTestResolver(t, product)

	other := uuid.New()
	_, err := r.Resolve(context.Background(), product.ID, &other)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestResolveRejectsInactiveProduct(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Price: dec("10.00"), Active: false}
	r := newTestResolver(t, product)

	_, err := r.Resolve(context.Background(), product.ID, nil)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestResolveUnknownProduct(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
