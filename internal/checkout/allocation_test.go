package checkout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/feiralivre/marketplace-backend/pkg/money"
)

func TestGroupByVendorPreservesFirstSeenOrder(t *testing.T) {
	vendorA := uuid.New()
	vendorB := uuid.New()
	productA1 := uuid.New()
	productA2 := uuid.New()
	productB := uuid.New()

	lines := []preparedLine{
		{ProductID: productA1, VendorID: vendorA, Quantity: 2, UnitPrice: money.MustFromString("50.00")},
		{ProductID: productB, VendorID: vendorB, Quantity: 1, UnitPrice: money.MustFromString("50.00")},
		{ProductID: productA2, VendorID: vendorA, Quantity: 1, UnitPrice: money.MustFromString("100.00")},
	}

	groups := groupByVendor(lines)
	require.Len(t, groups, 2)
	require.Equal(t, vendorA, groups[0].VendorID)
	require.Equal(t, vendorB, groups[1].VendorID)
	require.Len(t, groups[0].Items, 2)
	require.True(t, groups[0].Subtotal.Equal(money.MustFromString("200.00")))
	require.True(t, groups[1].Subtotal.Equal(money.MustFromString("50.00")))
}

func TestAllocateSplitsFreightProportionally(t *testing.T) {
	vendorA := uuid.New()
	vendorB := uuid.New()
	groups := []VendorGroup{
		{VendorID: vendorA, Subtotal: money.MustFromString("200.00")},
		{VendorID: vendorB, Subtotal: money.MustFromString("50.00")},
	}

	allocations := allocate(groups, money.MustFromString("250.00"), money.MustFromString("30.00"), decimal.Zero)
	require.Len(t, allocations, 2)

	require.True(t, allocations[0].Freight.Equal(money.MustFromString("24.00")))
	require.True(t, allocations[0].Total.Equal(money.MustFromString("224.00")))
	require.True(t, allocations[1].Freight.Equal(money.MustFromString("6.00")))
	require.True(t, allocations[1].Total.Equal(money.MustFromString("56.00")))
}

func TestAllocateSplitsDiscountProportionally(t *testing.T) {
	groups := []VendorGroup{
		{VendorID: uuid.New(), Subtotal: money.MustFromString("150.00")},
		{VendorID: uuid.New(), Subtotal: money.MustFromString("50.00")},
	}

	allocations := allocate(groups, money.MustFromString("200.00"), decimal.Zero, money.MustFromString("20.00"))
	require.True(t, allocations[0].Discount.Equal(money.MustFromString("15.00")))
	require.True(t, allocations[0].Total.Equal(money.MustFromString("135.00")))
	require.True(t, allocations[1].Discount.Equal(money.MustFromString("5.00")))
	require.True(t, allocations[1].Total.Equal(money.MustFromString("45.00")))
}

func TestAllocateSingleVendorTakesEverything(t *testing.T) {
	groups := []VendorGroup{
		{VendorID: uuid.New(), Subtotal: money.MustFromString("99.90")},
	}

	allocations := allocate(groups, money.MustFromString("99.90"), money.MustFromString("12.50"), money.MustFromString("5.00"))
	require.True(t, allocations[0].Freight.Equal(money.MustFromString("12.50")))
	require.True(t, allocations[0].Discount.Equal(money.MustFromString("5.00")))
	require.True(t, allocations[0].Total.Equal(money.MustFromString("107.40")))
}

func TestAllocateRoundsSharesPerVendor(t *testing.T) {
	groups := []VendorGroup{
		{VendorID: uuid.New(), Subtotal: money.MustFromString("10.00")},
		{VendorID: uuid.New(), Subtotal: money.MustFromString("10.00")},
		{VendorID: uuid.New(), Subtotal: money.MustFromString("10.00")},
	}

	allocations := allocate(groups, money.MustFromString("30.00"), money.MustFromString("10.00"), decimal.Zero)
	for _, alloc := range allocations {
		require.True(t, alloc.Freight.Equal(money.MustFromString("3.33")))
	}
}
