package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feiralivre/marketplace-backend/pkg/money"
)

// VendorGroup collects the checkout lines that belong to one vendor, in the
// order the vendor first appeared in the request.
type VendorGroup struct {
	VendorID uuid.UUID
	Items    []preparedLine
	Subtotal decimal.Decimal
}

// Allocation carries one vendor's proportional share of the cart-level
// amounts. Shares are rounded half-up to two decimals independently per
// vendor; rounding remainders are not redistributed.
type Allocation struct {
	VendorID uuid.UUID
	Subtotal decimal.Decimal
	Freight  decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// groupByVendor splits checkout lines by the vendor that owns each product,
// preserving first-seen vendor order so the resulting orders are stable.
func groupByVendor(lines []preparedLine) []VendorGroup {
	index := map[uuid.UUID]int{}
	groups := make([]VendorGroup, 0)

	for _, line := range lines {
		pos, seen := index[line.VendorID]
		if !seen {
			pos = len(groups)
			index[line.VendorID] = pos
			groups = append(groups, VendorGroup{VendorID: line.VendorID, Subtotal: decimal.Zero})
		}
		groups[pos].Items = append(groups[pos].Items, line)
		groups[pos].Subtotal = groups[pos].Subtotal.Add(money.Line(line.UnitPrice, line.Quantity))
	}

	for i := range groups {
		groups[i].Subtotal = money.Round(groups[i].Subtotal)
	}
	return groups
}

// allocate distributes cart-level freight and discount across vendor groups
// in proportion to each vendor's subtotal share of the whole cart.
func allocate(groups []VendorGroup, cartSubtotal, freight, discount decimal.Decimal) []Allocation {
	allocations := make([]Allocation, 0, len(groups))
	for _, group := range groups {
		freightShare := money.Round(money.Share(freight, group.Subtotal, cartSubtotal))
		discountShare := money.Round(money.Share(discount, group.Subtotal, cartSubtotal))
		total := money.Round(group.Subtotal.Add(freightShare).Sub(discountShare))
		if total.IsNegative() {
			total = decimal.Zero
		}
		allocations = append(allocations, Allocation{
			VendorID: group.VendorID,
			Subtotal: group.Subtotal,
			Freight:  freightShare,
			Discount: discountShare,
			Total:    total,
		})
	}
	return allocations
}
