package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShare(t *testing.T) {
	t.Parallel()

	freight := MustFromString("30.00")
	vendorA := MustFromString("200.00")
	vendorB := MustFromString("50.00")
	cart := vendorA.Add(vendorB)

	assert.True(t, MustFromString("24").Equal(Round(Share(freight, vendorA, cart))))
	assert.True(t, MustFromString("6").Equal(Round(Share(freight, vendorB, cart))))
}

func TestShareZeroCartSubtotal(t *testing.T) {
	t.Parallel()

	got := Share(MustFromString("10.00"), decimal.Zero, decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestLineAndRound(t *testing.T) {
	t.Parallel()

	line := Line(MustFromString("19.99"), 3)
	assert.True(t, MustFromString("59.97").Equal(line))

	assert.True(t, MustFromString("10.01").Equal(Round(MustFromString("10.005"))))
}
