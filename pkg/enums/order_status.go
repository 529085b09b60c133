package enums

import "fmt"

// OrderStatus tracks the lifecycle of a vendor order. The wire values are the
// Portuguese status names the mobile clients already rely on.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pendente"
	OrderStatusPaid       OrderStatus = "pago"
	OrderStatusProcessing OrderStatus = "processando"
	OrderStatusShipped    OrderStatus = "enviado"
	OrderStatusDelivered  OrderStatus = "entregue"
	OrderStatusCanceled   OrderStatus = "cancelado"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// orderStatusTransitions holds the allowed targets for each source status.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCanceled:   {},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether the status machine allows moving to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
