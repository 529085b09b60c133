package enums

// OutboxEventType labels the domain events the core emits through the outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
)

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}
