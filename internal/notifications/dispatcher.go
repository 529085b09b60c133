package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/internal/catalog"
	"github.com/feiralivre/marketplace-backend/internal/customer"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
	"github.com/feiralivre/marketplace-backend/pkg/outbox"
	"github.com/feiralivre/marketplace-backend/pkg/outbox/payloads"
	"github.com/feiralivre/marketplace-backend/pkg/push"
)

// Dispatcher turns published domain events into in-app notifications and,
// when the recipient registered a device token, Expo pushes. Delivery
// failures are logged and never bubble back into the order flow.
type Dispatcher struct {
	repo     Repository
	catalog  catalog.Repository
	customer customer.Repository
	sender   push.Sender
	logg     *logger.Logger
}

// NewDispatcher wires dispatcher dependencies. sender may be nil when push
// delivery is disabled.
func NewDispatcher(repo Repository, catalogRepo catalog.Repository, customerRepo customer.Repository, sender push.Sender, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:     repo,
		catalog:  catalogRepo,
		customer: customerRepo,
		sender:   sender,
		logg:     logg,
	}, nil
}

// Dispatch handles one outbox event. It returns an error only when the event
// could not be decoded or recipients could not be resolved; push failures are
// logged and swallowed so the event is still marked published.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.OutboxEvent) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID.String(),
		"event_type": event.EventType.String(),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch event.EventType {
	case enums.EventOrderCreated:
		return d.handleOrderCreated(logCtx, envelope)
	case enums.EventOrderStatusChanged:
		return d.handleOrderStatusChanged(logCtx, envelope)
	default:
		d.logg.Info(logCtx, "skipping unhandled event type")
		return nil
	}
}

func (d *Dispatcher) handleOrderCreated(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var payload payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("decode order.created payload: %w", err)
	}

	vendorIDs := make([]uuid.UUID, 0, len(payload.Orders))
	for _, ref := range payload.Orders {
		vendorIDs = append(vendorIDs, ref.VendorID)
	}
	vendors, err := d.catalog.FindVendorsByIDs(ctx, vendorIDs)
	if err != nil {
		return fmt.Errorf("load vendors: %w", err)
	}
	vendorByID := make(map[uuid.UUID]models.Vendor, len(vendors))
	for _, vendor := range vendors {
		vendorByID[vendor.ID] = vendor
	}

	for _, ref := range payload.Orders {
		vendor, ok := vendorByID[ref.VendorID]
		if !ok {
			d.logg.Warn(d.logg.WithField(ctx, "vendor_id", ref.VendorID.String()), "vendor missing, skipping notification")
			continue
		}

		data, _ := json.Marshal(map[string]string{"orderId": ref.OrderID.String()})
		notification := &models.Notification{
			UserID:  vendor.OwnerUserID,
			Type:    enums.NotificationTypeOrderCreated,
			Title:   "Novo pedido recebido",
			Message: fmt.Sprintf("Você recebeu um novo pedido no valor de R$ %s.", ref.Total),
			Data:    data,
		}
		if err := d.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("create vendor notification: %w", err)
		}
		d.pushToUser(ctx, vendor.OwnerUserID, notification)
	}

	d.logg.Info(ctx, "vendors notified of new orders")
	return nil
}

func (d *Dispatcher) handleOrderStatusChanged(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var payload payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("decode order.status_changed payload: %w", err)
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"order_id": payload.OrderID.String(),
		"status":   payload.ToStatus.String(),
	})

	// The side that changed the status already knows; notify the other one.
	recipient := uuid.Nil
	if payload.ActorRole == enums.ActorRoleVendor {
		recipient = payload.BuyerID
	} else {
		vendor, err := d.catalog.FindVendor(logCtx, payload.VendorID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.logg.Warn(logCtx, "vendor missing, skipping notification")
			return nil
		}
		if err != nil {
			return fmt.Errorf("load vendor: %w", err)
		}
		recipient = vendor.OwnerUserID
	}

	data, _ := json.Marshal(map[string]string{"orderId": payload.OrderID.String()})
	notification := &models.Notification{
		UserID:  recipient,
		Type:    enums.NotificationTypeOrderStatus,
		Title:   statusTitle(payload.ToStatus),
		Message: statusMessage(payload),
		Data:    data,
	}
	if err := d.repo.Create(logCtx, notification); err != nil {
		return fmt.Errorf("create status notification: %w", err)
	}
	d.pushToUser(logCtx, recipient, notification)

	d.logg.Info(logCtx, "order status notification delivered")
	return nil
}

func (d *Dispatcher) pushToUser(ctx context.Context, userID uuid.UUID, notification *models.Notification) {
	if d.sender == nil {
		return
	}
	user, err := d.customer.FindUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		d.logg.Error(ctx, "load push recipient failed", err)
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	msg := push.Message{
		To:    *user.PushToken,
		Title: notification.Title,
		Body:  notification.Message,
		Sound: "default",
	}
	if len(notification.Data) > 0 {
		var data map[string]any
		if err := json.Unmarshal(notification.Data, &data); err == nil {
			msg.Data = data
		}
	}
	if err := d.sender.Send(ctx, []push.Message{msg}); err != nil {
		d.logg.Error(ctx, "push delivery failed", err)
	}
}

func statusTitle(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPaid:
		return "Pagamento confirmado"
	case enums.OrderStatusProcessing:
		return "Pedido em preparação"
	case enums.OrderStatusShipped:
		return "Pedido enviado"
	case enums.OrderStatusDelivered:
		return "Pedido entregue"
	case enums.OrderStatusCanceled:
		return "Pedido cancelado"
	default:
		return "Pedido atualizado"
	}
}

func statusMessage(payload payloads.OrderStatusChangedEvent) string {
	short := shortOrderRef(payload.OrderID)
	switch payload.ToStatus {
	case enums.OrderStatusPaid:
		return fmt.Sprintf("O pagamento do pedido %s foi confirmado.", short)
	case enums.OrderStatusProcessing:
		return fmt.Sprintf("O pedido %s está sendo preparado.", short)
	case enums.OrderStatusShipped:
		return fmt.Sprintf("O pedido %s foi enviado.", short)
	case enums.OrderStatusDelivered:
		return fmt.Sprintf("O pedido %s foi entregue.", short)
	case enums.OrderStatusCanceled:
		return fmt.Sprintf("O pedido %s foi cancelado.", short)
	default:
		return fmt.Sprintf("O pedido %s mudou de %s para %s.", short, payload.FromStatus, payload.ToStatus)
	}
}

func shortOrderRef(id uuid.UUID) string {
	s := id.String()
	return "#" + s[:8]
}
