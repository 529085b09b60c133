package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
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

type capturingSender struct {
	batches [][]push.Message
	err     error
}

func (c *capturingSender) Send(_ context.Context, msgs []push.Message) error {
	c.batches = append(c.batches, msgs)
	return c.err
}

func newTestDispatcher(t *testing.T, db *gorm.DB, sender push.Sender) *Dispatcher {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	dispatcher, err := NewDispatcher(NewRepository(db), catalog.NewRepository(db), customer.NewRepository(db), sender, logg)
	require.NoError(t, err)
	return dispatcher
}

func seedVendorWithOwner(t *testing.T, db *gorm.DB, pushToken *string) (*models.Vendor, *models.User) {
	t.Helper()
	owner := &models.User{ID: uuid.New(), Name: "Dona Maria", Email: uuid.NewString() + "@feira.dev", PushToken: pushToken}
	require.NoError(t, db.Create(owner).Error)
	vendor := &models.Vendor{ID: uuid.New(), OwnerUserID: owner.ID, StoreName: "Barraca da Maria"}
	require.NoError(t, db.Create(vendor).Error)
	return vendor, owner
}

func outboxEvent(t *testing.T, eventType enums.OutboxEventType, actor *outbox.ActorRef, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestDispatchOrderCreatedNotifiesEachVendor(t *testing.T) {
	db := setupNotificationsTestDB(t)
	sender := &capturingSender{}
	dispatcher := newTestDispatcher(t, db, sender)

	token := "ExponentPushToken[abc]"
	vendorA, ownerA := seedVendorWithOwner(t, db, &token)
	vendorB, ownerB := seedVendorWithOwner(t, db, nil)

	event := outboxEvent(t, enums.EventOrderCreated, nil, payloads.OrderCreatedEvent{
		BuyerID: uuid.New(),
		CartID:  uuid.New(),
		Orders: []payloads.CreatedOrderRef{
			{OrderID: uuid.New(), VendorID: vendorA.ID, Total: "224.00"},
			{OrderID: uuid.New(), VendorID: vendorB.ID, Total: "56.00"},
		},
		Total:    "280.00",
		Currency: "BRL",
	})

	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	var rows []models.Notification
	require.NoError(t, db.Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)
	recipients := map[uuid.UUID]bool{}
	for _, row := range rows {
		recipients[row.UserID] = true
		require.Equal(t, enums.NotificationTypeOrderCreated, row.Type)
		require.Contains(t, row.Message, "novo pedido")
	}
	require.True(t, recipients[ownerA.ID])
	require.True(t, recipients[ownerB.ID])

	// Only the owner with a registered token gets a push.
	require.Len(t, sender.batches, 1)
	require.Equal(t, token, sender.batches[0][0].To)
}

func TestDispatchStatusChangeByVendorNotifiesBuyer(t *testing.T) {
	db := setupNotificationsTestDB(t)
	sender := &capturingSender{}
	dispatcher := newTestDispatcher(t, db, sender)

	vendor, _ := seedVendorWithOwner(t, db, nil)
	buyerToken := "ExponentPushToken[buyer]"
	buyer := &models.User{ID: uuid.New(), Name: "João", Email: "joao@feira.dev", PushToken: &buyerToken}
	require.NoError(t, db.Create(buyer).Error)

	event := outboxEvent(t, enums.EventOrderStatusChanged,
		&outbox.ActorRef{UserID: vendor.OwnerUserID, VendorID: &vendor.ID, Role: enums.ActorRoleVendor.String()},
		payloads.OrderStatusChangedEvent{
			OrderID:    uuid.New(),
			BuyerID:    buyer.ID,
			VendorID:   vendor.ID,
			FromStatus: enums.OrderStatusProcessing,
			ToStatus:   enums.OrderStatusShipped,
			ActorRole:  enums.ActorRoleVendor,
			ChangedAt:  time.Now().UTC(),
		})

	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, buyer.ID, row.UserID)
	require.Equal(t, enums.NotificationTypeOrderStatus, row.Type)
	require.Equal(t, "Pedido enviado", row.Title)

	require.Len(t, sender.batches, 1)
	require.Equal(t, buyerToken, sender.batches[0][0].To)
}

func TestDispatchStatusChangeByAdminNotifiesVendorOwner(t *testing.T) {
	db := setupNotificationsTestDB(t)
	dispatcher := newTestDispatcher(t, db, nil)

	vendor, owner := seedVendorWithOwner(t, db, nil)

	event := outboxEvent(t, enums.EventOrderStatusChanged,
		&outbox.ActorRef{UserID: uuid.New(), Role: enums.ActorRoleAdmin.String()},
		payloads.OrderStatusChangedEvent{
			OrderID:   uuid.New(),
			BuyerID:   uuid.New(),
			VendorID:  vendor.ID,
			ToStatus:  enums.OrderStatusCanceled,
			ActorRole: enums.ActorRoleAdmin,
			ChangedAt: time.Now().UTC(),
		})

	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	var row models.Notification
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, owner.ID, row.UserID)
	require.Equal(t, "Pedido cancelado", row.Title)
}

func TestDispatchSwallowsPushFailures(t *testing.T) {
	db := setupNotificationsTestDB(t)
	sender := &capturingSender{err: errors.New("gateway down")}
	dispatcher := newTestDispatcher(t, db, sender)

	token := "ExponentPushToken[flaky]"
	vendor, _ := seedVendorWithOwner(t, db, &token)

	event := outboxEvent(t, enums.EventOrderCreated, nil, payloads.OrderCreatedEvent{
		BuyerID: uuid.New(),
		CartID:  uuid.New(),
		Orders:  []payloads.CreatedOrderRef{{OrderID: uuid.New(), VendorID: vendor.ID, Total: "10.00"}},
		Total:   "10.00",
	})

	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestDispatchSkipsUnknownEventType(t *testing.T) {
	db := setupNotificationsTestDB(t)
	dispatcher := newTestDispatcher(t, db, nil)

	event := outboxEvent(t, enums.OutboxEventType("user.registered"), nil, map[string]string{})
	require.NoError(t, dispatcher.Dispatch(context.Background(), event))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
