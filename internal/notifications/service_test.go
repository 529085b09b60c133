package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY, name TEXT NOT NULL, email TEXT NOT NULL, push_token TEXT,
  created_at DATETIME, updated_at DATETIME);`,
		`CREATE TABLE IF NOT EXISTS vendors (
  id TEXT PRIMARY KEY, owner_user_id TEXT NOT NULL, store_name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1, created_at DATETIME, updated_at DATETIME);`,
		`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY, user_id TEXT NOT NULL, type TEXT NOT NULL,
  title TEXT NOT NULL, message TEXT NOT NULL, data TEXT,
  read_at DATETIME, created_at DATETIME);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeOrderStatus,
		Title:     "Pedido atualizado",
		Message:   "Seu pedido mudou de status.",
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestListPaginatesNewestFirst(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)
	seeded := make(map[uuid.UUID]bool, 3)
	for i := 0; i < 3; i++ {
		n := seedNotification(t, db, userID, base.Add(time.Duration(i)*time.Minute))
		seeded[n.ID] = true
	}
	seedNotification(t, db, uuid.New(), base)

	first, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)
	require.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.Cursor)

	// No row is skipped or repeated across the page boundary.
	seen := map[uuid.UUID]bool{}
	for _, item := range append(first.Items, second.Items...) {
		require.False(t, seen[item.ID])
		seen[item.ID] = true
		require.True(t, seeded[item.ID])
	}
	require.Len(t, seen, 3)
}

func TestListRejectsBadCursor(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-base64!"})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	userID := uuid.New()
	notification := seedNotification(t, db, userID, time.Now().UTC())

	err = svc.MarkRead(context.Background(), uuid.New(), notification.ID)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(context.Background(), userID, notification.ID))

	var stored models.Notification
	require.NoError(t, db.Where("id = ?", notification.ID).First(&stored).Error)
	require.NotNil(t, stored.ReadAt)

	// Re-reading an already read notification is a no-op, not an error.
	require.NoError(t, svc.MarkRead(context.Background(), userID, notification.ID))
}

func TestMarkAllReadAndCountUnread(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	userID := uuid.New()
	seedNotification(t, db, userID, time.Now().UTC())
	seedNotification(t, db, userID, time.Now().UTC())
	seedNotification(t, db, uuid.New(), time.Now().UTC())

	unread, err := svc.CountUnread(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	updated, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	unread, err = svc.CountUnread(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 0, unread)
}

func TestUnreadOnlyFilter(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	userID := uuid.New()
	read := seedNotification(t, db, userID, time.Now().UTC().Add(-time.Minute))
	seedNotification(t, db, userID, time.Now().UTC())
	require.NoError(t, svc.MarkRead(context.Background(), userID, read.ID))

	result, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Nil(t, result.Items[0].ReadAt)
}
