package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/internal/catalog"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/outbox"
	"github.com/feiralivre/marketplace-backend/pkg/outbox/payloads"
	"github.com/feiralivre/marketplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor is the authenticated identity attempting an order operation. Roles
// are asserted upstream by the gateway; VendorID is set for vendor actors.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.ActorRole
	VendorID *uuid.UUID
}

// TransitionInput carries a status change request. Tracking fields are
// required when shipping; the reason is required when canceling.
type TransitionInput struct {
	OrderID            uuid.UUID
	Target             enums.OrderStatus
	Actor              Actor
	TrackingCode       *string
	Carrier            *string
	EstimatedDelivery  *time.Time
	CancellationReason *string
}

// ListParams narrows order listings.
type ListParams struct {
	Status     *enums.OrderStatus
	Pagination pagination.Params
}

// Page is one cursor page of orders.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// Service owns the order lifecycle after checkout. All writes go through the
// guarded status machine; there is no free-form update path.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*Page, error)
	ListForVendor(ctx context.Context, actor Actor, params ListParams) (*Page, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
	outbox  outboxPublisher
	now     func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		tx:      tx,
		outbox:  publisher,
		now:     time.Now,
	}, nil
}

// Get returns the order when the actor may see it: the buyer who placed it,
// the vendor it belongs to, or an admin.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

// ListForBuyer returns the buyer's orders newest first.
func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*Page, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Pagination.Limit)
	rows, err := s.repo.ListByBuyer(ctx, buyerID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildPage(rows, limit), nil
}

// ListForVendor returns the vendor's orders newest first, optionally
// filtered by status.
func (s *service) ListForVendor(ctx context.Context, actor Actor, params ListParams) (*Page, error) {
	if actor.Role != enums.ActorRoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required")
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Pagination.Limit)
	rows, err := s.repo.ListByVendor(ctx, *actor.VendorID, params.Status, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildPage(rows, limit), nil
}

// Transition moves an order through the status machine. Only admins and the
// order's vendor may transition; buyers never can. The update is guarded on
// the source status so concurrent transitions cannot both win.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if err := authorizeTransition(order, input.Actor); err != nil {
			return err
		}
		if order.Status == input.Target {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already in requested status")
		}
		if !order.Status.CanTransitionTo(input.Target) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"cannot transition order from %s to %s", order.Status, input.Target)
		}

		updates, err := s.buildStampUpdates(input)
		if err != nil {
			return err
		}

		moved, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, input.Target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if input.Target == enums.OrderStatusCanceled {
			if err := s.restoreStock(ctx, tx, order.Items); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor: &outbox.ActorRef{
				UserID:   input.Actor.UserID,
				VendorID: input.Actor.VendorID,
				Role:     input.Actor.Role.String(),
			},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				VendorID:   order.VendorID,
				FromStatus: order.Status,
				ToStatus:   input.Target,
				ActorRole:  input.Actor.Role,
				ChangedAt:  s.now(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildStampUpdates validates transition-specific fields and produces the
// column updates that accompany the status change.
func (s *service) buildStampUpdates(input TransitionInput) (map[string]any, error) {
	updates := map[string]any{}
	now := s.now()

	switch input.Target {
	case enums.OrderStatusPaid:
		updates["paid_at"] = now
	case enums.OrderStatusShipped:
		if input.TrackingCode == nil || *input.TrackingCode == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking code required to ship")
		}
		if input.Carrier == nil || *input.Carrier == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier required to ship")
		}
		updates["shipped_at"] = now
		updates["tracking_code"] = *input.TrackingCode
		updates["carrier"] = *input.Carrier
		if input.EstimatedDelivery != nil {
			updates["estimated_delivery"] = *input.EstimatedDelivery
		}
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
	case enums.OrderStatusCanceled:
		if input.CancellationReason == nil || *input.CancellationReason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
		}
		updates["canceled_at"] = now
		updates["cancellation_reason"] = *input.CancellationReason
	}
	return updates, nil
}

// restoreStock returns the canceled order's units to the catalog.
func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	repo := s.catalog.WithTx(tx)
	for _, item := range items {
		var err error
		if item.VariantID != nil {
			err = repo.RestoreVariantStock(ctx, *item.VariantID, item.Quantity)
		} else {
			err = repo.RestoreProductStock(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	return nil
}

func authorizeTransition(order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleVendor:
		if actor.VendorID != nil && *actor.VendorID == order.VendorID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "buyers cannot change order status")
	}
}

func canView(order *models.Order, actor Actor) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return true
	case enums.ActorRoleVendor:
		return actor.VendorID != nil && *actor.VendorID == order.VendorID
	default:
		return order.BuyerID == actor.UserID
	}
}

func buildPage(rows []models.Order, limit int) *Page {
	page := &Page{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	page.Orders = rows
	return page
}
