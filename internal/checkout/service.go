package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/internal/cart"
	"github.com/feiralivre/marketplace-backend/internal/catalog"
	"github.com/feiralivre/marketplace-backend/internal/customer"
	"github.com/feiralivre/marketplace-backend/internal/orders"
	"github.com/feiralivre/marketplace-backend/internal/pricing"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/money"
	"github.com/feiralivre/marketplace-backend/pkg/outbox"
	"github.com/feiralivre/marketplace-backend/pkg/outbox/payloads"
	"github.com/feiralivre/marketplace-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LineInput is one requested checkout line. Unit prices are never taken from
// the caller; they are resolved from the live catalog inside the transaction.
type LineInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Input carries the checkout payload. Freight and Discount are checkout-level
// amounts produced upstream; both are split proportionally across the
// resulting vendor orders.
type Input struct {
	BuyerID           uuid.UUID
	DeliveryAddressID uuid.UUID
	PaymentCardID     *uuid.UUID
	PaymentMethod     string
	Freight           decimal.Decimal
	Discount          decimal.Decimal
	Items             []LineInput
	IdempotencyKey    string
}

// Result is the outcome of one checkout: one order per vendor present in
// the requested items, in first-seen vendor order.
type Result struct {
	Orders []models.Order
}

// Service turns the requested items into per-vendor orders atomically:
// stock, orders, cart retirement and the outbox event commit together or
// not at all.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

// preparedLine is one checkout line after live pricing: unit price, vendor
// and the denormalized names the order line will carry.
type preparedLine struct {
	ProductID    uuid.UUID
	VariantID    *uuid.UUID
	VendorID     uuid.UUID
	ProductName  string
	VariantLabel *string
	Quantity     int
	UnitPrice    decimal.Decimal
}

type service struct {
	tx           txRunner
	cartRepo     cart.Repository
	catalogRepo  catalog.Repository
	customerRepo customer.Repository
	ordersRepo   orders.Repository
	outbox       outboxPublisher
	idempotency  *idempotencyGuard
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	catalogRepo catalog.Repository,
	customerRepo customer.Repository,
	ordersRepo orders.Repository,
	publisher outboxPublisher,
	idempotencyStore redis.IdempotencyStore,
	idempotencyTTL time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		tx:           tx,
		cartRepo:     cartRepo,
		catalogRepo:  catalogRepo,
		customerRepo: customerRepo,
		ordersRepo:   ordersRepo,
		outbox:       publisher,
	}
	if idempotencyStore != nil {
		svc.idempotency = &idempotencyGuard{store: idempotencyStore, ttl: idempotencyTTL}
	}
	return svc, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if err := s.idempotency.Claim(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}

	result, err := s.execute(ctx, input)
	if err != nil {
		// A failed checkout changed nothing, so the key may be retried.
		_ = s.idempotency.Release(ctx, input.IdempotencyKey)
		return nil, err
	}
	return result, nil
}

func (s *service) execute(ctx context.Context, input Input) (*Result, error) {
	var created []models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)
		customerRepo := s.customerRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		if _, err := customerRepo.FindAddressByIDAndUser(ctx, input.DeliveryAddressID, input.BuyerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "invalid delivery address")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery address")
		}
		if input.PaymentCardID != nil {
			if _, err := customerRepo.FindCardByIDAndUser(ctx, *input.PaymentCardID, input.BuyerID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeForbidden, "invalid payment card")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment card")
			}
		}

		lines, err := prepareLines(ctx, catalogRepo, input.Items)
		if err != nil {
			return err
		}

		if err := reserveStock(ctx, tx, s.catalogRepo, lines); err != nil {
			return err
		}

		groups := groupByVendor(lines)
		checkoutSubtotal := decimal.Zero
		for _, group := range groups {
			checkoutSubtotal = checkoutSubtotal.Add(group.Subtotal)
		}
		checkoutSubtotal = money.Round(checkoutSubtotal)
		if input.Discount.GreaterThan(checkoutSubtotal) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds items subtotal")
		}

		allocations := allocate(groups, checkoutSubtotal, input.Freight, input.Discount)
		refs := make([]payloads.CreatedOrderRef, 0, len(groups))
		grandTotal := decimal.Zero

		for i, group := range groups {
			alloc := allocations[i]
			order := &models.Order{
				BuyerID:           input.BuyerID,
				VendorID:          group.VendorID,
				DeliveryAddressID: input.DeliveryAddressID,
				PaymentCardID:     input.PaymentCardID,
				Status:            enums.OrderStatusPending,
				Subtotal:          alloc.Subtotal,
				Discount:          alloc.Discount,
				Freight:           alloc.Freight,
				Total:             alloc.Total,
				PaymentMethod:     input.PaymentMethod,
			}
			saved, err := ordersRepo.Create(ctx, order)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}

			items := make([]models.OrderItem, 0, len(group.Items))
			for _, line := range group.Items {
				items = append(items, models.OrderItem{
					OrderID:      saved.ID,
					ProductID:    line.ProductID,
					VariantID:    line.VariantID,
					VendorID:     group.VendorID,
					ProductName:  line.ProductName,
					VariantLabel: line.VariantLabel,
					Quantity:     line.Quantity,
					UnitPrice:    line.UnitPrice,
				})
			}
			if err := ordersRepo.CreateItems(ctx, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}
			saved.Items = items

			created = append(created, *saved)
			refs = append(refs, payloads.CreatedOrderRef{
				OrderID:  saved.ID,
				VendorID: group.VendorID,
				Total:    alloc.Total.StringFixed(2),
			})
			grandTotal = grandTotal.Add(alloc.Total)
		}

		// The purchased selection leaves the cart with the checkout; a buyer
		// without an active cart has nothing to retire.
		cartID := uuid.Nil
		record, err := cartRepo.FindActiveByOwner(ctx, cart.OwnerForUser(input.BuyerID))
		switch {
		case err == nil:
			if err := cartRepo.DeleteItemsByCart(ctx, record.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
			if err := cartRepo.Deactivate(ctx, record.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire cart")
			}
			cartID = record.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created[0].ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.ActorRoleBuyer.String()},
			Data: payloads.OrderCreatedEvent{
				BuyerID:  input.BuyerID,
				CartID:   cartID,
				Orders:   refs,
				Total:    money.Round(grandTotal).StringFixed(2),
				Currency: "BRL",
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Orders: created}, nil
}

// prepareLines resolves every requested item against the live catalog inside
// the checkout transaction. Prices captured at cart insertion are irrelevant
// here; the resolver re-reads promotional-else-base plus variant delta.
func prepareLines(ctx context.Context, catalogRepo catalog.Repository, items []LineInput) ([]preparedLine, error) {
	resolver, err := pricing.NewResolver(catalogRepo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build price resolver")
	}

	lines := make([]preparedLine, 0, len(items))
	for _, item := range items {
		quote, err := resolver.Resolve(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, preparedLine{
			ProductID:    quote.ProductID,
			VariantID:    quote.VariantID,
			VendorID:     quote.VendorID,
			ProductName:  quote.ProductName,
			VariantLabel: quote.VariantLabel,
			Quantity:     item.Quantity,
			UnitPrice:    quote.UnitPrice,
		})
	}
	return lines, nil
}

func validateInput(input Input) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.DeliveryAddressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if input.PaymentMethod == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if input.Freight.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "freight cannot be negative")
	}
	if input.Discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	return nil
}
