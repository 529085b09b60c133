package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/internal/pricing"
	"github.com/feiralivre/marketplace-backend/pkg/config"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// View is the cart read model returned to callers, with the subtotal
// recomputed from the stored lines.
type View struct {
	Cart     *models.Cart
	Subtotal decimal.Decimal
}

// AddItemInput carries the payload for adding a line to a cart.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Service exposes cart operations. Prices are resolved server-side at
// insertion time; stored lines are not re-priced on later reads.
type Service interface {
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, owner Owner) error
}

type service struct {
	repo       Repository
	tx         txRunner
	pricing    pricing.Resolver
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, resolver pricing.Resolver, cfg config.CartConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("pricing resolver required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		pricing:    resolver,
		sessionTTL: cfg.SessionTTL,
		now:        time.Now,
	}, nil
}

// Get returns the owner's active cart, creating an empty one when none exists.
func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.getOrCreate(ctx, s.repo, owner)
	if err != nil {
		return nil, err
	}
	return buildView(cart), nil
}

// AddItem prices the selection and merges it into the cart. Adding a
// product/variant pair already present increments the existing line instead
// of inserting a duplicate.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	quote, err := s.pricing.Resolve(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}
	if quote.AvailableStock < input.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock")
	}

	var cartID uuid.UUID
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := s.getOrCreate(ctx, txRepo, owner)
		if err != nil {
			return err
		}
		cartID = cart.ID

		merged, err := txRepo.IncrementItemQuantity(ctx, cart.ID, quote.ProductID, quote.VariantID, input.Quantity)
		if err != nil {
			return err
		}
		if merged {
			return txRepo.Touch(ctx, cart.ID)
		}

		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: quote.ProductID,
			VariantID: quote.VariantID,
			Quantity:  input.Quantity,
			UnitPrice: quote.UnitPrice,
		}
		if err := txRepo.CreateItem(ctx, item); err != nil {
			return err
		}
		return txRepo.Touch(ctx, cart.ID)
	}); err != nil {
		return nil, wrapCartErr(err, "add cart item")
	}

	return s.reload(ctx, cartID)
}

// UpdateItem sets the absolute quantity of a line owned by the caller.
func (s *service) UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.findOwnedCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItemByIDAndCart(ctx, itemID, cart.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, wrapCartErr(err, "load cart item")
	}
	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, wrapCartErr(err, "update cart item")
	}
	return s.reload(ctx, cart.ID)
}

// RemoveItem deletes a line owned by the caller.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.findOwnedCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItemByIDAndCart(ctx, itemID, cart.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, wrapCartErr(err, "load cart item")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, wrapCartErr(err, "remove cart item")
	}
	return s.reload(ctx, cart.ID)
}

// Clear empties the owner's cart. The cart row stays active.
func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	cart, err := s.findOwnedCart(ctx, owner)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItemsByCart(ctx, cart.ID); err != nil {
		return wrapCartErr(err, "clear cart")
	}
	return nil
}

// getOrCreate resolves the owner's active cart. Expired session carts are
// retired and replaced with a fresh one.
func (s *service) getOrCreate(ctx context.Context, repo Repository, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindActiveByOwner(ctx, owner)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapCartErr(err, "load cart")
	}

	if cart != nil {
		if !s.expired(cart) {
			return cart, nil
		}
		if err := repo.Deactivate(ctx, cart.ID); err != nil {
			return nil, wrapCartErr(err, "retire expired cart")
		}
	}

	fresh := &models.Cart{UserID: owner.UserID, SessionID: owner.SessionID}
	if owner.IsSession() {
		expiry := s.now().Add(s.sessionTTL)
		fresh.ExpiresAt = &expiry
	}
	created, err := repo.Create(ctx, fresh)
	if err != nil {
		return nil, wrapCartErr(err, "create cart")
	}
	return created, nil
}

func (s *service) findOwnedCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, wrapCartErr(err, "load cart")
	}
	if s.expired(cart) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cart, nil
}

func (s *service) expired(cart *models.Cart) bool {
	return cart.ExpiresAt != nil && cart.ExpiresAt.Before(s.now())
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, wrapCartErr(err, "reload cart")
	}
	return buildView(cart), nil
}

func buildView(cart *models.Cart) *View {
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		subtotal = subtotal.Add(money.Line(item.UnitPrice, item.Quantity))
	}
	return &View{Cart: cart, Subtotal: money.Round(subtotal)}
}

func wrapCartErr(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
