package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/feiralivre/marketplace-backend/api/middleware"
	cartsvc "github.com/feiralivre/marketplace-backend/internal/cart"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/money"
)

type stubCartService struct {
	view      *cartsvc.View
	err       error
	lastOwner cartsvc.Owner
	lastInput cartsvc.AddItemInput
}

func (s *stubCartService) Get(_ context.Context, owner cartsvc.Owner) (*cartsvc.View, error) {
	s.lastOwner = owner
	return s.view, s.err
}

func (s *stubCartService) AddItem(_ context.Context, owner cartsvc.Owner, input cartsvc.AddItemInput) (*cartsvc.View, error) {
	s.lastOwner = owner
	s.lastInput = input
	return s.view, s.err
}

func (s *stubCartService) UpdateItem(_ context.Context, owner cartsvc.Owner, _ uuid.UUID, _ int) (*cartsvc.View, error) {
	s.lastOwner = owner
	return s.view, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, owner cartsvc.Owner, _ uuid.UUID) (*cartsvc.View, error) {
	s.lastOwner = owner
	return s.view, s.err
}

func (s *stubCartService) Clear(_ context.Context, owner cartsvc.Owner) error {
	s.lastOwner = owner
	return s.err
}

func userRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	identity := middleware.Identity{UserID: &userID, Role: enums.ActorRoleBuyer}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func TestGetCartReturnsView(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	svc := &stubCartService{view: &cartsvc.View{
		Cart: &models.Cart{
			ID:     cartID,
			UserID: &userID,
			Items: []models.CartItem{
				{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, UnitPrice: money.MustFromString("10.00")},
			},
		},
		Subtotal: money.MustFromString("20.00"),
	}}

	rec := httptest.NewRecorder()
	GetCart(svc, nil).ServeHTTP(rec, userRequest(http.MethodGet, "/api/v1/cart", "", userID))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, cartID, envelope.Data.ID)
	require.Equal(t, "20.00", envelope.Data.Subtotal)
	require.Equal(t, "20.00", envelope.Data.Items[0].LineTotal)
	require.Equal(t, userID, *svc.lastOwner.UserID)
}

func TestGetCartTreatsMissingCartAsEmpty(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")}

	rec := httptest.NewRecorder()
	GetCart(svc, nil).ServeHTTP(rec, userRequest(http.MethodGet, "/api/v1/cart", "", uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Empty(t, envelope.Data.Items)
}

func TestGetCartWithoutIdentityIsUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	GetCart(&stubCartService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddCartItemForwardsPayload(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{view: &cartsvc.View{Cart: &models.Cart{ID: uuid.New()}}}

	body := `{"productId":"` + productID.String() + `","quantity":3}`
	rec := httptest.NewRecorder()
	AddCartItem(svc, nil).ServeHTTP(rec, userRequest(http.MethodPost, "/api/v1/cart/items", body, userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, productID, svc.lastInput.ProductID)
	require.Equal(t, 3, svc.lastInput.Quantity)
}

func TestAddCartItemRejectsNonPositiveQuantity(t *testing.T) {
	body := `{"productId":"` + uuid.NewString() + `","quantity":0}`
	rec := httptest.NewRecorder()
	AddCartItem(&stubCartService{}, nil).ServeHTTP(rec, userRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionCallerUsesSessionOwner(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{Cart: &models.Cart{ID: uuid.New()}}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{SessionID: "anon-9"}))

	rec := httptest.NewRecorder()
	GetCart(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastOwner.SessionID)
	require.Equal(t, "anon-9", *svc.lastOwner.SessionID)
}
