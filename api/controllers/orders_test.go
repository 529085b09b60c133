package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ordersvc "github.com/feiralivre/marketplace-backend/internal/orders"
	"github.com/feiralivre/marketplace-backend/pkg/db/models"
	"github.com/feiralivre/marketplace-backend/pkg/enums"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/money"
)

type stubOrdersService struct {
	order       *models.Order
	page        *ordersvc.Page
	err         error
	lastActor   ordersvc.Actor
	lastBuyerID uuid.UUID
	lastInput   ordersvc.TransitionInput
	lastParams  ordersvc.ListParams
	transitions int
}

func (s *stubOrdersService) Get(_ context.Context, _ uuid.UUID, actor ordersvc.Actor) (*models.Order, error) {
	s.lastActor = actor
	return s.order, s.err
}

func (s *stubOrdersService) ListForBuyer(_ context.Context, buyerID uuid.UUID, params ordersvc.ListParams) (*ordersvc.Page, error) {
	s.lastBuyerID = buyerID
	s.lastParams = params
	return s.page, s.err
}

func (s *stubOrdersService) ListForVendor(_ context.Context, actor ordersvc.Actor, params ordersvc.ListParams) (*ordersvc.Page, error) {
	s.lastActor = actor
	s.lastParams = params
	return s.page, s.err
}

func (s *stubOrdersService) Transition(_ context.Context, input ordersvc.TransitionInput) (*models.Order, error) {
	s.transitions++
	s.lastInput = input
	return s.order, s.err
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		VendorID:      uuid.New(),
		Status:        enums.OrderStatusPending,
		Subtotal:      money.MustFromString("50.00"),
		Total:         money.MustFromString("50.00"),
		PaymentMethod: "pix",
	}
}

func routedRequest(t *testing.T, handler http.HandlerFunc, method, path, pattern, body string, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	req := userRequest(method, path, body, userID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetOrderReturnsEnvelope(t *testing.T) {
	order := sampleOrder()
	svc := &stubOrdersService{order: order}

	rec := routedRequest(t, GetOrder(svc, nil), http.MethodGet, "/orders/"+order.ID.String(), "/orders/{orderId}", "", order.BuyerID)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data orderResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, order.ID, envelope.Data.ID)
	require.Equal(t, "pendente", envelope.Data.Status)
	require.Equal(t, "50.00", envelope.Data.Total)
}

func TestGetOrderRejectsMalformedID(t *testing.T) {
	rec := routedRequest(t, GetOrder(&stubOrdersService{}, nil), http.MethodGet, "/orders/nope", "/orders/{orderId}", "", uuid.New())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMyOrdersParsesPagination(t *testing.T) {
	svc := &stubOrdersService{page: &ordersvc.Page{Orders: []models.Order{*sampleOrder()}, NextCursor: "abc"}}

	buyerID := uuid.New()
	rec := routedRequest(t, ListMyOrders(svc, nil), http.MethodGet, "/orders?limit=5&cursor=xyz", "/orders", "", buyerID)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, buyerID, svc.lastBuyerID)
	require.Equal(t, 5, svc.lastParams.Pagination.Limit)
	require.Equal(t, "xyz", svc.lastParams.Pagination.Cursor)

	var envelope struct {
		Data orderPageResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Orders, 1)
	require.Equal(t, "abc", envelope.Data.Cursor)
}

func TestListVendorOrdersParsesStatusFilter(t *testing.T) {
	svc := &stubOrdersService{page: &ordersvc.Page{}}

	rec := routedRequest(t, ListVendorOrders(svc, nil), http.MethodGet, "/vendor/orders?status=pago", "/vendor/orders", "", uuid.New())

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastParams.Status)
	require.Equal(t, enums.OrderStatusPaid, *svc.lastParams.Status)
}

func TestListVendorOrdersRejectsUnknownStatus(t *testing.T) {
	rec := routedRequest(t, ListVendorOrders(&stubOrdersService{}, nil), http.MethodGet, "/vendor/orders?status=finished", "/vendor/orders", "", uuid.New())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionOrderForwardsInput(t *testing.T) {
	order := sampleOrder()
	order.Status = enums.OrderStatusShipped
	svc := &stubOrdersService{order: order}

	body := `{"status":"enviado","trackingCode":"BR123","carrier":"Correios"}`
	rec := routedRequest(t, TransitionOrder(svc, nil), http.MethodPost, "/orders/"+order.ID.String()+"/status", "/orders/{orderId}/status", body, uuid.New())

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.transitions)
	require.Equal(t, enums.OrderStatusShipped, svc.lastInput.Target)
	require.Equal(t, "BR123", *svc.lastInput.TrackingCode)
	require.Equal(t, "Correios", *svc.lastInput.Carrier)
}

func TestTransitionOrderRejectsUnknownStatus(t *testing.T) {
	body := `{"status":"done"}`
	rec := routedRequest(t, TransitionOrder(&stubOrdersService{}, nil), http.MethodPost, "/orders/"+uuid.NewString()+"/status", "/orders/{orderId}/status", body, uuid.New())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionOrderMapsStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot transition order from entregue to pago")}

	body := `{"status":"pago"}`
	rec := routedRequest(t, TransitionOrder(svc, nil), http.MethodPost, "/orders/"+uuid.NewString()+"/status", "/orders/{orderId}/status", body, uuid.New())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
