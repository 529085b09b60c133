package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/feiralivre/marketplace-backend/pkg/enums"
)

func identityProbe(captured *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractParsesUserHeaders(t *testing.T) {
	userID := uuid.New()
	vendorID := uuid.New()

	var got Identity
	handler := Extract(nil)(identityProbe(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", userID.String())
	req.Header.Set("X-Actor-Role", "vendor")
	req.Header.Set("X-Vendor-Id", vendorID.String())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, got.HasUser())
	require.Equal(t, userID, *got.UserID)
	require.Equal(t, enums.ActorRoleVendor, got.Role)
	require.Equal(t, vendorID, *got.VendorID)
}

func TestExtractDefaultsToBuyerSession(t *testing.T) {
	var got Identity
	handler := Extract(nil)(identityProbe(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", "anon-session-42")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, got.HasUser())
	require.Equal(t, "anon-session-42", got.SessionID)
	require.Equal(t, enums.ActorRoleBuyer, got.Role)
}

func TestExtractRejectsMalformedUserID(t *testing.T) {
	handler := Extract(nil)(identityProbe(&Identity{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "not-a-uuid")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractRejectsVendorRoleWithoutVendorID(t *testing.T) {
	handler := Extract(nil)(identityProbe(&Identity{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", "vendor")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireUserBlocksAnonymousCallers(t *testing.T) {
	handler := RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{SessionID: "anon"}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	userID := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: &userID, Role: enums.ActorRoleBuyer}))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
