package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feiralivre/marketplace-backend/pkg/config"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter() http.Handler {
	cfg := &config.Config{App: config.AppConfig{Env: "dev", Port: "8080"}}
	return NewRouter(cfg, nil, okPinger{}, okPinger{}, Services{})
}

func TestHealthLiveEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, "ok", envelope.Data["status"])
	require.Equal(t, "dev", envelope.Data["env"])
}

func TestHealthReadyEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	router := newTestRouter()

	for _, target := range []string{"/api/v1/orders", "/api/v1/notifications"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("X-Session-Id", "anon-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestRequestIDHeaderStamped(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
