package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-harness/internal/config"
	"api-harness/internal/observability"
)

func mockConfig() config.Config {
	return config.Config{
		IsMock:          true,
		TokenScheme:     "fixed",
		TokenSuffix:     "8888",
		MaxAttempts:     5,
		MaxPasswordLen:  50,
		MockAdminSecret: "admin-secret",
	}
}

type testServer struct {
	handler http.Handler
	backend *Backend
}

func newTestServer(t *testing.T, cfg config.Config) testServer {
	t.Helper()
	logger := observability.NewNopLogger()
	backend, err := NewBackend(context.Background(), cfg, logger, BackendOptions{})
	require.NoError(t, err)
	services, err := NewServices(cfg, backend, logger)
	require.NoError(t, err)
	t.Cleanup(services.Auth.Close)
	return testServer{handler: NewHandler(cfg, backend, services, logger), backend: backend}
}

func (s testServer) do(t *testing.T, method, path, body, bearer string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	return rr.Code, decoded
}

func TestMockServerFlow(t *testing.T) {
	s := newTestServer(t, mockConfig())

	code, body := s.do(t, http.MethodPost, "/auth/login", `{"username":"test_user","password":"test_pass_123"}`, "")
	require.Equal(t, http.StatusOK, code)
	token := body["data"].(map[string]any)["token"].(string)
	assert.Equal(t, "token_test_user_8888", token)

	code, _ = s.do(t, http.MethodGet, "/products", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, http.MethodGet, "/products/product_002", "", token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success (out of stock)", body["msg"])

	code, body = s.do(t, http.MethodPost, "/products", `{"name":"Desk","price":1}`, token)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "product_004", body["data"].(map[string]any)["product_id"])

	code, _ = s.do(t, http.MethodPost, "/auth/logout", `{"username":"test_user"}`, "")
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "memory", body["backend"])
}

func TestMockAdminResetRestoresSeed(t *testing.T) {
	s := newTestServer(t, mockConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		code, _ := s.do(t, http.MethodPost, "/auth/login", `{"username":"test_user","password":"nope_nope"}`, "")
		require.Equal(t, http.StatusUnauthorized, code)
	}
	u, err := s.backend.Users.Query(ctx, "test_user")
	require.NoError(t, err)
	require.Equal(t, "locked", string(u.Status))

	code, _ := s.do(t, http.MethodPost, "/internal/mock/reset", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/internal/mock/reset", "", "admin-secret")
	require.Equal(t, http.StatusOK, code)

	u, err = s.backend.Users.Query(ctx, "test_user")
	require.NoError(t, err)
	assert.Equal(t, 0, u.FailCount)
	assert.Equal(t, "active", string(u.Status))
}

func TestJWTSchemeVerifiesProductTokens(t *testing.T) {
	cfg := mockConfig()
	cfg.TokenScheme = "jwt"
	cfg.JWTSecret = "unit-secret"
	cfg.TokenTTL = time.Hour
	s := newTestServer(t, cfg)

	code, body := s.do(t, http.MethodPost, "/auth/login", `{"username":"admin_user","password":"admin_pass_789"}`, "")
	require.Equal(t, http.StatusOK, code)
	token := body["data"].(map[string]any)["token"].(string)

	code, _ = s.do(t, http.MethodGet, "/products", "", "mock_token_123")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/products", "", token)
	assert.Equal(t, http.StatusOK, code)
}

func TestInvalidTokenSchemeFails(t *testing.T) {
	cfg := mockConfig()
	cfg.TokenScheme = "rot13"
	backend, err := NewBackend(context.Background(), cfg, observability.NewNopLogger(), BackendOptions{})
	require.NoError(t, err)

	_, err = NewServices(cfg, backend, observability.NewNopLogger())
	assert.ErrorContains(t, err, "token minter")
}
