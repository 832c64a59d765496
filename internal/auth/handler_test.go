package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandlerLogin(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"test_user","password":"test_pass_123"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, "success", body["msg"])
	assert.Equal(t, map[string]any{"token": "token_test_user_8888"}, body["data"])
}

func TestHandlerLoginDoesNotEchoPassword(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"test_user","password":"secret_wrong_pw"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret_wrong_pw")
}

func TestHandlerLoginInvalidJSON(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid json body", decodeEnvelope(t, rr)["msg"])
}

func TestHandlerLogout(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(`{"username":""}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(`{"username":"test_user"}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = BearerToken(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	minter := NewJWTMinter("unit-secret", time.Hour)
	valid, err := minter.Mint("test_user", time.Now())
	require.NoError(t, err)

	cases := []struct {
		name     string
		verifier TokenVerifier
		header   string
		want     int
	}{
		{"missing", nil, "", http.StatusUnauthorized},
		{"wrong scheme", nil, "Basic abc", http.StatusUnauthorized},
		{"empty token", nil, "Bearer   ", http.StatusUnauthorized},
		{"any token without verifier", nil, "Bearer mock_token_123", http.StatusNoContent},
		{"rejected by verifier", minter, "Bearer mock_token_123", http.StatusUnauthorized},
		{"accepted by verifier", minter, "bearer " + valid, http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			Middleware(tc.verifier, next).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer mock_token_123")
	Middleware(nil, next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "mock_token_123", seen)
}
