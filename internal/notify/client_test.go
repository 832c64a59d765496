package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsJSONWithBearer(t *testing.T) {
	var gotAuth, gotType, gotRequestID string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/post", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second, map[string]string{"Content-Type": "application/json"})
	result, err := client.Send(context.Background(), Request{
		Method:      "post",
		Path:        "/post",
		Body:        map[string]string{"login": "success"},
		BearerToken: "token_test_user_8888",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, true, result.Body["ok"])
	assert.Equal(t, "Bearer token_test_user_8888", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "success", gotBody["login"])
}

func TestSendEncodesParams(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	result, err := client.Send(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "get",
		Params: url.Values{"id": {"product_001"}},
	})
	require.NoError(t, err)
	assert.Nil(t, result.Body)
	assert.Equal(t, "product_001", gotQuery.Get("id"))
}

func TestSendNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	result, err := client.Send(context.Background(), Request{Method: http.MethodGet, Path: "/get"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, result.Status)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestSendNon2xxKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":401,"msg":"password error","data":null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	result, err := client.Send(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login"})
	require.Error(t, err)
	assert.Equal(t, "password error", result.Body["msg"])
}

func TestSendTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond, nil)
	start := time.Now()
	_, err := client.Send(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendRejectsRelativeBase(t *testing.T) {
	client := NewClient("", time.Second, nil)
	_, err := client.Send(context.Background(), Request{Method: http.MethodGet, Path: "/get"})
	assert.ErrorContains(t, err, "absolute")
}
